package pa

import (
	"errors"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/iland112/local-pkd-sub001/core"
)

func TestRunStepEmitsStartedAndCompletedOnSuccess(t *testing.T) {
	e := &Engine{clock: clock.NewFake()}
	s := newTestState()
	ok := e.runStep(s, core.StepUnwrapSOD, func() error { return nil })
	if !ok {
		t.Fatal("expected runStep to return true on success")
	}
	if len(s.inv.AuditLog) != 2 {
		t.Fatalf("expected 2 audit entries (STARTED, COMPLETED), got %d", len(s.inv.AuditLog))
	}
	if s.inv.AuditLog[0].StepStatus != core.StepStatusStarted {
		t.Errorf("expected first entry STARTED, got %v", s.inv.AuditLog[0].StepStatus)
	}
	if s.inv.AuditLog[1].StepStatus != core.StepStatusCompleted {
		t.Errorf("expected second entry COMPLETED, got %v", s.inv.AuditLog[1].StepStatus)
	}
}

func TestRunStepEmitsFailureAndStopsOnError(t *testing.T) {
	e := &Engine{clock: clock.NewFake()}
	s := newTestState()
	ok := e.runStep(s, core.StepExtractDSC, func() error { return newStepError("DSC_EXTRACTION_FAILED", "boom") })
	if ok {
		t.Fatal("expected runStep to return false on failure")
	}
	last := s.inv.AuditLog[len(s.inv.AuditLog)-1]
	if last.StepStatus != core.StepStatusFailed {
		t.Errorf("expected last entry FAILED, got %v", last.StepStatus)
	}
	if last.ErrorCode != "DSC_EXTRACTION_FAILED" {
		t.Errorf("expected error code DSC_EXTRACTION_FAILED, got %q", last.ErrorCode)
	}
	if len(s.inv.Errors) != 1 || s.inv.Errors[0].Severity != core.SeverityError {
		t.Errorf("expected one ERROR-severity ValidationError, got %+v", s.inv.Errors)
	}
}

func TestClassifyStepErrorUsesStepErrorCodeAndSeverity(t *testing.T) {
	code, sev := classifyStepError(newStepError("CSCA_NOT_FOUND", "no csca"))
	if code != "CSCA_NOT_FOUND" || sev != core.SeverityError {
		t.Errorf("expected CSCA_NOT_FOUND/ERROR, got %s/%v", code, sev)
	}
}

func TestClassifyStepErrorDefaultsToUnknownForPlainError(t *testing.T) {
	code, sev := classifyStepError(errors.New("some unexpected failure"))
	if code != "UNKNOWN" || sev != core.SeverityError {
		t.Errorf("expected UNKNOWN/ERROR for a non-stepError, got %s/%v", code, sev)
	}
}

func TestLevelForMapsStatusToAuditLevel(t *testing.T) {
	if levelFor(core.StepStatusFailed) != core.LevelError {
		t.Error("expected FAILED to map to LevelError")
	}
	if levelFor(core.StepStatusCompleted) != core.LevelInfo {
		t.Error("expected COMPLETED to map to LevelInfo")
	}
}

func TestFinishTalliesDataGroupCountsAndAppendsCompletedEntry(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC))
	e := &Engine{clock: fc}
	s := newTestState()
	s.inv.StartedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.inv.DataGroups = []core.DataGroupResult{
		{DGNumber: 1, Valid: true},
		{DGNumber: 2, Valid: false},
	}

	inv := e.finish(s, core.OverallInvalid)
	if inv.TotalDataGroups != 2 || inv.ValidDataGroups != 1 || inv.InvalidDataGroups != 1 {
		t.Errorf("expected tallies 2/1/1, got %d/%d/%d", inv.TotalDataGroups, inv.ValidDataGroups, inv.InvalidDataGroups)
	}
	if inv.DurationMs != 10_000 {
		t.Errorf("expected DurationMs 10000, got %d", inv.DurationMs)
	}
	last := inv.AuditLog[len(inv.AuditLog)-1]
	if last.Step != core.StepVerificationCompleted {
		t.Errorf("expected final step VERIFICATION_COMPLETED, got %v", last.Step)
	}
}
