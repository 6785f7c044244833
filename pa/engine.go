// Package pa implements the Passive Authentication engine (spec §4.4):
// a fail-fast, fully audit-logged state machine that unwraps an EF.SOD,
// chains it to a stored CSCA, verifies the SOD's CMS signature, and
// compares Data Group hashes.
package pa

import (
	"context"
	"fmt"
	"time"

	"github.com/jmhodges/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iland112/local-pkd-sub001/core"
	"github.com/iland112/local-pkd-sub001/cryptoutil/cms"

	ctx509 "github.com/google/certificate-transparency-go/x509"
)

var tracer = otel.Tracer("github.com/iland112/local-pkd-sub001/pa")

// Input is everything the engine needs for one invocation (spec §4.4).
type Input struct {
	SODBytes        []byte
	DataGroups      map[int][]byte
	IssuingCountry  string
	DocumentNumber  string
	RequestMetadata core.RequestMetadata
}

// Engine runs Passive Authentication invocations against a trust store.
type Engine struct {
	store       core.TrustStoreRepository
	clock       clock.Clock
	strictCRL   bool
	lookupCache *LookupCache
}

// New constructs an Engine. lookupCache may be nil, in which case every
// LOOKUP_CSCA/CRL_CHECK state hits the trust store directly.
func New(store core.TrustStoreRepository, clk clock.Clock, strictCRL bool, lookupCache *LookupCache) *Engine {
	return &Engine{store: store, clock: clk, strictCRL: strictCRL, lookupCache: lookupCache}
}

// state carries the mutable per-invocation bookkeeping threaded through
// each step function.
type state struct {
	ctx          context.Context
	span         trace.Span
	inv          *core.PAInvocation
	seq          int
	sodDER       []byte
	signed       *cms.SignedData
	dsc          *ctx509.Certificate
	dscData      core.CertificateData
	csca         *ctx509.Certificate
	cscaCert     *core.Certificate
	lso          *cms.LDSSecurityObject
}

// Authenticate runs the full state machine and returns a fully
// populated PAInvocation, never an error: every failure mode is
// represented inside the returned invocation's OverallStatus/Errors/
// AuditLog, per spec §4.4 ("produce a full audit trail").
func (e *Engine) Authenticate(ctx context.Context, in Input) *core.PAInvocation {
	started := e.clock.Now().UTC()
	ctx, span := tracer.Start(ctx, "pa.Authenticate")
	defer span.End()

	s := &state{
		ctx: ctx,
		span: span,
		inv: &core.PAInvocation{
			InvocationId: fmt.Sprintf("pa-%d", started.UnixNano()),
			StartedAt:    started,
			Metadata:     in.RequestMetadata,
		},
	}
	s.emit(core.StepVerificationStarted, core.StepStatusStarted, "passive authentication started", nil)
	s.emit(core.StepVerificationStarted, core.StepStatusCompleted, "invocation initialized", nil)

	if !e.runStep(s, core.StepUnwrapSOD, func() error { return e.unwrapSOD(s, in.SODBytes) }) {
		return e.finish(s, core.OverallInvalid)
	}
	if !e.runStep(s, core.StepExtractDSC, func() error { return e.extractDSC(s) }) {
		return e.finish(s, core.OverallInvalid)
	}
	if !e.runStep(s, core.StepLookupCSCA, func() error { return e.lookupCSCA(s) }) {
		return e.finish(s, core.OverallInvalid)
	}
	if !e.runStep(s, core.StepVerifyTrustChain, func() error { return e.verifyTrustChain(s) }) {
		return e.finish(s, core.OverallInvalid)
	}
	if !e.runStep(s, core.StepVerifySODSignature, func() error { return e.verifySODSignature(s) }) {
		return e.finish(s, core.OverallInvalid)
	}
	if !e.runStep(s, core.StepExtractDGHashes, func() error { return e.extractDGHashes(s) }) {
		return e.finish(s, core.OverallInvalid)
	}
	// VERIFY_DG_HASHES is not fail-fast: every DG is checked even after a
	// mismatch (spec §4.4 step 7).
	dgHashesOK := e.verifyDGHashes(s, in.DataGroups)

	// CRL_CHECK is best-effort: it makes the invocation INVALID only when
	// the DSC is revoked or strict mode promotes CRL_UNAVAILABLE to ERROR.
	crlOK := e.crlCheck(s)

	overall := core.OverallValid
	if !dgHashesOK || !crlOK {
		overall = core.OverallInvalid
	}
	return e.finish(s, overall)
}

// runStep emits STARTED, calls fn, and emits COMPLETED/FAILED, stopping
// the machine on failure per spec §4.4's fail-fast transition rule.
func (e *Engine) runStep(s *state, step core.PAStep, fn func() error) bool {
	_, span := tracer.Start(s.ctx, string(step))
	defer span.End()
	s.emit(step, core.StepStatusStarted, string(step)+" started", nil)
	if err := fn(); err != nil {
		span.SetAttributes(attribute.Bool("pa.failed", true))
		s.emitFailure(step, err)
		return false
	}
	s.emit(step, core.StepStatusCompleted, string(step)+" completed", nil)
	return true
}

func (s *state) emit(step core.PAStep, status core.StepStatus, msg string, details map[string]interface{}) {
	s.seq++
	s.inv.AuditLog = append(s.inv.AuditLog, core.AuditLogEntry{
		Sequence:   s.seq,
		Timestamp:  time.Now().UTC(),
		Level:      levelFor(status),
		Step:       step,
		StepStatus: status,
		Message:    msg,
		Details:    details,
	})
}

func (s *state) emitFailure(step core.PAStep, err error) {
	code, sev := classifyStepError(err)
	s.seq++
	s.inv.AuditLog = append(s.inv.AuditLog, core.AuditLogEntry{
		Sequence:     s.seq,
		Timestamp:    time.Now().UTC(),
		Level:        core.LevelError,
		Step:         step,
		StepStatus:   core.StepStatusFailed,
		Message:      err.Error(),
		ErrorCode:    code,
		ErrorMessage: err.Error(),
	})
	s.inv.Errors = append(s.inv.Errors, core.ValidationError{
		Code:       code,
		Message:    err.Error(),
		Severity:   sev,
		OccurredAt: time.Now().UTC(),
	})
}

func levelFor(status core.StepStatus) core.AuditLogLevel {
	if status == core.StepStatusFailed {
		return core.LevelError
	}
	return core.LevelInfo
}

// finish populates counters, duration, and appends the terminal
// VERIFICATION_COMPLETED entry (spec §4.4 step 9).
func (e *Engine) finish(s *state, overall core.OverallStatus) *core.PAInvocation {
	s.inv.OverallStatus = overall
	s.inv.CompletedAt = e.clock.Now().UTC()
	s.inv.DurationMs = s.inv.CompletedAt.Sub(s.inv.StartedAt).Milliseconds()
	for _, dg := range s.inv.DataGroups {
		s.inv.TotalDataGroups++
		if dg.Valid {
			s.inv.ValidDataGroups++
		} else {
			s.inv.InvalidDataGroups++
		}
	}
	s.emit(core.StepVerificationCompleted, core.StepStatusCompleted,
		fmt.Sprintf("verification completed: %s", overall), map[string]interface{}{"overallStatus": string(overall)})
	return s.inv
}

// classifyStepError maps a step's returned error to its audit error
// code and severity, defaulting to ERROR severity for anything not
// explicitly a warning-class failure.
func classifyStepError(err error) (string, core.ErrorSeverity) {
	if se, ok := err.(*stepError); ok {
		return se.code, se.severity
	}
	return "UNKNOWN", core.SeverityError
}

type stepError struct {
	code     string
	severity core.ErrorSeverity
	msg      string
}

func (e *stepError) Error() string { return e.msg }

func newStepError(code, msg string) *stepError {
	return &stepError{code: code, severity: core.SeverityError, msg: msg}
}
