package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalsFromDurationString(t *testing.T) {
	var d Duration
	if err := yaml.Unmarshal([]byte(`"5m30s"`), &d); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if d.Duration != 5*time.Minute+30*time.Second {
		t.Errorf("expected 5m30s, got %v", d.Duration)
	}
}

func TestDurationUnmarshalRejectsInvalidString(t *testing.T) {
	var d Duration
	if err := yaml.Unmarshal([]byte(`"not-a-duration"`), &d); err == nil {
		t.Error("expected an error for an unparsable duration string")
	}
}

func TestDurationMarshalRoundTrips(t *testing.T) {
	d := Duration{Duration: 90 * time.Second}
	out, err := yaml.Marshal(d)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back Duration
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Duration != d.Duration {
		t.Errorf("expected round trip to preserve %v, got %v", d.Duration, back.Duration)
	}
}

func TestSecretUnmarshalsLiteralValue(t *testing.T) {
	var s Secret
	if err := yaml.Unmarshal([]byte(`"plain-password"`), &s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if s != "plain-password" {
		t.Errorf("expected literal value, got %q", s)
	}
}

func TestSecretUnmarshalsFromReferencedFile(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "db-password")
	if err := os.WriteFile(secretPath, []byte("s3cr3t\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var s Secret
	if err := yaml.Unmarshal([]byte(`"secret:`+secretPath+`"`), &s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if s != "s3cr3t" {
		t.Errorf("expected trimmed file contents, got %q", s)
	}
}

func TestSecretUnmarshalRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "empty")
	if err := os.WriteFile(secretPath, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var s Secret
	if err := yaml.Unmarshal([]byte(`"secret:`+secretPath+`"`), &s); err != errSecretEmpty {
		t.Errorf("expected errSecretEmpty, got %v", err)
	}
}

func TestSecretUnmarshalRejectsMissingFile(t *testing.T) {
	var s Secret
	if err := yaml.Unmarshal([]byte(`"secret:/no/such/file"`), &s); err == nil {
		t.Error("expected an error for a missing secret file")
	}
}

func validConfigYAML() string {
	return `
database:
  dbConnect: "user:pass@tcp(localhost:3306)/pkd"
  maxOpenConn: 10
  maxIdleConn: 2
directory:
  batchSize: 50
  baseDN: "dc=pkd,dc=example,dc=org"
validator:
  batchSize: 100
  strictCrlMode: false
  cscaCacheMaxBytes: 104857600
  clockSkewTolerance: "30s"
pa:
  strictCrlMode: false
  lookupCacheBytes: 1048576
  lookupCacheTtl: "5m"
ingest:
  workerCount: 4
  queueDir: "/var/lib/pkd/queue"
  maxUploadSize: 1073741824
`
}

func TestLoadParsesAndValidatesWellFormedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(validConfigYAML()), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Directory.BatchSize != 50 {
		t.Errorf("expected BatchSize 50, got %d", cfg.Directory.BatchSize)
	}
	if cfg.Validator.ClockSkewTolerance.Duration != 30*time.Second {
		t.Errorf("expected clock skew tolerance 30s, got %v", cfg.Validator.ClockSkewTolerance.Duration)
	}
	if cfg.Database.DBConnect != "user:pass@tcp(localhost:3306)/pkd" {
		t.Errorf("unexpected DBConnect: %q", cfg.Database.DBConnect)
	}
}

func TestLoadRejectsMissingRequiredSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	// Missing the required "ingest" section entirely.
	incomplete := `
database:
  dbConnect: "user:pass@tcp(localhost:3306)/pkd"
  maxOpenConn: 10
  maxIdleConn: 2
directory:
  batchSize: 50
  baseDN: "dc=pkd,dc=example,dc=org"
validator:
  batchSize: 100
pa:
  strictCrlMode: false
`
	if err := os.WriteFile(path, []byte(incomplete), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected Load to fail validation for a missing required section")
	}
}

func TestLoadRejectsOutOfRangeField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	bad := `
database:
  dbConnect: "user:pass@tcp(localhost:3306)/pkd"
  maxOpenConn: 10
  maxIdleConn: 2
directory:
  batchSize: 50
  baseDN: "dc=pkd,dc=example,dc=org"
validator:
  batchSize: 100
pa:
  strictCrlMode: false
ingest:
  workerCount: 0
  queueDir: "/tmp"
  maxUploadSize: 1
`
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected Load to fail validation for workerCount below its gte=1 bound")
	}
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	if _, err := Load("/no/such/config.yaml"); err == nil {
		t.Error("expected an error for a nonexistent config file")
	}
}
