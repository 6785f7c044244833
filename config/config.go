// Package config defines the Local PKD's on-disk configuration shape
// and the custom scalar types (durations, secrets) it needs, grounded
// on the teacher's cmd/config.go ConfigDuration/ConfigSecret pattern
// but expressed with YAML tags and struct-tag validation instead of
// bare JSON.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	validator "github.com/letsencrypt/validator/v10"
)

// Config is the root configuration document for every Local PKD
// component (ingest worker, validator, directory publisher, PA
// engine). A single file is shared across components; each reads only
// the sections it needs.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" validate:"required"`
	Directory  DirectoryConfig  `yaml:"directory" validate:"required"`
	Validator  ValidatorConfig  `yaml:"validator" validate:"required"`
	PA         PAConfig         `yaml:"pa" validate:"required"`
	Ingest     IngestConfig     `yaml:"ingest" validate:"required"`
	Logging    LoggingConfig    `yaml:"logging"`
	MasterList MasterListConfig `yaml:"masterList"`
}

// DatabaseConfig describes the trust store's MySQL connection, mirroring
// the teacher's ConfigSecret-wrapped DBConnect field (spec §6).
type DatabaseConfig struct {
	DBConnect   Secret `yaml:"dbConnect" validate:"required"`
	MaxOpenConn int    `yaml:"maxOpenConn" validate:"gte=1"`
	MaxIdleConn int    `yaml:"maxIdleConn" validate:"gte=0"`
}

// DirectoryConfig tunes the publisher's bounded-concurrency batch
// writer (spec §4.3).
type DirectoryConfig struct {
	BatchSize      int      `yaml:"batchSize" validate:"gte=1,lte=500"`
	BaseDN         string   `yaml:"baseDN" validate:"required"`
	BootstrapHosts []string `yaml:"bootstrapHosts"`
}

// ValidatorConfig tunes the two-pass CSCA/DSC validation run (spec §4.2).
type ValidatorConfig struct {
	BatchSize         int            `yaml:"batchSize" validate:"gte=1,lte=1000"`
	StrictCRLMode     bool           `yaml:"strictCrlMode"`
	CSCACacheMaxBytes int64          `yaml:"cscaCacheMaxBytes" validate:"gte=0"`
	ClockSkewTolerance Duration      `yaml:"clockSkewTolerance"`
	RedisAddr         string         `yaml:"redisAddr"`
	RedisCacheTTL     Duration       `yaml:"redisCacheTtl"`
}

// PAConfig tunes the Passive Authentication engine (spec §4.4).
type PAConfig struct {
	StrictCRLMode     bool   `yaml:"strictCrlMode"`
	LookupCacheBytes  int64  `yaml:"lookupCacheBytes" validate:"gte=0"`
	LookupCacheTTL    Duration `yaml:"lookupCacheTtl"`
}

// IngestConfig tunes the upload worker pool (spec §5: "default worker
// count approximately CPU x2").
type IngestConfig struct {
	WorkerCount   int    `yaml:"workerCount" validate:"gte=1"`
	QueueDir      string `yaml:"queueDir" validate:"required"`
	MaxUploadSize int64  `yaml:"maxUploadSize" validate:"gte=1"`
}

// MasterListConfig names the trust anchor used to verify CMS Master
// List signatures (spec §4.1).
type MasterListConfig struct {
	TrustAnchorFile string `yaml:"trustAnchorFile"`
}

// LoggingConfig tunes the stdr-backed structured logger (spec's
// ambient logging stack).
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Load reads, parses, and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Duration wraps time.Duration with YAML string (de)serialization,
// grounded on the teacher's ConfigDuration (cmd/config.go).
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Secret is a string-valued config field that may be given directly or,
// if prefixed "secret:", read from the file named after the prefix with
// trailing newlines trimmed (spec's ambient config stack), grounded on
// the teacher's ConfigSecret (cmd/config.go).
type Secret string

const secretPrefix = "secret:"

var errSecretEmpty = errors.New("config: secret value must not be empty")

func (s *Secret) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if !strings.HasPrefix(raw, secretPrefix) {
		*s = Secret(raw)
		return nil
	}
	contents, err := os.ReadFile(raw[len(secretPrefix):])
	if err != nil {
		return err
	}
	trimmed := strings.TrimRight(string(contents), "\n")
	if trimmed == "" {
		return errSecretEmpty
	}
	*s = Secret(trimmed)
	return nil
}
