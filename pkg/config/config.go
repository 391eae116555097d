package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultInterval = 500 * time.Millisecond

type Config struct {
	S3Accesskey string `json:"s3_accesskey,omitempty"`
	S3Secretkey string `json:"s3_secretkey,omitempty"`
	S3Endpoint  string `json:"s3_endpoint,omitempty"`
	S3Bucket    string `json:"s3_bucket,omitempty"`
	S3Prefix    string `json:"s3_prefix,omitempty"`

	// Interval is a time.ParseDuration string, e.g. "500ms".
	Interval    string `json:"interval,omitempty"`
	DryRun      bool   `json:"dry_run,omitempty"`
	JournalPath string `json:"journal_path,omitempty"`

	LogLevel  string `json:"log_level,omitempty"`
	PProfPort string `json:"pprof_port"`
}

func Default() *Config {
	return &Config{
		S3Endpoint: "http://localhost:9000",
		S3Prefix:   "dirguard",
		Interval:   DefaultInterval.String(),
		LogLevel:   "info",
	}
}

// FromFile loads path on top of Default.
func FromFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	err = json.Unmarshal(content, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", c.Interval, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid interval %q: must be positive", c.Interval)
	}
	if c.S3Bucket == "" && (c.S3Accesskey != "" || c.S3Secretkey != "") {
		return errors.New("s3 credentials given without s3 bucket")
	}
	return nil
}

// PollInterval returns the sleep between cycles, DefaultInterval if unset or invalid.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return DefaultInterval
	}
	return d
}

func (c *Config) QuarantineEnabled() bool {
	return c.S3Bucket != ""
}
