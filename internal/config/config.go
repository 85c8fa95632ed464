// Package config loads the invoiceprep configuration file.
//
// The file is YAML; every key is optional and missing keys keep their default:
//
//	log:
//	  level: info
//	  format: text
//	meta:
//	  dash_policy: skip
//	payments:
//	  invoice_id_prefix: INV2023
//	  customer_id_field: parent_id
//	  total_amount_field: amount_due
//	  payment_method_field: payment_method
//	  payment_method_value: gocardless
//	  email_field: gocardless_email
//	  invoice_date: "2023-02-12"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nao1215/invoiceprep/internal/logging"
	"github.com/nao1215/invoiceprep/meta"
	"github.com/nao1215/invoiceprep/payment"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log      Log            `yaml:"log"`
	Meta     Meta           `yaml:"meta"`
	Payments payment.Config `yaml:"payments"`
}

// Log holds the logging settings.
type Log struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Meta holds the meta row expansion settings.
type Meta struct {
	// DashPolicy is "skip" or "terminate".
	DashPolicy string `yaml:"dash_policy"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:      Log{Level: "info", Format: logging.FormatText},
		Meta:     Meta{DashPolicy: meta.DashSkip.String()},
		Payments: payment.DefaultConfig(),
	}
}

// Load reads the configuration file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is given by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration data over the defaults. Unknown keys are
// errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the logging and meta settings. Payment settings are checked
// when a batch is built, once command line flags have been applied.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Log.Format {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid config: unknown log format: %s", c.Log.Format)
	}
	if _, err := c.DashPolicy(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DashPolicy returns the configured dash policy.
func (c *Config) DashPolicy() (meta.DashPolicy, error) {
	return meta.ParseDashPolicy(c.Meta.DashPolicy)
}
