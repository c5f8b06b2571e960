package configuration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"lumi/internal/event"
	"lumi/internal/weight"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. LUMI_WEIGHTS_SCALE.
const EnvPrefix = "LUMI"

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// Logger — logger component configuration
	Logger LoggerConfig `mapstructure:"logger"`
	// Weights — luminosity weight table sources
	Weights WeightsConfig `mapstructure:"weights"`
	// Events — event stream layout
	Events EventsConfig `mapstructure:"events"`
	// Selection — event selection
	Selection SelectionConfig `mapstructure:"selection"`
	// Output — weighted event output
	Output OutputConfig `mapstructure:"output"`
	// Server — HTTP lookup service configuration
	Server ServerConfig `mapstructure:"server"`
}

// LoggerConfig defines logging settings.
type LoggerConfig struct {
	// Level — log level: debug, info, warn, warning, error.
	// Value is case-insensitive but checked in lowercase.
	Level string `mapstructure:"level"`
}

// WeightsConfig defines where per-dataset weights come from.
type WeightsConfig struct {
	// CrossSections — path to the cross-section table.
	CrossSections string `mapstructure:"cross_sections"`
	// Counts — path to the event-count table.
	Counts string `mapstructure:"counts"`
	// Scale — global luminosity scale, in inverse units of the cross-sections (default 1.0).
	Scale float64 `mapstructure:"scale"`
	// Missing — policy for unknown datasets: zero or error (default zero).
	Missing string `mapstructure:"missing"`
	// Watch — reload the tables when the files change (serve only).
	Watch bool `mapstructure:"watch"`
}

// EventsConfig describes the events fed to the weigh command.
type EventsConfig struct {
	// Variables — event variable name to type (int, double, bool, string).
	Variables map[string]string `mapstructure:"variables"`
	// DatasetField — integer variable holding the dataset identifier (default mc_dataset_id).
	DatasetField string `mapstructure:"dataset_field"`
}

// SelectionConfig points to the cut definitions.
type SelectionConfig struct {
	// File — YAML file with cuts and the weight expression. Optional.
	File string `mapstructure:"file"`
}

// OutputConfig defines the weighted event file.
type OutputConfig struct {
	// File — output file path. Empty disables output.
	File string `mapstructure:"file"`
	// Maximal output file size in MB (default 100)
	Size int `mapstructure:"size"`
	// Number of rotated output files (default 20)
	Amount int `mapstructure:"amount"`
}

// ServerConfig contains HTTP server parameters.
type ServerConfig struct {
	// Address — address and port of the lookup API (e.g., ":8080").
	Address string `mapstructure:"address"`
	// MetricsAddress — address of the health and metrics endpoints (e.g., ":9090").
	MetricsAddress string `mapstructure:"metrics_address"`
}

// Validate checks the correctness of the entire application configuration.
// Calls validation for each nested structure and returns the first detected error.
func (c *AppConfig) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}

	if err := c.Weights.Validate(); err != nil {
		return err
	}

	if err := c.Events.Validate(); err != nil {
		return err
	}

	if err := c.Output.Validate(); err != nil {
		return err
	}

	return c.Server.Validate()
}

// Validate checks the correctness of the logger configuration.
// Supported values: debug, info, warn, warning, error (case-insensitive).
func (l *LoggerConfig) Validate() error {
	if l.Level == "" {
		l.Level = "info"
	}

	valid := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !valid[strings.ToLower(l.Level)] {
		return fmt.Errorf("logger.level: unsupported level '%s'", l.Level)
	}

	return nil
}

// Validate checks that both tables are set and the missing policy is known.
func (w *WeightsConfig) Validate() error {
	if w.CrossSections == "" {
		return errors.New("weights.cross_sections: must be specified")
	}

	if w.Counts == "" {
		return errors.New("weights.counts: must be specified")
	}

	if _, err := weight.ParseMissingPolicy(w.Missing); err != nil {
		return fmt.Errorf("weights.missing: %w", err)
	}

	return nil
}

// MissingPolicy returns the parsed missing dataset policy.
func (w *WeightsConfig) MissingPolicy() weight.MissingPolicy {
	policy, _ := weight.ParseMissingPolicy(w.Missing)
	return policy
}

// Validate checks the event schema and fills the dataset field default.
func (e *EventsConfig) Validate() error {
	if e.DatasetField == "" {
		e.DatasetField = "mc_dataset_id"
	}

	if e.Variables == nil {
		e.Variables = make(map[string]string)
	}

	if typ, found := e.Variables[e.DatasetField]; !found {
		e.Variables[e.DatasetField] = event.TypeInt
	} else if typ != event.TypeInt {
		return fmt.Errorf("events.variables: %s must be of type int", e.DatasetField)
	}

	if err := e.Schema().Validate(); err != nil {
		return fmt.Errorf("events.variables: %w", err)
	}

	return nil
}

// Schema returns the configured event schema.
func (e *EventsConfig) Schema() event.Schema {
	return event.Schema(e.Variables)
}

// DefaultWeight is the weight expression used when the selection has none.
func (e *EventsConfig) DefaultWeight() string {
	return event.LumiWeightFunction + "(" + e.DatasetField + ")"
}

// Validate output parameters
func (o *OutputConfig) Validate() error {
	if o.Amount == 0 {
		o.Amount = 20
	}

	if o.Size == 0 {
		o.Size = 100
	}

	return nil
}

// Validate fills the server defaults.
func (s *ServerConfig) Validate() error {
	if s.Address == "" {
		s.Address = ":8080"
	}

	if s.MetricsAddress == s.Address {
		return errors.New("server.metrics_address: must differ from server.address")
	}

	return nil
}

// LoadConfig loads configuration from the specified file using Viper.
// Supports YAML format. Environment variables with the LUMI_ prefix
// override values from the file (LUMI_WEIGHTS_SCALE for weights.scale).
//
// Returns a pointer to AppConfig or an error if:
// - the file is not found or inaccessible
// - the configuration has invalid format
// - one of the sections fails validation
func LoadConfig(configPath string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("weights.scale", 1.0)
	v.SetDefault("weights.missing", string(weight.MissingZero))
	v.SetDefault("logger.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
