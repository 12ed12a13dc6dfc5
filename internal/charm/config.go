// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"fmt"
	"io"
	"strconv"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

// Option represents a single option declared in config.yaml.
type Option struct {
	Type        string      `yaml:"type"`
	Description string      `yaml:"description,omitempty"`
	Default     interface{} `yaml:"default,omitempty"`
}

var optionTypeCheckers = map[string]schema.Checker{
	"string":  schema.String(),
	"int":     schema.ForceInt(),
	"float":   schema.Float(),
	"boolean": schema.Bool(),
}

func (option Option) checker() (schema.Checker, error) {
	checker, ok := optionTypeCheckers[option.Type]
	if !ok {
		return nil, errors.NotValidf("option type %q", option.Type)
	}
	return checker, nil
}

// ConfigSchema represents the options declared in config.yaml.
type ConfigSchema struct {
	Options map[string]Option `yaml:"options"`
}

// ReadConfig reads a config.yaml file and returns its representation.
func ReadConfig(r io.Reader) (*ConfigSchema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var cs ConfigSchema
	if err := yaml.Unmarshal(data, &cs); err != nil {
		return nil, errors.Annotate(err, "config")
	}
	if cs.Options == nil {
		cs.Options = make(map[string]Option)
	}
	for name, option := range cs.Options {
		checker, err := option.checker()
		if err != nil {
			return nil, errors.Annotatef(err, "option %q", name)
		}
		if option.Default == nil {
			continue
		}
		if _, err := checker.Coerce(option.Default, []string{name}); err != nil {
			return nil, errors.Annotatef(err, "option %q default", name)
		}
	}
	return &cs, nil
}

// Settings resolves the given values against the schema: unknown keys are
// rejected, declared options missing from values take their default, and
// every value is coerced to the declared type.
func (cs *ConfigSchema) Settings(values map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(cs.Options))
	for name, option := range cs.Options {
		if option.Default != nil {
			out[name] = option.Default
		}
	}
	for name, value := range values {
		if _, ok := cs.Options[name]; !ok {
			return nil, errors.NotValidf("unknown option %q", name)
		}
		if value == nil {
			continue
		}
		out[name] = value
	}
	for name, value := range out {
		checker, err := cs.Options[name].checker()
		if err != nil {
			return nil, errors.Trace(err)
		}
		coerced, err := checker.Coerce(value, []string{name})
		if err != nil {
			return nil, errors.Annotatef(err, "option %q", name)
		}
		out[name] = coerced
	}
	return out, nil
}

// Option names understood by the charm.
const (
	OptionPort                 = "port"
	OptionPromotionPolicy      = "promotion-policy"
	OptionReconcileOnDeparture = "reconcile-on-departure"
	OptionLogLevel             = "log-level"
)

const (
	// DefaultPort is the port slurmctld listens on.
	DefaultPort = "6817"

	// DefaultPromotionPolicy promotes the last peer of the membership.
	DefaultPromotionPolicy = "tail"

	// DefaultLogLevel is a loggo logging specification.
	DefaultLogLevel = "<root>=INFO"
)

// PromotionPolicies lists the accepted values of promotion-policy.
var PromotionPolicies = []string{"tail", "natural"}

// Config holds the typed application configuration.
type Config struct {
	// Port is the port slurmctld listens on, published to peers.
	Port string

	// PromotionPolicy selects which peer is promoted to backup
	// controller.
	PromotionPolicy string

	// ReconcileOnDeparture makes the leader reconcile roles on
	// relation-departed rather than waiting for relation-changed.
	ReconcileOnDeparture bool

	// LogLevel is a loggo logging specification.
	LogLevel string
}

// DefaultConfig returns the configuration used when config.yaml declares
// nothing.
func DefaultConfig() Config {
	return Config{
		Port:            DefaultPort,
		PromotionPolicy: DefaultPromotionPolicy,
		LogLevel:        DefaultLogLevel,
	}
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return errors.NotValidf("port %q", c.Port)
	}
	valid := false
	for _, policy := range PromotionPolicies {
		if c.PromotionPolicy == policy {
			valid = true
		}
	}
	if !valid {
		return errors.NotValidf("promotion-policy %q", c.PromotionPolicy)
	}
	if _, err := loggo.ParseConfigString(c.LogLevel); err != nil {
		return errors.NotValidf("log-level %q", c.LogLevel)
	}
	return nil
}

// ParseConfig builds a Config from the application's settings, as
// returned by ConfigSchema.Settings.
func ParseConfig(settings map[string]interface{}) (Config, error) {
	cfg := DefaultConfig()
	for name, value := range settings {
		switch name {
		case OptionPort:
			switch v := value.(type) {
			case string:
				cfg.Port = v
			case int:
				cfg.Port = strconv.Itoa(v)
			default:
				return Config{}, errors.NotValidf("port %v", value)
			}
		case OptionPromotionPolicy:
			cfg.PromotionPolicy = fmt.Sprint(value)
		case OptionReconcileOnDeparture:
			b, ok := value.(bool)
			if !ok {
				return Config{}, errors.NotValidf("reconcile-on-departure %v", value)
			}
			cfg.ReconcileOnDeparture = b
		case OptionLogLevel:
			cfg.LogLevel = fmt.Sprint(value)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}
