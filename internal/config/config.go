package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Assessment struct {
		TTL        string `yaml:"ttl"`
		AttemptTTL string `yaml:"attemptTtl"`
	} `yaml:"assessment"`
	Pipeline Pipeline `yaml:"pipeline"`
	Log      Log      `yaml:"log"`
}

// Pipeline configures the sales-pipeline valuation model and default views.
type Pipeline struct {
	AverageDealValue float64            `yaml:"averageDealValue" validate:"gte=0"`
	ConversionRates  map[string]float64 `yaml:"conversionRates" validate:"omitempty,dive,keys,oneof=new contacted qualified proposal closed,endkeys,gte=0,lte=100"`

	// WindowDays 0 disables the reporting window. Unset means the built-in default.
	WindowDays *int `yaml:"windowDays" validate:"omitempty,gte=0"`
	StaleDays  *int `yaml:"staleDays" validate:"omitempty,gte=0"`
}

// Log selects the zap logger flavour.
type Log struct {
	Level       string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

var validate = validator.New()

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := validate.Struct(cfg.Pipeline); err != nil {
		return cfg, fmt.Errorf("pipeline config: %w", err)
	}
	if err := validate.Struct(cfg.Log); err != nil {
		return cfg, fmt.Errorf("log config: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
