// Package config provides Viper-based configuration loading for the skirmish simulator.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// SimulationConfig holds the combat rules shared by every battle.
type SimulationConfig struct {
	// HitPoints is the starting hit points of every unit.
	HitPoints int `mapstructure:"hit_points"`
	// AttackPower is the damage dealt by one attack unless a faction is boosted.
	AttackPower int `mapstructure:"attack_power"`
	// MaxRounds aborts a battle after this many completed rounds. 0 disables the cap.
	MaxRounds int `mapstructure:"max_rounds"`
	// DetectStalemate aborts a battle after a round in which nothing moved or attacked.
	DetectStalemate bool `mapstructure:"detect_stalemate"`
}

// SearchConfig holds attack power search settings.
type SearchConfig struct {
	// Faction is the map letter of the faction whose attack power is raised.
	Faction string `mapstructure:"faction"`
	// StartPower is the first attack power tried.
	StartPower int `mapstructure:"start_power"`
	// MaxPower is the last attack power tried. 0 derives it from the opposing
	// faction's hit points.
	MaxPower int `mapstructure:"max_power"`
	// Strategy is "linear" or "bisect".
	Strategy string `mapstructure:"strategy"`
	// Workers is the number of attempts simulated concurrently.
	Workers int `mapstructure:"workers"`
	// StopOnCasualty ends an attempt at the boosted faction's first loss.
	StopOnCasualty bool `mapstructure:"stop_on_casualty"`
}

// RenderConfig holds board rendering settings.
type RenderConfig struct {
	// Color enables ANSI colouring of faction letters.
	Color bool `mapstructure:"color"`
	// HitPoints appends per-row hit point annotations.
	HitPoints bool `mapstructure:"hit_points"`
	// Palette maps faction letters to color names. Unlisted factions use the
	// default cycle.
	Palette map[string]string `mapstructure:"palette"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Search     SearchConfig     `mapstructure:"search"`
	Render     RenderConfig     `mapstructure:"render"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSearch(c.Search); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.HitPoints < 1 {
		errs = append(errs, fmt.Sprintf("simulation.hit_points must be >= 1, got %d", s.HitPoints))
	}
	if s.AttackPower < 1 {
		errs = append(errs, fmt.Sprintf("simulation.attack_power must be >= 1, got %d", s.AttackPower))
	}
	if s.MaxRounds < 0 {
		errs = append(errs, fmt.Sprintf("simulation.max_rounds must be >= 0, got %d", s.MaxRounds))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSearch(s SearchConfig) error {
	var errs []string
	if len(s.Faction) != 1 || s.Faction[0] < 'A' || s.Faction[0] > 'Z' {
		errs = append(errs, fmt.Sprintf("search.faction must be a single upper-case letter, got %q", s.Faction))
	}
	if s.StartPower < 1 {
		errs = append(errs, fmt.Sprintf("search.start_power must be >= 1, got %d", s.StartPower))
	}
	if s.MaxPower < 0 {
		errs = append(errs, fmt.Sprintf("search.max_power must be >= 0, got %d", s.MaxPower))
	}
	if s.MaxPower > 0 && s.MaxPower < s.StartPower {
		errs = append(errs, "search.max_power must not be below search.start_power")
	}
	validStrategies := map[string]bool{"linear": true, "bisect": true}
	if !validStrategies[s.Strategy] {
		errs = append(errs, fmt.Sprintf("search.strategy must be one of [linear, bisect], got %q", s.Strategy))
	}
	if s.Workers < 1 {
		errs = append(errs, fmt.Sprintf("search.workers must be >= 1, got %d", s.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path skips the file and uses
// defaults plus environment overrides.
//
// Precondition: path must be empty or a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// Default returns the built-in configuration without consulting files or the
// environment.
//
// Postcondition: Returns a Config that passes Validate.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: unmarshalling defaults: %v", err))
	}
	return cfg
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	// Environment variable overrides with SKIRMISH_ prefix
	v.SetEnvPrefix("SKIRMISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("simulation.hit_points", 200)
	v.SetDefault("simulation.attack_power", 3)
	v.SetDefault("simulation.max_rounds", 0)
	v.SetDefault("simulation.detect_stalemate", true)

	v.SetDefault("search.faction", "E")
	v.SetDefault("search.start_power", 4)
	v.SetDefault("search.max_power", 0)
	v.SetDefault("search.strategy", "linear")
	v.SetDefault("search.workers", 1)
	v.SetDefault("search.stop_on_casualty", true)

	v.SetDefault("render.color", false)
	v.SetDefault("render.hit_points", true)
}
