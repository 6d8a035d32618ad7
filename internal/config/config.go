// Package config loads the machine description and runtime settings from a
// YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/MJE43/rotor-replay-go/internal/analysis"
	"github.com/MJE43/rotor-replay-go/internal/calibrate"
	"github.com/MJE43/rotor-replay-go/internal/slot"
	"github.com/MJE43/rotor-replay-go/internal/store"
)

const (
	envDBDriver = "ROTOR_DB_DRIVER"
	envDBDSN    = "ROTOR_DB_DSN"
	envHTTPAddr = "ROTOR_HTTP_ADDR"
	envLogLevel = "ROTOR_LOG_LEVEL"
)

// Config is the root of the YAML document.
type Config struct {
	Database    store.Config      `yaml:"database"`
	Model       ModelConfig       `yaml:"model"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Calibration CalibrationConfig `yaml:"calibration"`
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
}

// ModelConfig describes the rotors and offsets.
type ModelConfig struct {
	Rotors  [][]int        `yaml:"rotors"`
	Offsets []OffsetConfig `yaml:"offsets"`
	// SearchWindow bounds rotor-position recovery; 0 means rotor length + 2.
	SearchWindow int `yaml:"search_window"`
}

// OffsetConfig keeps probabilities as strings so they stay exact.
type OffsetConfig struct {
	Vector      [3]int `yaml:"vector"`
	Probability string `yaml:"probability"`
}

type AnalysisConfig struct {
	StakePerTier   int64            `yaml:"stake_per_tier"`
	ExploitPayouts map[string]int64 `yaml:"exploit_payouts"`
}

type CalibrationConfig struct {
	Candidates map[string][]int64 `yaml:"candidates"`
	// Order fixes the nesting of candidate symbols; defaults to symbol code order.
	Order   []string         `yaml:"order"`
	Fixed   map[string]int64 `yaml:"fixed"`
	Bands   []calibrate.Band `yaml:"bands"`
	Workers int              `yaml:"workers"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration of the deployed machine.
func Default() *Config {
	m := slot.DefaultModel()
	cfg := &Config{
		Database: store.Config{Driver: store.DriverSQLite, DSN: "rotor.db"},
		Analysis: AnalysisConfig{
			StakePerTier:   analysis.DefaultStakePerTier,
			ExploitPayouts: slot.ExploitPayouts.Names(),
		},
		Calibration: CalibrationConfig{Candidates: map[string][]int64{}},
		HTTP:        HTTPConfig{Address: ":8080"},
		Log:         LogConfig{Level: "info"},
	}
	for _, r := range m.Rotors {
		row := make([]int, len(r))
		for i, s := range r {
			row[i] = int(s)
		}
		cfg.Model.Rotors = append(cfg.Model.Rotors, row)
	}
	for _, o := range m.Offsets {
		cfg.Model.Offsets = append(cfg.Model.Offsets, OffsetConfig{Vector: o.Vector, Probability: o.Probability.String()})
	}
	req := calibrate.DefaultRequest()
	for _, c := range req.Free {
		cfg.Calibration.Candidates[c.Symbol.String()] = c.Values
		cfg.Calibration.Order = append(cfg.Calibration.Order, c.Symbol.String())
	}
	cfg.Calibration.Bands = req.Bands[:]
	return cfg
}

// Load reads the optional .env file, the optional YAML file, then applies
// environment overrides. Empty paths are skipped; a missing .env is not an error.
func Load(yamlPath, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg := Default()
	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// yaml.v3 merges into existing maps, so tables start empty
		def := Default()
		cfg.Analysis.ExploitPayouts = nil
		cfg.Calibration.Candidates = nil
		cfg.Calibration.Order = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if cfg.Analysis.ExploitPayouts == nil {
			cfg.Analysis.ExploitPayouts = def.Analysis.ExploitPayouts
		}
		if cfg.Calibration.Candidates == nil {
			cfg.Calibration.Candidates = def.Calibration.Candidates
			if cfg.Calibration.Order == nil {
				cfg.Calibration.Order = def.Calibration.Order
			}
		}
	}

	if v := os.Getenv(envDBDriver); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv(envDBDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv(envHTTPAddr); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.Log.Level = v
	}

	if _, err := cfg.BuildModel(); err != nil {
		return nil, err
	}
	if _, err := cfg.ExploitTable(); err != nil {
		return nil, err
	}
	if _, err := cfg.CalibrationRequest(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BuildModel converts and validates the model section.
func (c *Config) BuildModel() (*slot.Model, error) {
	if len(c.Model.Rotors) != slot.ReelCount {
		return nil, fmt.Errorf("%w: want %d rotors, got %d", slot.ErrInvalidModel, slot.ReelCount, len(c.Model.Rotors))
	}
	m := &slot.Model{}
	for i, row := range c.Model.Rotors {
		r := make(slot.Rotor, len(row))
		for j, v := range row {
			if v < 0 || v >= slot.SymbolCount {
				return nil, fmt.Errorf("%w: rotor %d position %d has code %d", slot.ErrInvalidModel, i, j, v)
			}
			r[j] = slot.Symbol(v)
		}
		m.Rotors[i] = r
	}
	for i, o := range c.Model.Offsets {
		p, err := decimal.NewFromString(strings.TrimSpace(o.Probability))
		if err != nil {
			return nil, fmt.Errorf("%w: offset %d probability %q: %v", slot.ErrInvalidModel, i, o.Probability, err)
		}
		m.Offsets = append(m.Offsets, slot.Offset{Vector: o.Vector, Probability: p})
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ExploitTable returns the payout table used by the exploit and campaign.
func (c *Config) ExploitTable() (slot.PayoutTable, error) {
	return slot.PayoutTableFromNames(c.Analysis.ExploitPayouts)
}

// CalibrationRequest converts the calibration section.
func (c *Config) CalibrationRequest() (calibrate.Request, error) {
	var req calibrate.Request
	fixed, err := slot.PayoutTableFromNames(c.Calibration.Fixed)
	if err != nil {
		return req, fmt.Errorf("calibration fixed payouts: %w", err)
	}
	req.Fixed = fixed

	order := c.Calibration.Order
	if len(order) == 0 {
		for _, s := range slot.Symbols() {
			if _, ok := c.Calibration.Candidates[s.String()]; ok {
				order = append(order, s.String())
			}
		}
	}
	if len(order) != len(c.Calibration.Candidates) {
		return req, fmt.Errorf("calibration order lists %d symbols, candidates has %d", len(order), len(c.Calibration.Candidates))
	}
	for _, name := range order {
		values, ok := c.Calibration.Candidates[name]
		if !ok {
			return req, fmt.Errorf("calibration order names %q without candidates", name)
		}
		s, err := slot.ParseSymbol(name)
		if err != nil {
			return req, fmt.Errorf("calibration candidates: %w", err)
		}
		req.Free = append(req.Free, calibrate.Candidates{Symbol: s, Values: values})
	}

	if len(c.Calibration.Bands) != 3 {
		return req, fmt.Errorf("calibration needs 3 bands, got %d", len(c.Calibration.Bands))
	}
	copy(req.Bands[:], c.Calibration.Bands)
	return req, nil
}
