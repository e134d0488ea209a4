// Package config loads the worker's own configuration (S4): hardware
// group identity, output-capture caps, and the limits defaults/maxima
// the limits resolver (C5) clamps every job's limits block against.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fuzoj/jobrunner/internal/model"
	"github.com/fuzoj/jobrunner/pkg/logger"
)

const (
	defaultMaxOutputLength     = int64(10 << 20)
	defaultMaxCarboncopyLength = int64(50 << 20)
)

// LimitsConfig mirrors model.Limits field-for-field in YAML form,
// using pointer types so "absent from the file" is distinguishable
// from "explicitly zero" when filling sentinel defaults.
type LimitsConfig struct {
	CPUTime     *float32 `yaml:"cpuTime"`
	WallTime    *float32 `yaml:"wallTime"`
	ExtraTime   *float32 `yaml:"extraTime"`
	StackSize   *uint64  `yaml:"stackSize"`
	MemoryUsage *uint64  `yaml:"memoryUsage"`
	ExtraMemory *uint64  `yaml:"extraMemory"`
	Processes   *uint64  `yaml:"processes"`
	DiskSize    *uint64  `yaml:"diskSize"`
	DiskFiles   *uint64  `yaml:"diskFiles"`
}

func (c LimitsConfig) toLimits() model.Limits {
	l := model.UndefinedLimits()
	if c.CPUTime != nil {
		l.CPUTime = *c.CPUTime
	}
	if c.WallTime != nil {
		l.WallTime = *c.WallTime
	}
	if c.ExtraTime != nil {
		l.ExtraTime = *c.ExtraTime
	}
	if c.StackSize != nil {
		l.StackSize = *c.StackSize
	}
	if c.MemoryUsage != nil {
		l.MemoryUsage = *c.MemoryUsage
	}
	if c.ExtraMemory != nil {
		l.ExtraMemory = *c.ExtraMemory
	}
	if c.Processes != nil {
		l.Processes = *c.Processes
	}
	if c.DiskSize != nil {
		l.DiskSize = *c.DiskSize
	}
	if c.DiskFiles != nil {
		l.DiskFiles = *c.DiskFiles
	}
	return l
}

// BrokerConfig holds the broker websocket endpoint.
type BrokerConfig struct {
	URL string `yaml:"url"`
}

// FileConfig holds local filesystem roots the worker operates under.
type FileConfig struct {
	CacheDir string `yaml:"cacheDir"`
	JudgesDir string `yaml:"judgesDir"`
}

// WorkerConfig is the worker's full configuration, loaded from YAML.
type WorkerConfig struct {
	WorkerID string `yaml:"workerId"`
	Hwgroup  string `yaml:"hwgroup"`

	MaxOutputLength     int64 `yaml:"maxOutputLength"`
	MaxCarboncopyLength int64 `yaml:"maxCarboncopyLength"`

	LimitDefaults LimitsConfig `yaml:"limitDefaults"`
	LimitMaxima   LimitsConfig `yaml:"limitMaxima"`

	Broker BrokerConfig `yaml:"broker"`
	Files  FileConfig   `yaml:"files"`
	Logger logger.Config `yaml:"logger"`
}

// Defaults returns LimitDefaults resolved to model.Limits.
func (c *WorkerConfig) Defaults() model.Limits { return c.LimitDefaults.toLimits() }

// Maxima returns LimitMaxima resolved to model.Limits.
func (c *WorkerConfig) Maxima() model.Limits { return c.LimitMaxima.toLimits() }

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// Load reads and validates the worker configuration at path, filling
// in any unset cap with its built-in default.
func Load(path string) (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.WorkerID == "" {
		return nil, fmt.Errorf("workerId is required")
	}
	if cfg.Hwgroup == "" {
		return nil, fmt.Errorf("hwgroup is required")
	}
	if cfg.Broker.URL == "" {
		return nil, fmt.Errorf("broker.url is required")
	}
	if cfg.MaxOutputLength <= 0 {
		cfg.MaxOutputLength = defaultMaxOutputLength
	}
	if cfg.MaxCarboncopyLength <= 0 {
		cfg.MaxCarboncopyLength = defaultMaxCarboncopyLength
	}
	return &cfg, nil
}
