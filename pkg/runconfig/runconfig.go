// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package runconfig holds the engine configuration: what to fuzz,
// where state lives and when to stop.
package runconfig

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/textfuzz/textfuzz/pkg/config"
	"github.com/textfuzz/textfuzz/pkg/osutil"
)

type Config struct {
	// Root of the target project; coverage is scoped to files under it.
	ProjectRoot string `json:"project_root"`
	// Harness command (binary + args) run per input, input on stdin.
	Harness []string `json:"harness"`
	// Directory of initial seed files, read on the first run only.
	CorpusDir string `json:"corpus_dir"`
	// Parent directory for per-run output directories.
	RunsDir string `json:"runs_dir"`

	// Stopping conditions; -1 disables either.
	MaxIterations int `json:"max_iterations"`
	TimeLimitSec  int `json:"time_limit_sec"`

	// Scheduler: "random" or "fast".
	Scheduler string `json:"scheduler"`
	// Fixed energy for the random scheduler.
	FixedEnergy int `json:"fixed_energy"`
	// Power schedule parameters for the fast scheduler.
	EnergyC   float64 `json:"energy_c"`
	MaxEnergy int     `json:"max_energy"`

	Verbosity int `json:"verbosity"`
}

func defaultValues() *Config {
	return &Config{
		RunsDir:       "runs",
		MaxIterations: 1000,
		TimeLimitSec:  60,
		Scheduler:     "fast",
		FixedEnergy:   10,
		EnergyC:       1.0,
		MaxEnergy:     100,
	}
}

func LoadFile(filename string) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadData(data []byte) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadData(data, cfg); err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Complete validates the config and absolutizes all paths.
func Complete(cfg *Config) error {
	if cfg.ProjectRoot == "" {
		return fmt.Errorf("config param project_root is empty")
	}
	if len(cfg.Harness) == 0 {
		return fmt.Errorf("config param harness is empty")
	}
	if cfg.CorpusDir == "" {
		return fmt.Errorf("config param corpus_dir is empty")
	}
	switch cfg.Scheduler {
	case "random", "fast":
	default:
		return fmt.Errorf("unknown scheduler %q (want \"random\" or \"fast\")", cfg.Scheduler)
	}
	if cfg.MaxIterations < -1 {
		return fmt.Errorf("bad config param max_iterations: %v, want -1 or >= 0", cfg.MaxIterations)
	}
	if cfg.TimeLimitSec < -1 {
		return fmt.Errorf("bad config param time_limit_sec: %v, want -1 or >= 0", cfg.TimeLimitSec)
	}
	if cfg.FixedEnergy < 1 {
		return fmt.Errorf("bad config param fixed_energy: %v, want >= 1", cfg.FixedEnergy)
	}
	if cfg.EnergyC <= 0 {
		return fmt.Errorf("bad config param energy_c: %v, want > 0", cfg.EnergyC)
	}
	if cfg.MaxEnergy < 1 {
		return fmt.Errorf("bad config param max_energy: %v, want >= 1", cfg.MaxEnergy)
	}
	cfg.ProjectRoot = osutil.Abs(cfg.ProjectRoot)
	cfg.CorpusDir = osutil.Abs(cfg.CorpusDir)
	cfg.RunsDir = osutil.Abs(cfg.RunsDir)
	return nil
}

// RunDir creates and returns a fresh per-run output directory under
// RunsDir, named by start time plus a short unique suffix.
func (cfg *Config) RunDir() (string, error) {
	name := fmt.Sprintf("%v-%v",
		time.Now().Format("20060102_150405"),
		uuid.NewString()[:8])
	dir := filepath.Join(cfg.RunsDir, name)
	if err := osutil.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("failed to create run dir: %w", err)
	}
	return dir, nil
}
