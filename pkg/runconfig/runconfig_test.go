// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package runconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadData([]byte(`{
		# comments are allowed
		"project_root": "/target",
		"harness": ["python3", "harness.py"],
		"corpus_dir": "/target/corpus"
	}`))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MaxIterations)
	assert.Equal(t, 60, cfg.TimeLimitSec)
	assert.Equal(t, "fast", cfg.Scheduler)
	assert.Equal(t, 1.0, cfg.EnergyC)
	assert.Equal(t, 100, cfg.MaxEnergy)
	assert.Equal(t, 10, cfg.FixedEnergy)
}

func TestExplicitZeroIterations(t *testing.T) {
	// 0 is a valid budget (stop immediately); only absence means the
	// default.
	cfg, err := LoadData([]byte(`{
		"project_root": "/target",
		"harness": ["./harness"],
		"corpus_dir": "/target/corpus",
		"max_iterations": 0
	}`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxIterations)
}

func TestDisableSentinels(t *testing.T) {
	cfg, err := LoadData([]byte(`{
		"project_root": "/target",
		"harness": ["./harness"],
		"corpus_dir": "/target/corpus",
		"max_iterations": -1,
		"time_limit_sec": -1
	}`))
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.MaxIterations)
	assert.Equal(t, -1, cfg.TimeLimitSec)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing project_root", `{"harness": ["h"], "corpus_dir": "c"}`},
		{"missing harness", `{"project_root": "p", "corpus_dir": "c"}`},
		{"missing corpus_dir", `{"project_root": "p", "harness": ["h"]}`},
		{"unknown scheduler", `{"project_root": "p", "harness": ["h"], "corpus_dir": "c", "scheduler": "afl"}`},
		{"bad max_iterations", `{"project_root": "p", "harness": ["h"], "corpus_dir": "c", "max_iterations": -2}`},
		{"bad energy_c", `{"project_root": "p", "harness": ["h"], "corpus_dir": "c", "energy_c": 0}`},
		{"bad max_energy", `{"project_root": "p", "harness": ["h"], "corpus_dir": "c", "max_energy": 0}`},
		{"unknown field", `{"project_root": "p", "harness": ["h"], "corpus_dir": "c", "scheduller": "fast"}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadData([]byte(test.data))
			assert.Error(t, err)
		})
	}
}

func TestSchedulerNames(t *testing.T) {
	for _, name := range []string{"random", "fast"} {
		_, err := LoadData([]byte(`{
			"project_root": "p",
			"harness": ["h"],
			"corpus_dir": "c",
			"scheduler": "` + name + `"
		}`))
		assert.NoError(t, err)
	}
}

func TestRunDir(t *testing.T) {
	cfg := defaultValues()
	cfg.RunsDir = t.TempDir()
	dir1, err := cfg.RunDir()
	require.NoError(t, err)
	dir2, err := cfg.RunDir()
	require.NoError(t, err)
	assert.NotEqual(t, dir1, dir2)
	assert.DirExists(t, dir1)
	assert.DirExists(t, dir2)
}
