// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textfuzz/textfuzz/pkg/corpus"
	"github.com/textfuzz/textfuzz/pkg/cover"
	"github.com/textfuzz/textfuzz/pkg/db"
	"github.com/textfuzz/textfuzz/pkg/feedback"
	"github.com/textfuzz/textfuzz/pkg/mutate"
	"github.com/textfuzz/textfuzz/pkg/sched"
)

// fakeTarget scripts target executions: for run i it returns the
// configured stderr and coverage signal. It implements both the
// executor and the observer side of the external boundary.
type fakeTarget struct {
	script  func(run int) (stderr string, signal *cover.Signal)
	runs    int
	signals map[string]*cover.Signal
}

func newFakeTarget(script func(run int) (string, *cover.Signal)) *fakeTarget {
	return &fakeTarget{
		script:  script,
		signals: make(map[string]*cover.Signal),
	}
}

func (ft *fakeTarget) Run(input []byte) ([]byte, []byte, string, error) {
	stderr, signal := ft.script(ft.runs)
	artifact := fmt.Sprintf("artifact-%v", ft.runs)
	ft.signals[artifact] = signal
	ft.runs++
	return nil, []byte(stderr), artifact, nil
}

func (ft *fakeTarget) Observe(artifact string) (*cover.Signal, error) {
	signal, ok := ft.signals[artifact]
	if !ok {
		return nil, fmt.Errorf("unknown or already consumed artifact %v", artifact)
	}
	delete(ft.signals, artifact)
	return signal, nil
}

func lineSignal(file string, lines ...int) *cover.Signal {
	return &cover.Signal{Lines: map[string][]int{file: lines}}
}

const crashStderr = "ERR:Traceback (most recent call last):\n" +
	"  File \"/target/decoder.py\", line 42, in decode\n" +
	"ValueError: bad\n"

type testEnv struct {
	storeFile string
	store     *db.Store
	corpus    *corpus.Manager
	target    *fakeTarget
	cfg       *Config
}

func newTestEnv(t *testing.T, script func(run int) (string, *cover.Signal)) *testEnv {
	seedDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "seed.txt"), []byte("abc"), 0644))

	storeFile := filepath.Join(t.TempDir(), "test.db")
	store, err := db.Open(storeFile)
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(0))
	target := newFakeTarget(script)
	mgr := corpus.NewManager(seedDir, store)
	env := &testEnv{
		storeFile: storeFile,
		store:     store,
		corpus:    mgr,
		target:    target,
		cfg: &Config{
			Corpus:        mgr,
			Mutator:       mutate.NewMutator(mutate.NewRandomSingle(), rnd),
			Scheduler:     sched.NewRandom(rnd, 3),
			Executor:      target,
			Observer:      target,
			Feedback:      feedback.NewEvaluator(),
			Store:         store,
			MaxIterations: 3,
			TimeLimitSec:  -1,
		},
	}
	return env
}

// reopen opens the store file again after the engine closed it.
func (env *testEnv) reopen(t *testing.T) *db.Store {
	store, err := db.Open(env.storeFile)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func quietTarget(run int) (string, *cover.Signal) {
	return "", lineSignal("decoder.py", 1)
}

func TestStopAtMaxIterations(t *testing.T) {
	env := newTestEnv(t, quietTarget)
	eng := New(env.cfg)
	stop, err := eng.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, "reached max iterations (3)", stop)
	assert.Equal(t, 3, eng.Iterations())
}

func TestZeroIterationsStillFlushes(t *testing.T) {
	env := newTestEnv(t, quietTarget)
	env.cfg.MaxIterations = 0
	eng := New(env.cfg)
	stop, err := eng.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, "reached max iterations (0)", stop)
	assert.Equal(t, 0, eng.Iterations())
	assert.Equal(t, 0, env.target.runs)

	// The bootstrapped corpus was flushed and the store closed even
	// though no iteration ran.
	store := env.reopen(t)
	seeds, err := store.LoadSeeds()
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, []byte("abc"), seeds[0].Data)
}

func TestTimeLimit(t *testing.T) {
	env := newTestEnv(t, quietTarget)
	env.cfg.MaxIterations = -1
	env.cfg.TimeLimitSec = 0
	eng := New(env.cfg)
	stop, err := eng.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, "reached time limit (0s)", stop)
}

func TestInterrupt(t *testing.T) {
	env := newTestEnv(t, quietTarget)
	env.cfg.MaxIterations = -1
	shutdown := make(chan struct{})
	close(shutdown)
	eng := New(env.cfg)
	stop, err := eng.Run(shutdown)
	// An interrupt is a normal stop reason, not an error, and still
	// flushes the corpus.
	require.NoError(t, err)
	assert.Equal(t, "interrupted by user", stop)
	store := env.reopen(t)
	seeds, err := store.LoadSeeds()
	require.NoError(t, err)
	assert.Len(t, seeds, 1)
}

func TestSeedCountersAfterEnergyBurst(t *testing.T) {
	// Corpus of one seed, fixed energy 3, one scheduling pick:
	// times_fuzzed ends at 3 regardless of outcomes.
	env := newTestEnv(t, func(run int) (string, *cover.Signal) {
		// Mix crash and novelty outcomes into the burst.
		if run == 1 {
			return crashStderr, lineSignal("decoder.py", run)
		}
		return "", lineSignal("decoder.py", run)
	})
	eng := New(env.cfg)
	_, err := eng.Run(nil)
	require.NoError(t, err)

	store := env.reopen(t)
	seeds, err := store.LoadSeeds()
	require.NoError(t, err)
	require.NotEmpty(t, seeds)
	assert.Equal(t, 1, seeds[0].TimesPicked)
	assert.Equal(t, 3, seeds[0].TimesFuzzed)
}

func TestCrashRecording(t *testing.T) {
	// Every execution crashes with the same key: one unique crash,
	// two duplicates.
	env := newTestEnv(t, func(run int) (string, *cover.Signal) {
		return crashStderr, &cover.Signal{}
	})
	eng := New(env.cfg)
	_, err := eng.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.UniqueCrashes())

	store := env.reopen(t)
	crashes, err := store.Crashes()
	require.NoError(t, err)
	require.Len(t, crashes, 1)
	assert.Equal(t, "ValueError", crashes[0].Type)
	assert.Equal(t, 3, crashes[0].Count)
}

func TestNovelInputsJoinCorpus(t *testing.T) {
	// Run 0 brings novel coverage, later runs repeat it.
	env := newTestEnv(t, func(run int) (string, *cover.Signal) {
		return "", lineSignal("decoder.py", 1, 2)
	})
	eng := New(env.cfg)
	_, err := eng.Run(nil)
	require.NoError(t, err)

	// Exactly the first execution was novel.
	store := env.reopen(t)
	seeds, err := store.LoadSeeds()
	require.NoError(t, err)
	assert.Len(t, seeds, 2)
}

func TestCrashingNovelInputJoinsCorpus(t *testing.T) {
	env := newTestEnv(t, func(run int) (string, *cover.Signal) {
		if run == 0 {
			return crashStderr, lineSignal("decoder.py", 1)
		}
		return "", lineSignal("decoder.py", 1)
	})
	eng := New(env.cfg)
	_, err := eng.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.UniqueCrashes())

	store := env.reopen(t)
	seeds, err := store.LoadSeeds()
	require.NoError(t, err)
	// The crashing input also expanded coverage, so it joined the
	// corpus alongside the original seed.
	assert.Len(t, seeds, 2)
}

func TestEmptyCorpusFatal(t *testing.T) {
	env := newTestEnv(t, quietTarget)
	// Replace the seed dir with an empty one.
	env.cfg.Corpus = corpus.NewManager(t.TempDir(), env.store)
	eng := New(env.cfg)
	_, err := eng.Run(nil)
	assert.ErrorIs(t, err, corpus.ErrCorpusEmpty)
}

func TestCountersPersistAcrossRuns(t *testing.T) {
	env := newTestEnv(t, quietTarget)
	eng := New(env.cfg)
	_, err := eng.Run(nil)
	require.NoError(t, err)

	// A second engine over the same store resumes with the recorded
	// pick/fuzz history instead of rebootstrapping.
	store := env.reopen(t)
	mgr := corpus.NewManager(t.TempDir(), store)
	require.NoError(t, mgr.Load())
	seed := mgr.Seeds()[0]
	assert.Equal(t, 1, seed.TimesPicked)
	assert.Equal(t, 3, seed.TimesFuzzed)
}
