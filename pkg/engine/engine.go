// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package engine wires the corpus, mutator, scheduler, executor and
// feedback evaluator into the main fuzzing loop.
package engine

import (
	"fmt"
	"time"

	"github.com/textfuzz/textfuzz/pkg/corpus"
	"github.com/textfuzz/textfuzz/pkg/cover"
	"github.com/textfuzz/textfuzz/pkg/exec"
	"github.com/textfuzz/textfuzz/pkg/feedback"
	"github.com/textfuzz/textfuzz/pkg/log"
	"github.com/textfuzz/textfuzz/pkg/mutate"
	"github.com/textfuzz/textfuzz/pkg/sched"
	"github.com/textfuzz/textfuzz/pkg/stat"
)

// Store is the slice of the persistent store the engine drives
// directly; the corpus manager holds its own. Implemented by pkg/db.
type Store interface {
	RecordCrash(data []byte, stderr string) (isNew bool, err error)
	FlushCorpus(seeds []*corpus.SeedInput) error
	Close() error
}

type Config struct {
	Corpus    *corpus.Manager
	Mutator   *mutate.Mutator
	Scheduler sched.Scheduler
	Executor  exec.Executor
	Observer  cover.Observer
	Feedback  *feedback.Evaluator
	Store     Store

	// Stopping conditions; -1 disables either.
	MaxIterations int
	TimeLimitSec  int
}

type Engine struct {
	cfg *Config

	iterations    int
	uniqueCrashes int
	startTime     time.Time

	statIters    *stat.Val
	statNewSeeds *stat.Val
	statCrashes  *stat.Val
	statDupCrash *stat.Val
	statExecTime *stat.Sample
}

func New(cfg *Config) *Engine {
	return &Engine{
		cfg:          cfg,
		statIters:    stat.New("iterations", "Total executed mutations"),
		statNewSeeds: stat.New("corpus adds", "Inputs added to the corpus"),
		statCrashes:  stat.New("unique crashes", "Deduplicated crashes recorded"),
		statDupCrash: stat.New("dup crashes", "Crash occurrences matching a known record"),
		statExecTime: stat.NewSample(),
	}
}

func (eng *Engine) Iterations() int    { return eng.iterations }
func (eng *Engine) UniqueCrashes() int { return eng.uniqueCrashes }

// Run drives the fuzzing loop until a stopping condition fires or
// shutdown is closed. On every exit path the full corpus is flushed to
// the store and the store is closed, so recorded progress survives
// interrupts and failures alike.
func (eng *Engine) Run(shutdown <-chan struct{}) (stopReason string, err error) {
	if err := eng.cfg.Corpus.Load(); err != nil {
		eng.cfg.Store.Close()
		return "", err
	}
	eng.iterations = 0
	eng.uniqueCrashes = 0
	eng.startTime = time.Now()

	defer func() {
		if flushErr := eng.cfg.Store.FlushCorpus(eng.cfg.Corpus.Seeds()); flushErr != nil {
			log.Errorf("failed to flush corpus: %v", flushErr)
			if err == nil {
				err = flushErr
			}
		}
		if closeErr := eng.cfg.Store.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for {
		if reason := eng.stopReason(shutdown); reason != "" {
			log.Logf(0, "stopping: %v", reason)
			return reason, nil
		}
		if err := eng.fuzzOne(); err != nil {
			return "", err
		}
	}
}

// stopReason checks the stopping conditions, in order: external
// interrupt, iteration budget, time budget. Empty means keep going.
// Conditions are only checked between seed picks, so a large energy
// value delays reaction by up to that many executions.
func (eng *Engine) stopReason(shutdown <-chan struct{}) string {
	select {
	case <-shutdown:
		return "interrupted by user"
	default:
	}
	if eng.cfg.MaxIterations != -1 && eng.iterations >= eng.cfg.MaxIterations {
		return fmt.Sprintf("reached max iterations (%v)", eng.cfg.MaxIterations)
	}
	if eng.cfg.TimeLimitSec != -1 &&
		time.Since(eng.startTime) >= time.Duration(eng.cfg.TimeLimitSec)*time.Second {
		return fmt.Sprintf("reached time limit (%vs)", eng.cfg.TimeLimitSec)
	}
	return ""
}

// fuzzOne handles one scheduling pick: select a seed, compute its
// energy and run that many mutation rounds against the target.
func (eng *Engine) fuzzOne() error {
	seed, err := eng.cfg.Scheduler.Next(eng.cfg.Corpus.Seeds())
	if err != nil {
		return err
	}
	eng.cfg.Corpus.RecordPicked(seed)
	energy := eng.cfg.Scheduler.Energy(seed)
	log.Logf(2, "picked seed (%v bytes, picked=%v fuzzed=%v), energy %v",
		len(seed.Data), seed.TimesPicked, seed.TimesFuzzed, energy)

	for i := 0; i < energy; i++ {
		mutated := eng.cfg.Mutator.Mutate(seed.Data)

		execStart := time.Now()
		_, stderr, artifact, err := eng.cfg.Executor.Run(mutated)
		if err != nil {
			return err
		}
		eng.statExecTime.Add(float64(time.Since(execStart).Milliseconds()))
		eng.cfg.Corpus.RecordFuzzed(seed)

		signal, err := eng.cfg.Observer.Observe(artifact)
		if err != nil {
			return err
		}
		result := eng.cfg.Feedback.Evaluate(signal, string(stderr))

		if result.IsCrash {
			isNew, err := eng.cfg.Store.RecordCrash(mutated, string(stderr))
			if err != nil {
				return err
			}
			if isNew {
				eng.uniqueCrashes++
				eng.statCrashes.Add(1)
				log.Logf(0, "iter %v: NEW crash (%v unique so far)",
					eng.iterations, eng.uniqueCrashes)
			} else {
				eng.statDupCrash.Add(1)
				log.Logf(1, "iter %v: duplicate crash", eng.iterations)
			}
		}
		if result.AddToCorpus {
			if _, err := eng.cfg.Corpus.Add(mutated); err != nil {
				return err
			}
			eng.statNewSeeds.Add(1)
			log.Logf(1, "iter %v: new coverage, added to corpus", eng.iterations)
		}

		eng.iterations++
		eng.statIters.Add(1)
		if eng.iterations%100 == 0 {
			eng.logProgress()
		}
	}
	return nil
}

func (eng *Engine) logProgress() {
	log.Logf(0, "iters=%v corpus=%v lines=%v branches=%v crashes=%v exec(ms) %v",
		eng.iterations, len(eng.cfg.Corpus.Seeds()),
		eng.cfg.Feedback.SeenLines(), eng.cfg.Feedback.SeenBranches(),
		eng.uniqueCrashes, eng.statExecTime)
}
