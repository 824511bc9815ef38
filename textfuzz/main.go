// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// textfuzz is the coverage-guided text fuzzer binary: it mutates seed
// inputs, runs them against a harness, and records inputs that expand
// coverage or crash the target.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/textfuzz/textfuzz/pkg/corpus"
	"github.com/textfuzz/textfuzz/pkg/cover"
	"github.com/textfuzz/textfuzz/pkg/db"
	"github.com/textfuzz/textfuzz/pkg/engine"
	"github.com/textfuzz/textfuzz/pkg/exec"
	"github.com/textfuzz/textfuzz/pkg/feedback"
	"github.com/textfuzz/textfuzz/pkg/log"
	"github.com/textfuzz/textfuzz/pkg/mutate"
	"github.com/textfuzz/textfuzz/pkg/osutil"
	"github.com/textfuzz/textfuzz/pkg/runconfig"
	"github.com/textfuzz/textfuzz/pkg/sched"
	"github.com/textfuzz/textfuzz/pkg/stat"
)

var (
	flagConfig = flag.String("config", "", "configuration file")
	flagDebug  = flag.Bool("debug", false, "log everything")
	flagV      = flag.Int("vv", 0, "verbosity")
)

func main() {
	flag.Parse()
	if *flagConfig == "" {
		fmt.Fprintf(os.Stderr, "usage: textfuzz -config=config.json\n")
		os.Exit(1)
	}
	cfg, err := runconfig.LoadFile(*flagConfig)
	if err != nil {
		log.Fatal(err)
	}
	verbosity := cfg.Verbosity
	if *flagV > verbosity {
		verbosity = *flagV
	}
	if *flagDebug {
		verbosity = 100
	}
	log.SetVerbosity(verbosity)

	runDir, err := cfg.RunDir()
	if err != nil {
		log.Fatal(err)
	}
	closeLog, err := log.TeeToFile(filepath.Join(runDir, "run.log"))
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()
	log.Logf(0, "run dir: %v", runDir)

	store, err := db.Open(filepath.Join(runDir, "textfuzz.db"))
	if err != nil {
		log.Fatal(err)
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	scheduler, err := sched.New(cfg.Scheduler, rnd, cfg.FixedEnergy, cfg.EnergyC, cfg.MaxEnergy)
	if err != nil {
		log.Fatal(err)
	}

	eng := engine.New(&engine.Config{
		Corpus:        corpus.NewManager(cfg.CorpusDir, store),
		Mutator:       mutate.NewMutator(mutate.NewRandomSingle(), rnd),
		Scheduler:     scheduler,
		Executor:      exec.NewCmdExecutor(cfg.ProjectRoot, cfg.Harness[0], cfg.Harness[1:]...),
		Observer:      cover.NewFileObserver(cfg.ProjectRoot),
		Feedback:      feedback.NewEvaluator(),
		Store:         store,
		MaxIterations: cfg.MaxIterations,
		TimeLimitSec:  cfg.TimeLimitSec,
	})

	shutdown := make(chan struct{})
	osutil.HandleInterrupts(shutdown)

	start := time.Now()
	reason, err := eng.Run(shutdown)
	if err != nil {
		log.Fatalf("fuzzing failed: %v", err)
	}
	elapsed := time.Since(start).Round(time.Second)
	log.Logf(0, "done in %v: %v", elapsed, reason)
	for _, metric := range stat.Collect() {
		log.Logf(0, "  %-16v %v", metric.Name, metric.Value)
	}
}
