// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// textfuzz-mutate applies mutation rounds to stdin and prints the
// result, for eyeballing what the mutator actually does to an input.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/textfuzz/textfuzz/pkg/mutate"
)

var (
	flagRounds = flag.Int("rounds", 1, "number of mutation rounds to apply")
	flagStack  = flag.Int("stack", 0, "use the stacked strategy with up to N ops per round")
	flagSeed   = flag.Int64("seed", 0, "rng seed (0 means time-based)")
)

func main() {
	flag.Parse()
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read stdin: %v\n", err)
		os.Exit(1)
	}
	seed := *flagSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	var strategy mutate.Strategy = mutate.NewRandomSingle()
	if *flagStack > 0 {
		strategy = mutate.NewStacked(1, *flagStack)
	}
	mutator := mutate.NewMutator(strategy, rand.New(rand.NewSource(seed)))
	for i := 0; i < *flagRounds; i++ {
		data = mutator.Mutate(data)
	}
	os.Stdout.Write(data)
}
