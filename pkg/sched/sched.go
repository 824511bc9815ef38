// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package sched chooses which seed to fuzz next and how many mutation
// rounds (energy) to spend on it.
package sched

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/textfuzz/textfuzz/pkg/corpus"
)

// ErrEmptyPool is returned when a scheduler is invoked with zero
// seeds. The corpus is never empty after a successful load, so hitting
// this is an internal invariant violation.
var ErrEmptyPool = errors.New("cannot schedule from an empty seed pool")

type Scheduler interface {
	// Next selects the seed to fuzz from the given pool.
	Next(seeds []*corpus.SeedInput) (*corpus.SeedInput, error)
	// Energy returns the number of mutation rounds for the selected
	// seed, always >= 1.
	Energy(seed *corpus.SeedInput) int
}

const DefaultEnergy = 10

// Random picks seeds uniformly at random and assigns fixed energy.
type Random struct {
	rnd    *rand.Rand
	energy int
}

func NewRandom(rnd *rand.Rand, energy int) *Random {
	if energy < 1 {
		energy = DefaultEnergy
	}
	return &Random{rnd: rnd, energy: energy}
}

func (s *Random) Next(seeds []*corpus.SeedInput) (*corpus.SeedInput, error) {
	if len(seeds) == 0 {
		return nil, ErrEmptyPool
	}
	return seeds[s.rnd.Intn(len(seeds))], nil
}

func (s *Random) Energy(seed *corpus.SeedInput) int {
	return s.energy
}

// Fast implements the AFL-Fast exponential power schedule:
//
//	energy = clamp(c * 2^picked / (fuzzed+1), 1, max)
//
// Seeds picked often but fuzzed little get exponentially more rounds;
// the budget decays as fuzz rounds accumulate. Selection itself stays
// uniform: the schedule shapes energy, not choice.
type Fast struct {
	rnd       *rand.Rand
	c         float64
	maxEnergy int
}

func NewFast(rnd *rand.Rand, c float64, maxEnergy int) *Fast {
	return &Fast{rnd: rnd, c: c, maxEnergy: maxEnergy}
}

func (s *Fast) Next(seeds []*corpus.SeedInput) (*corpus.SeedInput, error) {
	if len(seeds) == 0 {
		return nil, ErrEmptyPool
	}
	return seeds[s.rnd.Intn(len(seeds))], nil
}

func (s *Fast) Energy(seed *corpus.SeedInput) int {
	raw := s.c * math.Exp2(float64(seed.TimesPicked)) / float64(seed.TimesFuzzed+1)
	// 2^picked overflows float64 eventually; the max clamp absorbs
	// +Inf before the int conversion.
	if raw >= float64(s.maxEnergy) {
		return s.maxEnergy
	}
	energy := int(raw)
	if energy < 1 {
		return 1
	}
	return energy
}

// New builds a scheduler from its config name.
func New(name string, rnd *rand.Rand, fixedEnergy int, energyC float64, maxEnergy int) (Scheduler, error) {
	switch name {
	case "random":
		return NewRandom(rnd, fixedEnergy), nil
	case "fast":
		return NewFast(rnd, energyC, maxEnergy), nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q (want \"random\" or \"fast\")", name)
	}
}
