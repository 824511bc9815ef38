// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutate

import "math/rand"

// Strategy decides which operations one mutation round applies,
// in order.
type Strategy interface {
	Select(rnd *rand.Rand) []Op
}

// RandomSingle picks exactly one operation uniformly at random from
// its configured set. This is the default strategy.
type RandomSingle struct {
	Ops []Op
}

func NewRandomSingle(ops ...Op) *RandomSingle {
	if len(ops) == 0 {
		ops = AllOps()
	}
	return &RandomSingle{Ops: ops}
}

func (s *RandomSingle) Select(rnd *rand.Rand) []Op {
	return []Op{s.Ops[rnd.Intn(len(s.Ops))]}
}

// Stacked applies a random-length sequence of [Min, Max] operations,
// each chosen uniformly. Heavier than RandomSingle, useful once the
// corpus has plateaued on single-step mutations.
type Stacked struct {
	Ops      []Op
	Min, Max int
}

func NewStacked(min, max int, ops ...Op) *Stacked {
	if len(ops) == 0 {
		ops = AllOps()
	}
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return &Stacked{Ops: ops, Min: min, Max: max}
}

func (s *Stacked) Select(rnd *rand.Rand) []Op {
	n := s.Min + rnd.Intn(s.Max-s.Min+1)
	ops := make([]Op, n)
	for i := range ops {
		ops[i] = s.Ops[rnd.Intn(len(s.Ops))]
	}
	return ops
}
