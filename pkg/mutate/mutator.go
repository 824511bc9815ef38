// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutate

import "math/rand"

// Mutator drives one mutation round: it asks the strategy for a
// sequence of operations and applies them left to right. The only
// state it keeps across calls is the strategy and the rng.
type Mutator struct {
	strategy Strategy
	rnd      *rand.Rand
}

func NewMutator(strategy Strategy, rnd *rand.Rand) *Mutator {
	if strategy == nil {
		strategy = NewRandomSingle()
	}
	return &Mutator{strategy: strategy, rnd: rnd}
}

func (m *Mutator) Mutate(data []byte) []byte {
	for _, op := range m.strategy.Select(m.rnd) {
		data = op.Mutate(m.rnd, data)
	}
	return data
}
