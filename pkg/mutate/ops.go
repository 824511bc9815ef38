// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package mutate implements byte-level mutation of corpus inputs:
// primitive operations, strategies that pick which operations to apply,
// and the Mutator that drives one mutation round.
package mutate

import "math/rand"

// Op is a single atomic mutation. Implementations must not modify the
// input slice; when the data changes, the result is freshly allocated.
type Op interface {
	Name() string
	Mutate(rnd *rand.Rand, data []byte) []byte
}

// Printable ASCII range used for replacements and inserts.
const (
	printableMin = 0x20
	printableMax = 0x7e
)

func randPrintable(rnd *rand.Rand) byte {
	return byte(printableMin + rnd.Intn(printableMax-printableMin+1))
}

// AllOps returns the default operation set.
func AllOps() []Op {
	return []Op{
		RandomizeChar{},
		DeleteChar{},
		InsertRandomChar{},
		DuplicateChar{},
	}
}

// RandomizeChar replaces a random byte with a random printable character.
type RandomizeChar struct{}

func (RandomizeChar) Name() string { return "randomize" }

func (RandomizeChar) Mutate(rnd *rand.Rand, data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	res := append([]byte(nil), data...)
	res[rnd.Intn(len(res))] = randPrintable(rnd)
	return res
}

// DeleteChar removes a random byte.
type DeleteChar struct{}

func (DeleteChar) Name() string { return "delete" }

func (DeleteChar) Mutate(rnd *rand.Rand, data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	idx := rnd.Intn(len(data))
	res := make([]byte, 0, len(data)-1)
	res = append(res, data[:idx]...)
	return append(res, data[idx+1:]...)
}

// InsertRandomChar inserts a random printable character at a random
// position, including both ends. Works on empty input.
type InsertRandomChar struct{}

func (InsertRandomChar) Name() string { return "insert" }

func (InsertRandomChar) Mutate(rnd *rand.Rand, data []byte) []byte {
	idx := rnd.Intn(len(data) + 1)
	res := make([]byte, 0, len(data)+1)
	res = append(res, data[:idx]...)
	res = append(res, randPrintable(rnd))
	return append(res, data[idx:]...)
}

// DuplicateChar duplicates a random byte immediately after itself.
type DuplicateChar struct{}

func (DuplicateChar) Name() string { return "duplicate" }

func (DuplicateChar) Mutate(rnd *rand.Rand, data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	idx := rnd.Intn(len(data))
	res := make([]byte, 0, len(data)+1)
	res = append(res, data[:idx+1]...)
	res = append(res, data[idx])
	return append(res, data[idx+1:]...)
}
