// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package corpus owns the pool of seed inputs and their scheduling
// metadata. Seeds are restored from the persistent store or, on a first
// run, bootstrapped from a directory of seed files. Seeds are never
// deleted during a run.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/textfuzz/textfuzz/pkg/log"
	"github.com/textfuzz/textfuzz/pkg/osutil"
	"github.com/textfuzz/textfuzz/pkg/stat"
)

// ErrCorpusEmpty is returned by Load when neither the store nor the
// seed directory yields any seeds. An empty corpus is a fatal
// configuration error: the fuzzing loop has nothing to mutate.
var ErrCorpusEmpty = errors.New("corpus is empty after load and bootstrap")

// SeedInput is a stored input used as a mutation starting point.
// Counters are monotonic and mutated only through RecordPicked /
// RecordFuzzed.
type SeedInput struct {
	Data        []byte
	TimesPicked int
	TimesFuzzed int
}

// Store is the slice of the persistent store the corpus manager needs.
// Implemented by pkg/db.
type Store interface {
	SaveSeed(seed *SeedInput) error
	LoadSeeds() ([]*SeedInput, error)
}

type Manager struct {
	seedDir string
	store   Store
	seeds   []*SeedInput

	statSize *stat.Val
}

func NewManager(seedDir string, store Store) *Manager {
	return &Manager{
		seedDir:  seedDir,
		store:    store,
		statSize: stat.New("corpus size", "Number of seeds in the corpus"),
	}
}

// Load restores seeds from the store. If the store has none (first
// run), it reads every regular file in the seed directory in sorted
// name order, persists each as a fresh seed and populates the pool.
func (mgr *Manager) Load() error {
	seeds, err := mgr.store.LoadSeeds()
	if err != nil {
		return fmt.Errorf("failed to load corpus from store: %w", err)
	}
	mgr.seeds = seeds
	if len(mgr.seeds) == 0 {
		if err := mgr.bootstrap(); err != nil {
			return err
		}
	}
	if len(mgr.seeds) == 0 {
		return fmt.Errorf("%w (seed dir %v)", ErrCorpusEmpty, mgr.seedDir)
	}
	mgr.statSize.Add(len(mgr.seeds))
	log.Logf(0, "loaded corpus: %v seeds", len(mgr.seeds))
	return nil
}

func (mgr *Manager) bootstrap() error {
	files, err := osutil.ListDir(mgr.seedDir)
	if err != nil {
		return fmt.Errorf("failed to read seed dir %v: %w", mgr.seedDir, err)
	}
	for _, file := range files {
		data, err := os.ReadFile(filepath.Join(mgr.seedDir, file))
		if err != nil {
			return fmt.Errorf("failed to read seed file %v: %w", file, err)
		}
		seed := &SeedInput{Data: data}
		if err := mgr.store.SaveSeed(seed); err != nil {
			return err
		}
		mgr.seeds = append(mgr.seeds, seed)
	}
	return nil
}

// Seeds returns a snapshot of the pool. The returned slice is safe to
// iterate while seeds are being added to the manager.
func (mgr *Manager) Seeds() []*SeedInput {
	return append([]*SeedInput(nil), mgr.seeds...)
}

// Add persists an interesting input as a new seed and appends it to
// the pool. Identical data is not deduplicated: two seeds with the
// same bytes are legal and independent.
func (mgr *Manager) Add(data []byte) (*SeedInput, error) {
	seed := &SeedInput{Data: append([]byte(nil), data...)}
	if err := mgr.store.SaveSeed(seed); err != nil {
		return nil, err
	}
	mgr.seeds = append(mgr.seeds, seed)
	mgr.statSize.Add(1)
	return seed, nil
}

func (mgr *Manager) RecordPicked(seed *SeedInput) {
	seed.TimesPicked++
}

func (mgr *Manager) RecordFuzzed(seed *SeedInput) {
	seed.TimesFuzzed++
}
