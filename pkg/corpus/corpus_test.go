// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store for testing the manager without
// dragging in the real file store.
type memStore struct {
	saved  []*SeedInput
	stored []*SeedInput
	fail   error
}

func (st *memStore) SaveSeed(seed *SeedInput) error {
	if st.fail != nil {
		return st.fail
	}
	st.saved = append(st.saved, seed)
	return nil
}

func (st *memStore) LoadSeeds() ([]*SeedInput, error) {
	if st.fail != nil {
		return nil, st.fail
	}
	return st.stored, nil
}

func seedDir(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0644))
	}
	return dir
}

func TestLoadFromStore(t *testing.T) {
	store := &memStore{stored: []*SeedInput{
		{Data: []byte("a"), TimesPicked: 1, TimesFuzzed: 2},
		{Data: []byte("b")},
	}}
	mgr := NewManager(seedDir(t, nil), store)
	require.NoError(t, mgr.Load())
	seeds := mgr.Seeds()
	require.Len(t, seeds, 2)
	// Restored metadata is preserved, and the seed dir is not read.
	assert.Equal(t, 1, seeds[0].TimesPicked)
	assert.Equal(t, 2, seeds[0].TimesFuzzed)
	assert.Empty(t, store.saved)
}

func TestBootstrapFromDir(t *testing.T) {
	store := &memStore{}
	mgr := NewManager(seedDir(t, map[string]string{
		"b.txt": "second",
		"a.txt": "first",
	}), store)
	require.NoError(t, mgr.Load())
	seeds := mgr.Seeds()
	require.Len(t, seeds, 2)
	// Files are read in sorted name order with zeroed counters,
	// and each is persisted.
	assert.Equal(t, []byte("first"), seeds[0].Data)
	assert.Equal(t, []byte("second"), seeds[1].Data)
	assert.Equal(t, 0, seeds[0].TimesPicked)
	assert.Len(t, store.saved, 2)
}

func TestLoadEmpty(t *testing.T) {
	mgr := NewManager(seedDir(t, nil), &memStore{})
	err := mgr.Load()
	assert.ErrorIs(t, err, ErrCorpusEmpty)
}

func TestLoadMissingDir(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "nonexistent"), &memStore{})
	assert.Error(t, mgr.Load())
}

func TestAdd(t *testing.T) {
	store := &memStore{stored: []*SeedInput{{Data: []byte("seed")}}}
	mgr := NewManager(seedDir(t, nil), store)
	require.NoError(t, mgr.Load())

	seed, err := mgr.Add([]byte("new"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), seed.Data)
	assert.Equal(t, 0, seed.TimesPicked)
	assert.Len(t, mgr.Seeds(), 2)
	assert.Len(t, store.saved, 1)

	// Identical data makes an independent seed, no dedup.
	dup, err := mgr.Add([]byte("new"))
	require.NoError(t, err)
	assert.NotSame(t, seed, dup)
	assert.Len(t, mgr.Seeds(), 3)
}

func TestAddStoreFailure(t *testing.T) {
	store := &memStore{stored: []*SeedInput{{Data: []byte("seed")}}}
	mgr := NewManager(seedDir(t, nil), store)
	require.NoError(t, mgr.Load())

	store.fail = errors.New("disk full")
	_, err := mgr.Add([]byte("new"))
	assert.Error(t, err)
	// The failed seed must not land in the pool.
	assert.Len(t, mgr.Seeds(), 1)
}

func TestRecordCounters(t *testing.T) {
	store := &memStore{stored: []*SeedInput{{Data: []byte("seed")}}}
	mgr := NewManager(seedDir(t, nil), store)
	require.NoError(t, mgr.Load())
	seed := mgr.Seeds()[0]

	for i := 1; i <= 5; i++ {
		mgr.RecordPicked(seed)
		assert.Equal(t, i, seed.TimesPicked)
	}
	for i := 1; i <= 7; i++ {
		mgr.RecordFuzzed(seed)
		assert.Equal(t, i, seed.TimesFuzzed)
	}
	// The counters are independent.
	assert.Equal(t, 5, seed.TimesPicked)
}

func TestSeedsSnapshot(t *testing.T) {
	store := &memStore{stored: []*SeedInput{{Data: []byte("seed")}}}
	mgr := NewManager(seedDir(t, nil), store)
	require.NoError(t, mgr.Load())

	snapshot := mgr.Seeds()
	_, err := mgr.Add([]byte("more"))
	require.NoError(t, err)
	// The earlier snapshot is unaffected by the add.
	assert.Len(t, snapshot, 1)
	assert.Len(t, mgr.Seeds(), 2)
}
