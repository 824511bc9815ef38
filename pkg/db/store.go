// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package db

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/textfuzz/textfuzz/pkg/corpus"
	"github.com/textfuzz/textfuzz/pkg/hash"
	"github.com/textfuzz/textfuzz/pkg/report"
)

const (
	seedPrefix  = "seed/"
	crashPrefix = "crash/"
)

// Store is the typed persistence layer: seeds keyed by insertion
// sequence, crash records keyed by the hash of their dedup key with a
// single record per key.
type Store struct {
	kv       *kvFile
	nextSeed uint64
}

func Open(filename string) (*Store, error) {
	kv, err := openKV(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %v: %w", filename, err)
	}
	store := &Store{kv: kv}
	for _, key := range kv.keys() {
		if isSeedKey(key) && kv.seq(key) >= store.nextSeed {
			store.nextSeed = kv.seq(key) + 1
		}
	}
	return store, nil
}

func (store *Store) Close() error {
	return store.kv.close()
}

type seedRecord struct {
	Data        []byte    `json:"data"`
	TimesPicked int       `json:"times_picked"`
	TimesFuzzed int       `json:"times_fuzzed"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveSeed persists a new seed at the end of the insertion order.
func (store *Store) SaveSeed(seed *corpus.SeedInput) error {
	seq := store.nextSeed
	if err := store.putSeed(seed, seq, time.Now()); err != nil {
		return err
	}
	store.nextSeed = seq + 1
	return nil
}

func (store *Store) putSeed(seed *corpus.SeedInput, seq uint64, createdAt time.Time) error {
	val, err := json.Marshal(&seedRecord{
		Data:        seed.Data,
		TimesPicked: seed.TimesPicked,
		TimesFuzzed: seed.TimesFuzzed,
		CreatedAt:   createdAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode seed: %w", err)
	}
	return store.kv.save(seedKey(seq), val, seq)
}

// LoadSeeds returns all stored seeds in insertion order.
func (store *Store) LoadSeeds() ([]*corpus.SeedInput, error) {
	type entry struct {
		seq  uint64
		seed *corpus.SeedInput
	}
	var entries []entry
	for _, key := range store.kv.keys() {
		if !isSeedKey(key) {
			continue
		}
		val, _ := store.kv.get(key)
		var rec seedRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode seed record %v: %w", key, err)
		}
		entries = append(entries, entry{
			seq: store.kv.seq(key),
			seed: &corpus.SeedInput{
				Data:        rec.Data,
				TimesPicked: rec.TimesPicked,
				TimesFuzzed: rec.TimesFuzzed,
			},
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	seeds := make([]*corpus.SeedInput, len(entries))
	for i, ent := range entries {
		seeds[i] = ent.seed
	}
	return seeds, nil
}

// FlushCorpus replaces the entire stored corpus with the current
// in-memory state. The rewrite goes through compaction, so the stored
// corpus is replaced atomically: a crash mid-flush leaves the previous
// snapshot intact.
func (store *Store) FlushCorpus(seeds []*corpus.SeedInput) error {
	now := time.Now()
	recs := make(map[string]record, len(seeds))
	for i, seed := range seeds {
		seq := uint64(i)
		val, err := json.Marshal(&seedRecord{
			Data:        seed.Data,
			TimesPicked: seed.TimesPicked,
			TimesFuzzed: seed.TimesFuzzed,
			CreatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("failed to encode seed: %w", err)
		}
		recs[seedKey(seq)] = record{val: val, seq: seq}
	}
	store.nextSeed = uint64(len(seeds))
	if err := store.kv.resetPrefix(seedPrefix, recs); err != nil {
		return fmt.Errorf("failed to flush corpus: %w", err)
	}
	return nil
}

// CrashRecord is one deduplicated crash: the first occurrence's
// parsed fields and sample input, plus occurrence bookkeeping.
type CrashRecord struct {
	Type        string    `json:"exception_type"`
	Message     string    `json:"exception_message"`
	File        string    `json:"file"`
	Line        int       `json:"line"`
	Traceback   string    `json:"traceback"`
	Data        []byte    `json:"data"`
	Count       int       `json:"count"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// RecordCrash parses the crash stderr and records it, deduplicating by
// (exception type, file, line). A repeat occurrence bumps the count and
// the last-seen time but keeps every other field of the original
// record. Returns whether the crash was new.
func (store *Store) RecordCrash(data []byte, stderr string) (bool, error) {
	crash := report.Parse(stderr)
	key := crashKey(crash)
	now := time.Now()
	if val, ok := store.kv.get(key); ok {
		var rec CrashRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return false, fmt.Errorf("failed to decode crash record %v: %w", key, err)
		}
		rec.Count++
		rec.LastSeenAt = now
		return false, store.putCrash(key, &rec)
	}
	rec := &CrashRecord{
		Type:        crash.Type,
		Message:     crash.Message,
		File:        crash.File,
		Line:        crash.Line,
		Traceback:   crash.Traceback,
		Data:        append([]byte(nil), data...),
		Count:       1,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	return true, store.putCrash(key, rec)
}

// Crashes returns all crash records, most frequent first.
func (store *Store) Crashes() ([]*CrashRecord, error) {
	var res []*CrashRecord
	for _, key := range store.kv.keys() {
		if !strings.HasPrefix(key, crashPrefix) {
			continue
		}
		val, _ := store.kv.get(key)
		var rec CrashRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode crash record %v: %w", key, err)
		}
		res = append(res, &rec)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		return res[i].FirstSeenAt.Before(res[j].FirstSeenAt)
	})
	return res, nil
}

func (store *Store) putCrash(key string, rec *CrashRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode crash record: %w", err)
	}
	return store.kv.save(key, val, 0)
}

func seedKey(seq uint64) string {
	return fmt.Sprintf("%v%020d", seedPrefix, seq)
}

func isSeedKey(key string) bool {
	return strings.HasPrefix(key, seedPrefix)
}

func crashKey(crash *report.Crash) string {
	return crashPrefix + hash.String([]byte(crash.Key()))
}
