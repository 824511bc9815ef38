// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package db implements the fuzzer's persistent store: corpus seeds
// and deduplicated crash records survive process restarts in a single
// append-mostly key-value file. Records are cached in memory and every
// write is committed to disk before the call returns; compaction
// rewrites the file through a temp file and an atomic rename.
package db

import (
	"bufio"
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/textfuzz/textfuzz/pkg/osutil"
)

const (
	kvMagic  = uint32(0x7af2db)
	recMagic = uint32(0x7af2ec)
	version  = uint32(1)
	// seq value marking a deletion tombstone.
	seqTombstone = ^uint64(0)
)

type record struct {
	val []byte
	seq uint64
}

// kvFile is the storage layer under Store: a map of records mirrored
// in a file. Writes append; deletions append tombstones; stale entries
// are dropped on compaction.
type kvFile struct {
	filename string
	records  map[string]record
	file     *os.File // open for append
	stale    int      // records in the file beyond len(records)
}

func openKV(filename string) (*kvFile, error) {
	kv := &kvFile{
		filename: filename,
		records:  make(map[string]record),
	}
	data, err := os.ReadFile(filename)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) > 0 {
		if err := kv.deserialize(data); err != nil {
			return nil, err
		}
	}
	// Compact on open: drops tombstones and duplicate versions, and
	// verifies early that the directory is writable.
	if err := kv.compact(); err != nil {
		return nil, err
	}
	return kv, nil
}

func (kv *kvFile) get(key string) ([]byte, bool) {
	rec, ok := kv.records[key]
	return rec.val, ok
}

func (kv *kvFile) keys() []string {
	res := make([]string, 0, len(kv.records))
	for key := range kv.records {
		res = append(res, key)
	}
	return res
}

func (kv *kvFile) seq(key string) uint64 {
	return kv.records[key].seq
}

// save commits the record to the file before returning.
func (kv *kvFile) save(key string, val []byte, seq uint64) error {
	if seq == seqTombstone {
		panic("reserved seq")
	}
	if _, ok := kv.records[key]; ok {
		kv.stale++
	}
	kv.records[key] = record{val: val, seq: seq}
	buf := new(bytes.Buffer)
	serializeRecord(buf, key, val, seq)
	return kv.append(buf.Bytes())
}

// delete removes a single record by appending a tombstone. It serves
// point maintenance of the store; bulk rewrites of whole key ranges go
// through resetPrefix instead.
func (kv *kvFile) delete(key string) error {
	if _, ok := kv.records[key]; !ok {
		return nil
	}
	delete(kv.records, key)
	kv.stale += 2 // the original record and the tombstone
	buf := new(bytes.Buffer)
	serializeRecord(buf, key, nil, seqTombstone)
	return kv.append(buf.Bytes())
}

// resetPrefix drops all records under prefix, installs the given
// replacements and commits through a single compaction. Skipping
// per-key tombstones here keeps the replacement atomic: the file holds
// either the old record set or the new one, never a partial mix.
func (kv *kvFile) resetPrefix(prefix string, recs map[string]record) error {
	for key := range kv.records {
		if strings.HasPrefix(key, prefix) {
			delete(kv.records, key)
		}
	}
	for key, rec := range recs {
		kv.records[key] = rec
	}
	return kv.compact()
}

func (kv *kvFile) append(data []byte) error {
	if kv.stale > len(kv.records) {
		return kv.compact()
	}
	if _, err := kv.file.Write(data); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return nil
}

// compact rewrites the whole store from the in-memory state. The temp
// file plus rename makes the replacement atomic: a crash mid-compaction
// leaves the previous file intact.
func (kv *kvFile) compact() error {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, kvMagic)
	binary.Write(buf, binary.LittleEndian, version)
	for key, rec := range kv.records {
		serializeRecord(buf, key, rec.val, rec.seq)
	}
	tmp := kv.filename + ".tmp"
	if err := osutil.WriteFile(tmp, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := osutil.Rename(tmp, kv.filename); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	if kv.file != nil {
		kv.file.Close()
	}
	f, err := os.OpenFile(kv.filename, os.O_WRONLY|os.O_APPEND, osutil.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("failed to reopen store file: %w", err)
	}
	kv.file = f
	kv.stale = 0
	return nil
}

func (kv *kvFile) close() error {
	if kv.file == nil {
		return nil
	}
	err := kv.file.Close()
	kv.file = nil
	return err
}

func serializeRecord(w *bytes.Buffer, key string, val []byte, seq uint64) {
	binary.Write(w, binary.LittleEndian, recMagic)
	binary.Write(w, binary.LittleEndian, uint32(len(key)))
	w.WriteString(key)
	binary.Write(w, binary.LittleEndian, seq)
	if seq == seqTombstone {
		return
	}
	if len(val) == 0 {
		binary.Write(w, binary.LittleEndian, uint32(0))
		return
	}
	compressed := new(bytes.Buffer)
	fw, err := flate.NewWriter(compressed, flate.BestCompression)
	if err != nil {
		panic(err)
	}
	fw.Write(val)
	fw.Close()
	binary.Write(w, binary.LittleEndian, uint32(compressed.Len()))
	w.Write(compressed.Bytes())
}

func (kv *kvFile) deserialize(data []byte) error {
	r := bufio.NewReader(bytes.NewReader(data))
	var magic, ver uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return fmt.Errorf("failed to read store header: %w", err)
	}
	if magic != kvMagic {
		return fmt.Errorf("bad store header: 0x%x", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &ver); err != nil {
		return fmt.Errorf("failed to read store version: %w", err)
	}
	if ver == 0 || ver > version {
		return fmt.Errorf("bad store version: %v", ver)
	}
	for {
		key, val, seq, err := deserializeRecord(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// A torn tail write loses the last record, not the store.
			return nil
		}
		kv.stale++
		if seq == seqTombstone {
			delete(kv.records, key)
		} else {
			kv.records[key] = record{val: val, seq: seq}
		}
	}
}

func deserializeRecord(r *bufio.Reader) (key string, val []byte, seq uint64, err error) {
	var magic uint32
	if err = binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return
	}
	if magic != recMagic {
		err = fmt.Errorf("bad record header: 0x%x", magic)
		return
	}
	var keyLen uint32
	if err = binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
		return
	}
	keyBuf := make([]byte, keyLen)
	if _, err = io.ReadFull(r, keyBuf); err != nil {
		return
	}
	key = string(keyBuf)
	if err = binary.Read(r, binary.LittleEndian, &seq); err != nil {
		return
	}
	if seq == seqTombstone {
		return
	}
	var valLen uint32
	if err = binary.Read(r, binary.LittleEndian, &valLen); err != nil {
		return
	}
	if valLen != 0 {
		fr := flate.NewReader(&io.LimitedReader{R: r, N: int64(valLen)})
		if val, err = io.ReadAll(fr); err != nil {
			return
		}
		fr.Close()
	}
	return
}
