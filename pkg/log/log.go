// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to the standard log package
// with some extensions:
//   - verbosity levels
//   - global verbosity setting shared by all packages
//   - ability to tee output to a per-run log file
package log

import (
	"fmt"
	"io"
	golog "log"
	"os"
	"sync"
)

var (
	mu    sync.Mutex
	level int
	tee   io.WriteCloser
)

// SetVerbosity sets the global verbosity level.
// Logf calls with v above the level are dropped.
func SetVerbosity(v int) {
	mu.Lock()
	defer mu.Unlock()
	level = v
}

// TeeToFile duplicates all output (regardless of verbosity) into the
// given file, typically <rundir>/run.log. Returns a close function.
func TeeToFile(filename string) (func(), error) {
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	mu.Lock()
	tee = f
	mu.Unlock()
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if tee == f {
			tee = nil
		}
		f.Close()
	}, nil
}

func Logf(v int, msg string, args ...interface{}) {
	mu.Lock()
	doLog := v <= level
	if tee != nil {
		fmt.Fprintf(tee, msg+"\n", args...)
	}
	mu.Unlock()
	if doLog {
		golog.Printf(msg, args...)
	}
}

func Errorf(msg string, args ...interface{}) {
	Logf(0, "ERROR: "+msg, args...)
}

func Fatal(err error) {
	golog.Fatal(err)
}

func Fatalf(msg string, args ...interface{}) {
	golog.Fatalf(msg, args...)
}
