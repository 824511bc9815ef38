// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// textfuzz-db inspects a run's persistent store: it dumps the stored
// corpus and the deduplicated crash records.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/textfuzz/textfuzz/pkg/db"
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 2 {
		usage()
	}
	store, err := db.Open(args[1])
	if err != nil {
		fail("failed to open store: %v", err)
	}
	defer store.Close()
	switch args[0] {
	case "corpus":
		seeds, err := store.LoadSeeds()
		if err != nil {
			fail("failed to load corpus: %v", err)
		}
		for i, seed := range seeds {
			fmt.Printf("#%v picked=%v fuzzed=%v %q\n",
				i, seed.TimesPicked, seed.TimesFuzzed, truncate(seed.Data, 64))
		}
		fmt.Printf("%v seeds\n", len(seeds))
	case "crashes":
		crashes, err := store.Crashes()
		if err != nil {
			fail("failed to load crashes: %v", err)
		}
		for _, crash := range crashes {
			fmt.Printf("%vx %v: %v at %v:%v (first %v, last %v)\n",
				crash.Count, crash.Type, crash.Message, crash.File, crash.Line,
				crash.FirstSeenAt.Format("2006-01-02 15:04:05"),
				crash.LastSeenAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("%v unique crashes\n", len(crashes))
	default:
		usage()
	}
}

func truncate(data []byte, n int) string {
	if len(data) > n {
		return string(data[:n]) + "..."
	}
	return string(data)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: textfuzz-db corpus|crashes <file>\n")
	os.Exit(1)
}

func fail(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}
