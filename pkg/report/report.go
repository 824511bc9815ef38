// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package report parses the crash tracebacks targets write to stderr
// into structured crash reports. Parsing never fails: malformed input
// degrades to placeholder fields so a single unparseable crash cannot
// abort a run.
package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Crash is the structured form of one crash traceback.
type Crash struct {
	Type      string
	Message   string
	File      string
	Line      int
	Traceback string
}

// Key returns the dedup key: crashes with the same exception type
// raised at the same file/line are considered the same bug.
func (c *Crash) Key() string {
	return fmt.Sprintf("%v|%v|%v", c.Type, c.File, c.Line)
}

func (c *Crash) String() string {
	if c.Message == "" {
		return fmt.Sprintf("%v at %v:%v", c.Type, c.File, c.Line)
	}
	return fmt.Sprintf("%v: %v at %v:%v", c.Type, c.Message, c.File, c.Line)
}

const crashMarker = "ERR:"

// frameRe matches one traceback frame line, e.g.:
//
//	File "/target/decoder.py", line 42, in decode
var frameRe = regexp.MustCompile(`^\s*File "(.+)", line (\d+)`)

// Parse extracts structured fields from a crash stderr:
//   - the leading ERR: marker is stripped;
//   - the last non-empty line is split on the first colon into
//     exception type and message (message empty without a colon);
//   - the last frame line, scanning from the end, gives file/line;
//     without one, file is "unknown" and line is -1.
func Parse(stderr string) *Crash {
	tb := strings.TrimSpace(stderr)
	tb = strings.TrimPrefix(tb, crashMarker)
	tb = strings.TrimSpace(tb)

	crash := &Crash{
		File:      "unknown",
		Line:      -1,
		Traceback: tb,
	}

	lines := nonEmptyLines(tb)
	if len(lines) > 0 {
		last := lines[len(lines)-1]
		if idx := strings.Index(last, ":"); idx >= 0 {
			crash.Type = strings.TrimSpace(last[:idx])
			crash.Message = strings.TrimSpace(last[idx+1:])
		} else {
			crash.Type = strings.TrimSpace(last)
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		if m := frameRe.FindStringSubmatch(lines[i]); m != nil {
			crash.File = m[1]
			// The regexp guarantees digits; out-of-range values keep
			// the -1 placeholder.
			if n, err := strconv.Atoi(m[2]); err == nil {
				crash.Line = n
			}
			break
		}
	}
	return crash
}

func nonEmptyLines(text string) []string {
	var res []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			res = append(res, line)
		}
	}
	return res
}
