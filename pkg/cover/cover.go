// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cover defines the normalized coverage signal produced by one
// target execution and the observer that extracts it from a coverage
// artifact.
package cover

// Branch is a (from, to) line transition inside one file.
type Branch struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Signal is the normalized coverage of a single execution:
// executed lines and taken branches per project-relative file.
// A Signal is immutable once produced.
type Signal struct {
	Lines    map[string][]int    `json:"lines"`
	Branches map[string][]Branch `json:"branches"`
}

func (s *Signal) Empty() bool {
	return s == nil || len(s.Lines) == 0 && len(s.Branches) == 0
}

func (s *Signal) TotalLines() int {
	n := 0
	for _, lines := range s.Lines {
		n += len(lines)
	}
	return n
}

func (s *Signal) TotalBranches() int {
	n := 0
	for _, branches := range s.Branches {
		n += len(branches)
	}
	return n
}
