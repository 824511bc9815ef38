// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package feedback decides, per execution, whether an input produced
// novel coverage and whether it crashed the target. It is the sole
// owner of the global seen-coverage state, which only ever grows for
// the life of a run.
package feedback

import (
	"strings"

	"github.com/textfuzz/textfuzz/pkg/cover"
	"github.com/textfuzz/textfuzz/pkg/stat"
)

// CrashMarker is the sentinel the harness writes to stderr when the
// target raised: "ERR:" followed by a traceback.
const CrashMarker = "ERR:"

// Result is the per-execution decision. Novelty and crash detection
// are independent: a crashing input is also corpus-worthy if it
// reached new coverage.
type Result struct {
	AddToCorpus bool
	IsCrash     bool
}

type lineKey struct {
	file string
	line int
}

type branchKey struct {
	file   string
	branch cover.Branch
}

// Evaluator is stateful; create one per run.
type Evaluator struct {
	seenLines    map[lineKey]struct{}
	seenBranches map[branchKey]struct{}

	statNovel   *stat.Val
	statCrashes *stat.Val
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		seenLines:    make(map[lineKey]struct{}),
		seenBranches: make(map[branchKey]struct{}),
		statNovel:    stat.New("novel inputs", "Executions that expanded global coverage"),
		statCrashes:  stat.New("crashes", "Executions that hit the crash sentinel"),
	}
}

// Evaluate checks the signal for novelty against the seen sets and the
// stderr for the crash sentinel. A novel signal is merged into the seen
// sets in full (all keys, not just the new ones) before returning.
func (ev *Evaluator) Evaluate(signal *cover.Signal, stderr string) Result {
	isCrash := strings.Contains(stderr, CrashMarker)
	if isCrash {
		ev.statCrashes.Add(1)
	}
	novel := ev.hasNewCoverage(signal)
	if novel {
		ev.merge(signal)
		ev.statNovel.Add(1)
	}
	return Result{AddToCorpus: novel, IsCrash: isCrash}
}

// SeenLines and SeenBranches report the size of the global coverage
// frontier, for progress logging.
func (ev *Evaluator) SeenLines() int    { return len(ev.seenLines) }
func (ev *Evaluator) SeenBranches() int { return len(ev.seenBranches) }

func (ev *Evaluator) hasNewCoverage(signal *cover.Signal) bool {
	if signal == nil {
		return false
	}
	for file, lines := range signal.Lines {
		for _, line := range lines {
			if _, ok := ev.seenLines[lineKey{file, line}]; !ok {
				return true
			}
		}
	}
	for file, branches := range signal.Branches {
		for _, branch := range branches {
			if _, ok := ev.seenBranches[branchKey{file, branch}]; !ok {
				return true
			}
		}
	}
	return false
}

func (ev *Evaluator) merge(signal *cover.Signal) {
	for file, lines := range signal.Lines {
		for _, line := range lines {
			ev.seenLines[lineKey{file, line}] = struct{}{}
		}
	}
	for file, branches := range signal.Branches {
		for _, branch := range branches {
			ev.seenBranches[branchKey{file, branch}] = struct{}{}
		}
	}
}
