// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cover

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Observer converts an opaque coverage artifact handle into a Signal.
// The artifact is consumable exactly once: a successful Observe
// releases it.
type Observer interface {
	Observe(artifact string) (*Signal, error)
}

// FileObserver reads JSON coverage artifacts written by the harness
// runner. Only files under the project root are kept; their paths are
// rewritten relative to the root. The artifact file is removed after a
// successful read.
type FileObserver struct {
	ProjectRoot string
}

func NewFileObserver(projectRoot string) *FileObserver {
	return &FileObserver{ProjectRoot: filepath.Clean(projectRoot)}
}

// artifactData is the on-disk artifact schema:
//
//	{"files": [{"name": "/abs/path.py", "lines": [1, 2], "arcs": [[1, 2]]}]}
type artifactData struct {
	Files []artifactFile `json:"files"`
}

type artifactFile struct {
	Name  string   `json:"name"`
	Lines []int    `json:"lines"`
	Arcs  [][2]int `json:"arcs"`
}

func (obs *FileObserver) Observe(artifact string) (*Signal, error) {
	data, err := os.ReadFile(artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to read coverage artifact: %w", err)
	}
	var raw artifactData
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse coverage artifact %v: %w", artifact, err)
	}
	signal := &Signal{
		Lines:    make(map[string][]int),
		Branches: make(map[string][]Branch),
	}
	for _, file := range raw.Files {
		rel, ok := obs.relativize(file.Name)
		if !ok {
			continue
		}
		signal.Lines[rel] = append(signal.Lines[rel], file.Lines...)
		for _, arc := range file.Arcs {
			signal.Branches[rel] = append(signal.Branches[rel],
				Branch{From: arc[0], To: arc[1]})
		}
	}
	os.Remove(artifact)
	return signal, nil
}

func (obs *FileObserver) relativize(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(obs.ProjectRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
