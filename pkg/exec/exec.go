// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package exec runs fuzzing inputs against the target harness.
//
// The engine sees only the Executor interface; the concrete CmdExecutor
// spawns the harness as a subprocess with the input on stdin. A target
// crash is not an error at this boundary: the harness catches target
// exceptions and reports them through the ERR: sentinel on its stderr.
// The returned error is reserved for infrastructure failures.
package exec

import (
	"fmt"
	"os"
	"time"

	"github.com/textfuzz/textfuzz/pkg/osutil"
)

// Executor executes one input and returns the captured streams and an
// opaque coverage artifact handle for the coverage observer.
type Executor interface {
	Run(input []byte) (stdout, stderr []byte, artifact string, err error)
}

// ArtifactEnv is how the harness runner learns where to write the
// coverage artifact for the current execution.
const ArtifactEnv = "TEXTFUZZ_COVER_FILE"

const defaultTimeout = 30 * time.Second

// CmdExecutor runs a harness command in the project root for every
// input. A fresh artifact path is allocated per run and passed via
// ArtifactEnv.
type CmdExecutor struct {
	ProjectRoot string
	Bin         string
	Args        []string
	Timeout     time.Duration
}

func NewCmdExecutor(projectRoot, bin string, args ...string) *CmdExecutor {
	return &CmdExecutor{
		ProjectRoot: projectRoot,
		Bin:         bin,
		Args:        args,
		Timeout:     defaultTimeout,
	}
}

func (exec *CmdExecutor) Run(input []byte) ([]byte, []byte, string, error) {
	artifact, err := osutil.TempFile("textfuzz-cover")
	if err != nil {
		return nil, nil, "", err
	}
	env := []string{fmt.Sprintf("%v=%v", ArtifactEnv, artifact)}
	stdout, stderr, err := osutil.RunCmd(exec.Timeout, exec.ProjectRoot, env,
		input, exec.Bin, exec.Args...)
	if err != nil {
		os.Remove(artifact)
		return stdout, stderr, "", fmt.Errorf("failed to execute target: %w", err)
	}
	return stdout, stderr, artifact, nil
}
