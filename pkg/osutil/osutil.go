// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package osutil provides OS-related helpers used across the fuzzer:
// file writing, temp files, atomic renames and interrupt handling.
package osutil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"
)

const (
	DefaultFilePerm = os.FileMode(0644)
	DefaultDirPerm  = os.FileMode(0755)
)

func WriteFile(filename string, data []byte) error {
	return os.WriteFile(filename, data, DefaultFilePerm)
}

func MkdirAll(dir string) error {
	return os.MkdirAll(dir, DefaultDirPerm)
}

func IsExist(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// Rename is an atomic replace: dst is either the old or the new file,
// never a partial mix of the two.
func Rename(src, dst string) error {
	return os.Rename(src, dst)
}

func TempFile(prefix string) (string, error) {
	f, err := os.CreateTemp("", prefix)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	f.Close()
	return f.Name(), nil
}

// ListDir returns the names of regular files in dir, sorted.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, ent := range entries {
		if ent.Type().IsRegular() {
			files = append(files, ent.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func Abs(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// RunCmd runs the command in dir feeding input to its stdin and returns
// captured stdout/stderr. A non-zero exit status is not an error: targets
// are expected to fail, and crash reporting goes through stderr.
// The returned error covers infrastructure failures only (binary not
// found, timeout, failure to spawn).
func RunCmd(timeout time.Duration, dir string, env []string, input []byte,
	bin string, args ...string) (stdout, stderr []byte, err error) {
	cmd := Command(bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	if input != nil {
		cmd.Stdin = bytes.NewReader(input)
	}
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.Stdout = outBuf
	cmd.Stderr = errBuf
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start %v: %w", bin, err)
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	select {
	case <-time.After(timeout):
		cmd.Process.Kill()
		<-done
		return outBuf.Bytes(), errBuf.Bytes(),
			fmt.Errorf("%v timed out after %v", bin, timeout)
	case err := <-done:
		if _, ok := err.(*exec.ExitError); err != nil && !ok {
			return outBuf.Bytes(), errBuf.Bytes(),
				fmt.Errorf("failed to run %v: %w", bin, err)
		}
	}
	return outBuf.Bytes(), errBuf.Bytes(), nil
}

// Command is a wrapper over exec.Command that ties the child's
// lifetime to ours, so that targets can't outlive the fuzzer.
func Command(bin string, args ...string) *exec.Cmd {
	cmd := exec.Command(bin, args...)
	setPdeathsig(cmd)
	return cmd
}

// HandleInterrupts closes shutdown on the first SIGINT/SIGTERM
// (expecting a graceful stop) and terminates the process on the third.
func HandleInterrupts(shutdown chan struct{}) {
	go func() {
		c := make(chan os.Signal, 3)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		close(shutdown)
		fmt.Fprint(os.Stderr, "SIGINT: shutting down...\n")
		<-c
		fmt.Fprint(os.Stderr, "SIGINT: shutting down harder...\n")
		<-c
		fmt.Fprint(os.Stderr, "SIGINT: terminating\n")
		os.Exit(int(syscall.SIGINT))
	}()
}
