package vwbuild

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePinningFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, pinningFile), []byte(content), 0o644))
}

func TestReadPinnedToolchain(t *testing.T) {
	dir := t.TempDir()
	writePinningFile(t, dir, "[toolchain]\nchannel = \"1.2.3\"\nprofile = \"minimal\"\n")

	ch, err := readPinnedToolchain(dir)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", ch)
}

func TestReadPinnedToolchainFirstMatchWins(t *testing.T) {
	dir := t.TempDir()
	writePinningFile(t, dir, "channel = \"1.71.1\"\nchannel = \"9.9.9\"\n")

	ch, err := readPinnedToolchain(dir)
	require.NoError(t, err)
	assert.Equal(t, "1.71.1", ch)
}

func TestReadPinnedToolchainNoChannel(t *testing.T) {
	dir := t.TempDir()
	writePinningFile(t, dir, "[toolchain]\nprofile = \"minimal\"\n")

	_, err := readPinnedToolchain(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, errConfiguration)
}

func TestReadPinnedToolchainMissingFile(t *testing.T) {
	_, err := readPinnedToolchain(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, errConfiguration)
}

func TestEnsureToolchainMissingRustup(t *testing.T) {
	runner := &fakeRunner{missing: map[string]bool{"rustup": true}}
	var log bytes.Buffer

	err := ensureToolchain(runner, "1.71.1", "x86_64-unknown-linux-gnu", &log)
	require.Error(t, err)
	assert.ErrorIs(t, err, errEnvironment)
	assert.Contains(t, err.Error(), "rustup")
	assert.Contains(t, err.Error(), "1.71.1")
	assert.Empty(t, runner.calls)
}

func TestEnsureToolchainInvocationSequence(t *testing.T) {
	runner := &fakeRunner{}
	var log bytes.Buffer

	err := ensureToolchain(runner, "1.71.1", "aarch64-unknown-linux-gnu", &log)
	require.NoError(t, err)

	require.Len(t, runner.calls, 3)
	assert.Equal(t, "rustup toolchain install 1.71.1 --profile minimal", runner.calls[0])
	assert.Equal(t, "rustup default 1.71.1", runner.calls[1])
	assert.Equal(t, "rustup target add aarch64-unknown-linux-gnu --toolchain 1.71.1", runner.calls[2])
}

func TestEnsureToolchainTargetAddFailureIsWarning(t *testing.T) {
	runner := &fakeRunner{}
	runner.onRun = func(cmd *exec.Cmd) error {
		if len(cmd.Args) > 1 && cmd.Args[1] == "target" {
			return assert.AnError
		}
		return nil
	}
	var log bytes.Buffer

	err := ensureToolchain(runner, "1.71.1", "riscv64gc-unknown-linux-gnu", &log)
	require.NoError(t, err, "target add failure must not abort the pipeline")
	assert.Contains(t, log.String(), "riscv64gc-unknown-linux-gnu")
	assert.Contains(t, log.String(), "Warning")
}
