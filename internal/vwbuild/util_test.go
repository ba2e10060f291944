package vwbuild

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPrintfPlainFallback(t *testing.T) {
	var buf bytes.Buffer
	cPrintf(&buf, nil, "building %s (%d)\n", "vaultwarden", 1)
	assert.Equal(t, "building vaultwarden (1)\n", buf.String())
}

func TestCPrintfStyled(t *testing.T) {
	var buf bytes.Buffer
	cPrintf(&buf, colSuccess, "Ensuring rust toolchain %s\n", "1.71.1")
	assert.Contains(t, buf.String(), "Ensuring rust toolchain 1.71.1")
}

func TestCPrintlnPlainAndStyled(t *testing.T) {
	var buf bytes.Buffer
	cPrintln(&buf, nil, "Refreshing package index")
	assert.Equal(t, "Refreshing package index\n", buf.String())

	buf.Reset()
	cPrintln(&buf, colWarn, "Warning: strip not found")
	assert.Contains(t, buf.String(), "Warning: strip not found")
}

func TestDebugfGatedByDebugFlag(t *testing.T) {
	var buf bytes.Buffer
	oldSink, oldDebug := debugSink, Debug
	debugSink = &buf
	t.Cleanup(func() { debugSink, Debug = oldSink, oldDebug })

	Debug = false
	debugf("hidden %s\n", "trace")
	assert.Empty(t, buf.String())

	Debug = true
	debugf("visible %s\n", "trace")
	assert.Equal(t, "visible trace\n", buf.String())
}

func TestCopyFilePreservesMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o755))

	require.NoError(t, copyFile(src, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111)
}
