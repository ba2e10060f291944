package vwbuild

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureEnvDefault(t *testing.T) {
	env := []string{"PATH=/usr/bin"}

	env = ensureEnvDefault(env, "OPENSSL_STATIC", "1")
	assert.Contains(t, env, "OPENSSL_STATIC=1")

	env = ensureEnvDefault(env, "OPENSSL_STATIC", "0")
	assert.Contains(t, env, "OPENSSL_STATIC=1")
	assert.NotContains(t, env, "OPENSSL_STATIC=0", "caller-supplied values are never overridden")
}

func TestArtifactPathConvention(t *testing.T) {
	cfg := defaultConfiguration()
	got := artifactPath("/src/vaultwarden", cfg)
	assert.Equal(t, "/src/vaultwarden/target/x86_64-unknown-linux-gnu/release/vaultwarden", got)
}

func TestArtifactPathDevProfile(t *testing.T) {
	cfg := defaultConfiguration()
	cfg.Profile = "dev"
	got := artifactPath("/src/vaultwarden", cfg)
	assert.Equal(t, "/src/vaultwarden/target/x86_64-unknown-linux-gnu/debug/vaultwarden", got)
}

func TestArtifactPathHonorsCargoTargetDir(t *testing.T) {
	t.Setenv("CARGO_TARGET_DIR", "/var/cache/cargo-target")
	cfg := defaultConfiguration()
	got := artifactPath("/src/vaultwarden", cfg)
	assert.Equal(t, "/var/cache/cargo-target/x86_64-unknown-linux-gnu/release/vaultwarden", got)
}

func TestRunBuildMissingCargo(t *testing.T) {
	runner := &fakeRunner{missing: map[string]bool{"cargo": true}}
	var log bytes.Buffer

	_, err := runBuild(runner, t.TempDir(), defaultConfiguration(), &log)
	require.Error(t, err)
	assert.ErrorIs(t, err, errEnvironment)
	assert.Empty(t, runner.calls)
}

// buildProducingRunner fakes a cargo that drops the expected artifact on
// `cargo build`, with the given file mode.
func buildProducingRunner(t *testing.T, workDir string, cfg *BuildConfiguration, mode os.FileMode) *fakeRunner {
	t.Helper()
	runner := &fakeRunner{}
	runner.onRun = func(cmd *exec.Cmd) error {
		if len(cmd.Args) > 1 && cmd.Args[0] == "cargo" && cmd.Args[1] == "build" {
			path := artifactPath(workDir, cfg)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			return os.WriteFile(path, []byte("\x7fELF"), mode)
		}
		return nil
	}
	return runner
}

func TestRunBuildSequenceAndArtifact(t *testing.T) {
	workDir := t.TempDir()
	t.Setenv("CARGO_TARGET_DIR", filepath.Join(workDir, "target"))
	cfg := defaultConfiguration()
	runner := buildProducingRunner(t, workDir, cfg, 0o755)
	var log bytes.Buffer

	artifact, err := runBuild(runner, workDir, cfg, &log)
	require.NoError(t, err)
	assert.Equal(t, artifactPath(workDir, cfg), artifact)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "cargo fetch --locked", runner.calls[0], "locked fetch must precede the build")
	assert.Equal(t,
		"cargo build --target x86_64-unknown-linux-gnu --release --features sqlite mysql postgresql vendored_openssl",
		runner.calls[1])
}

func TestRunBuildCustomProfileFlag(t *testing.T) {
	workDir := t.TempDir()
	t.Setenv("CARGO_TARGET_DIR", filepath.Join(workDir, "target"))
	cfg := defaultConfiguration()
	cfg.Profile = "release-micro"
	runner := buildProducingRunner(t, workDir, cfg, 0o755)
	var log bytes.Buffer

	_, err := runBuild(runner, workDir, cfg, &log)
	require.NoError(t, err)
	assert.Contains(t, runner.calls[1], "--profile release-micro")
	assert.NotContains(t, runner.calls[1], "--release ")
}

func TestRunBuildEnvDefaults(t *testing.T) {
	workDir := t.TempDir()
	t.Setenv("CARGO_TARGET_DIR", filepath.Join(workDir, "target"))
	t.Setenv("CARGO_TERM_COLOR", "never")
	t.Setenv("OPENSSL_STATIC", "") // register restore, then clear for real
	os.Unsetenv("OPENSSL_STATIC")
	cfg := defaultConfiguration()
	runner := buildProducingRunner(t, workDir, cfg, 0o755)
	base := runner.onRun

	var fetchEnv []string
	runner.onRun = func(cmd *exec.Cmd) error {
		if len(cmd.Args) > 1 && cmd.Args[1] == "fetch" {
			fetchEnv = cmd.Env
		}
		return base(cmd)
	}
	var log bytes.Buffer

	_, err := runBuild(runner, workDir, cfg, &log)
	require.NoError(t, err)
	assert.Contains(t, fetchEnv, "OPENSSL_STATIC=1")
	assert.Contains(t, fetchEnv, "CARGO_TERM_COLOR=never", "operator value wins over the colored-diagnostics default")
	assert.False(t, containsPrefixCount(fetchEnv, "CARGO_TERM_COLOR=", 2))
}

func containsPrefixCount(env []string, prefix string, n int) bool {
	count := 0
	for _, e := range env {
		if strings.HasPrefix(e, prefix) {
			count++
		}
	}
	return count >= n
}

func TestRunBuildArtifactMissing(t *testing.T) {
	workDir := t.TempDir()
	t.Setenv("CARGO_TARGET_DIR", filepath.Join(workDir, "target"))
	runner := &fakeRunner{} // cargo succeeds but writes nothing
	var log bytes.Buffer

	_, err := runBuild(runner, workDir, defaultConfiguration(), &log)
	require.Error(t, err)
	assert.ErrorIs(t, err, errArtifactMissing)
	assert.Contains(t, err.Error(), filepath.Join(workDir, "target"))
}

func TestRunBuildArtifactNotExecutable(t *testing.T) {
	workDir := t.TempDir()
	t.Setenv("CARGO_TARGET_DIR", filepath.Join(workDir, "target"))
	cfg := defaultConfiguration()
	runner := buildProducingRunner(t, workDir, cfg, 0o644)
	var log bytes.Buffer

	_, err := runBuild(runner, workDir, cfg, &log)
	require.Error(t, err)
	assert.ErrorIs(t, err, errArtifactMissing)
}
