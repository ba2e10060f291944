package vwbuild

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ensureEnvDefault appends key=value to env unless the caller already set
// key; an operator-supplied value is never overridden.
func ensureEnvDefault(env []string, key, value string) []string {
	for _, e := range env {
		if strings.HasPrefix(e, key+"=") {
			return env
		}
	}
	return append(env, key+"="+value)
}

// cargoTargetDir honors a caller-supplied CARGO_TARGET_DIR transparently.
func cargoTargetDir(workDir string) string {
	if dir := os.Getenv("CARGO_TARGET_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(workDir, "target")
}

// profileOutputDir maps a cargo profile name onto its output directory.
// The dev profile writes to target/<triple>/debug.
func profileOutputDir(profile string) string {
	if profile == "dev" {
		return "debug"
	}
	return profile
}

// artifactPath is the conventional location of the built executable.
func artifactPath(workDir string, cfg *BuildConfiguration) string {
	return filepath.Join(cargoTargetDir(workDir), cfg.Target, profileOutputDir(cfg.Profile), appName)
}

// runBuild fetches dependencies in locked mode and builds the executable with
// the resolved target, profile and features, then verifies the artifact
// exists at its conventional path. Both cargo invocations are fatal on any
// non-zero exit; there is no retry.
func runBuild(runner HostRunner, workDir string, cfg *BuildConfiguration, logger io.Writer) (string, error) {
	if _, err := runner.LookPath("cargo"); err != nil {
		return "", fmt.Errorf("%w: cargo not found; the pinned rust toolchain must provide cargo", errEnvironment)
	}

	env := os.Environ()
	env = ensureEnvDefault(env, "OPENSSL_STATIC", "1")
	env = ensureEnvDefault(env, "CARGO_TERM_COLOR", "always")

	cPrintf(logger, colArrow, "-> ")
	cPrintln(logger, colSuccess, "Fetching locked dependencies")
	fetchCmd := exec.Command("cargo", "fetch", "--locked")
	fetchCmd.Dir = workDir
	fetchCmd.Env = env
	if err := runner.Run(fetchCmd); err != nil {
		return "", fmt.Errorf("%w: cargo fetch --locked: %v", errExternalTool, err)
	}

	buildArgs := []string{"build", "--target", cfg.Target}
	if cfg.Profile == "release" {
		buildArgs = append(buildArgs, "--release")
	} else if cfg.Profile != "dev" {
		buildArgs = append(buildArgs, "--profile", cfg.Profile)
	}
	if len(cfg.Features) > 0 {
		buildArgs = append(buildArgs, "--features", strings.Join(cfg.Features, " "))
	}

	cPrintf(logger, colArrow, "-> ")
	cPrintf(logger, colSuccess, "Building %s for %s (%s)\n", appName, cfg.Target, cfg.Profile)
	buildCmd := exec.Command("cargo", buildArgs...)
	buildCmd.Dir = workDir
	buildCmd.Env = env
	if err := runner.Run(buildCmd); err != nil {
		return "", fmt.Errorf("%w: cargo build: %v", errExternalTool, err)
	}

	artifact := artifactPath(workDir, cfg)
	info, err := os.Stat(artifact)
	if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("%w: expected executable at %s; check the target triple and profile", errArtifactMissing, artifact)
	}
	return artifact, nil
}
