package vwbuild

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
)

var channelRe = regexp.MustCompile(`(?m)^\s*channel\s*=\s*"([^"]+)"`)

// readPinnedToolchain extracts the toolchain channel from rust-toolchain.toml
// in workDir. The pin is mandatory: a missing file or missing channel line is
// a configuration error, never a default fallback.
func readPinnedToolchain(workDir string) (string, error) {
	path := filepath.Join(workDir, pinningFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot read %s: %v", errConfiguration, path, err)
	}
	m := channelRe.FindSubmatch(data)
	if m == nil || len(m[1]) == 0 {
		return "", fmt.Errorf("%w: no channel pinned in %s", errConfiguration, path)
	}
	return string(m[1]), nil
}

// ensureToolchain installs and activates the pinned toolchain via rustup and
// best-effort adds the requested target. Safe to call when the toolchain is
// already installed and active.
func ensureToolchain(runner HostRunner, toolchain, target string, logger io.Writer) error {
	if _, err := runner.LookPath("rustup"); err != nil {
		return fmt.Errorf("%w: rustup not found; install rustup and toolchain %s manually or via https://rustup.rs",
			errEnvironment, toolchain)
	}

	cPrintf(logger, colArrow, "-> ")
	cPrintf(logger, colSuccess, "Ensuring rust toolchain %s\n", toolchain)

	installCmd := exec.Command("rustup", "toolchain", "install", toolchain, "--profile", "minimal")
	if err := runner.Run(installCmd); err != nil {
		return fmt.Errorf("%w: rustup toolchain install %s: %v", errExternalTool, toolchain, err)
	}

	defaultCmd := exec.Command("rustup", "default", toolchain)
	if err := runner.Run(defaultCmd); err != nil {
		return fmt.Errorf("%w: rustup default %s: %v", errExternalTool, toolchain, err)
	}

	// Adding the target can fail for exotic triples the channel has no std
	// build for; the cargo build will surface any real incompatibility.
	targetCmd := exec.Command("rustup", "target", "add", target, "--toolchain", toolchain)
	if err := runner.Run(targetCmd); err != nil {
		cPrintf(logger, colArrow, "-> ")
		cPrintf(logger, colWarn, "Warning: rustup target add %s failed: %v (continuing)\n", target, err)
	}
	return nil
}
