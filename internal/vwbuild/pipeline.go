package vwbuild

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Pipeline stages, entered strictly in order. Provisioning and publishing
// are skipped unless requested; every stage can fall into the terminal
// failure with the stage name attached. No stage is retried and nothing is
// rolled back once a later stage has begun.
type stage string

const (
	stageValidating   stage = "precondition check"
	stageProvisioning stage = "provisioning"
	stageToolchain    stage = "toolchain resolution"
	stageBuilding     stage = "build"
	stagePackaging    stage = "packaging"
	stagePublishing   stage = "publish"
)

// Pipeline sequences the build-and-package stages over a resolved
// configuration. Host interaction flows through the two runners: Root for
// apt provisioning, User for everything else.
type Pipeline struct {
	Cfg     *BuildConfiguration
	Conf    *Config
	WorkDir string
	User    HostRunner
	Root    HostRunner
	Logger  io.Writer
}

func (p *Pipeline) failf(s stage, err error) error {
	return fmt.Errorf("%s failed: %w", s, err)
}

// Run executes the pipeline and returns the path of the produced archive.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	logger := p.Logger
	if logger == nil {
		logger = os.Stdout
	}

	// Fail-fast gate: the pinning file must exist before any stage with
	// side effects runs.
	if _, err := os.Stat(filepath.Join(p.WorkDir, pinningFile)); err != nil {
		return "", p.failf(stageValidating,
			fmt.Errorf("%w: %s not found in %s", errConfiguration, pinningFile, p.WorkDir))
	}
	toolchain, err := readPinnedToolchain(p.WorkDir)
	if err != nil {
		return "", p.failf(stageValidating, err)
	}
	debugf("Pinned toolchain %s from %s\n", toolchain, pinningFile)

	if err := os.MkdirAll(p.Cfg.OutDir, 0o755); err != nil {
		return "", p.failf(stageValidating, fmt.Errorf("failed to create output directory: %w", err))
	}
	release, err := acquireRunLock(filepath.Join(p.Cfg.OutDir, ".vwbuild.lock"))
	if err != nil {
		return "", p.failf(stageValidating, err)
	}
	defer release()

	if p.Cfg.InstallDeps {
		debugf("Entering %s for suite %s\n", stageProvisioning, p.Cfg.Suite)
		if err := provisionSuite(p.Root, p.Cfg.Suite, logger); err != nil {
			return "", p.failf(stageProvisioning, err)
		}
	}

	debugf("Entering %s\n", stageToolchain)
	if err := ensureToolchain(p.User, toolchain, p.Cfg.Target, logger); err != nil {
		return "", p.failf(stageToolchain, err)
	}

	debugf("Entering %s\n", stageBuilding)
	artifact, err := runBuild(p.User, p.WorkDir, p.Cfg, logger)
	if err != nil {
		return "", p.failf(stageBuilding, err)
	}

	debugf("Entering %s\n", stagePackaging)
	if p.Cfg.Strip {
		if err := stripArtifact(p.User, artifact, logger); err != nil {
			return "", p.failf(stagePackaging, err)
		}
	}
	stagingDir, err := stagePackage(p.WorkDir, artifact, p.Cfg, logger)
	if err != nil {
		return "", p.failf(stagePackaging, err)
	}
	archivePath, err := createArchive(stagingDir, p.Cfg.Format, logger)
	if err != nil {
		return "", p.failf(stagePackaging, err)
	}
	sidecarPath, err := writeChecksum(archivePath)
	if err != nil {
		return "", p.failf(stagePackaging, err)
	}

	if p.Cfg.Upload {
		debugf("Entering %s\n", stagePublishing)
		if err := uploadArchive(ctx, p.Conf, archivePath, sidecarPath, logger); err != nil {
			return "", p.failf(stagePublishing, err)
		}
	}

	return archivePath, nil
}
