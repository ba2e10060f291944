package vwbuild

import (
	"archive/tar"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"lukechampine.com/blake3"
)

// ancillaryFiles are staged next to the executable when present in the
// working directory. Their absence is not an error.
var ancillaryFiles = []string{"LICENSE.txt", "README.md"}

// stripArtifact removes debug symbols from the executable in place. A missing
// strip tool downgrades to a warning: stripping is an optimization, not a
// correctness requirement.
func stripArtifact(runner HostRunner, artifact string, logger io.Writer) error {
	if _, err := runner.LookPath("strip"); err != nil {
		cPrintf(logger, colArrow, "-> ")
		cPrintln(logger, colWarn, "Warning: strip not found; packaging unstripped executable")
		return nil
	}
	cPrintf(logger, colArrow, "-> ")
	cPrintf(logger, colSuccess, "Stripping %s\n", artifact)
	if err := runner.Run(exec.Command("strip", artifact)); err != nil {
		return fmt.Errorf("%w: strip %s: %v", errExternalTool, artifact, err)
	}
	return nil
}

// stagePackage builds a fresh staging directory under outDir containing the
// artifact plus whatever ancillary files exist in workDir. A pre-existing
// staging directory of the same name is replaced wholesale, never merged.
func stagePackage(workDir, artifact string, cfg *BuildConfiguration, logger io.Writer) (string, error) {
	stagingDir := filepath.Join(cfg.OutDir, cfg.packageName())

	if err := os.RemoveAll(stagingDir); err != nil {
		return "", fmt.Errorf("failed to clear staging dir %s: %w", stagingDir, err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging dir %s: %w", stagingDir, err)
	}

	if err := copyFile(artifact, filepath.Join(stagingDir, appName)); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", artifact, err)
	}

	for _, name := range ancillaryFiles {
		src := filepath.Join(workDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(stagingDir, name)); err != nil {
			return "", fmt.Errorf("failed to stage %s: %w", name, err)
		}
	}

	cPrintf(logger, colArrow, "-> ")
	cPrintf(logger, colSuccess, "Staged package at %s\n", stagingDir)
	return stagingDir, nil
}

// newCompressedWriter wraps w in the requested compression stream.
func newCompressedWriter(w io.Writer, format string) (io.WriteCloser, error) {
	switch format {
	case "gz":
		return pgzip.NewWriter(w), nil
	case "zst":
		return zstd.NewWriter(w)
	case "xz":
		return xz.NewWriter(w)
	}
	return nil, fmt.Errorf("%w: unsupported archive format %q", errConfiguration, format)
}

// createArchive compresses the staging directory into
// <stagingDir>.tar.<format> using pure-Go tar plus the selected compression
// stream. Entries are rooted under the package name and carry numeric root
// ownership so the archive unpacks identically regardless of the builder's
// uid. The staging directory is left in place afterwards.
func createArchive(stagingDir, format string, logger io.Writer) (string, error) {
	archivePath := stagingDir + ".tar." + format

	outFile, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer outFile.Close()

	cw, err := newCompressedWriter(outFile, format)
	if err != nil {
		return "", err
	}
	tw := tar.NewWriter(cw)

	base := filepath.Base(stagingDir)
	err = filepath.Walk(stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
		}

		hdr, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}
		if rel == "." {
			hdr.Name = base + "/"
			hdr.Mode = 0o755
		} else {
			hdr.Name = filepath.Join(base, rel)
		}

		// Always force numeric root ownership for all entries.
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "root", "root"

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if rel == "." || !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, f); err != nil {
			f.Close()
			return err
		}
		f.Close()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to add files to archive: %w", err)
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := cw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize compression stream: %w", err)
	}

	cPrintf(logger, colArrow, "-> ")
	cPrintf(logger, colSuccess, "Archive created: %s\n", archivePath)
	return archivePath, nil
}

// writeChecksum computes the BLAKE3 digest of the archive and writes it to
// <archive>.b3 in b3sum's "<hex>  <filename>" format.
func writeChecksum(archivePath string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive for checksum: %w", err)
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash archive: %w", err)
	}
	sum := hex.EncodeToString(h.Sum(nil))

	sidecar := archivePath + ".b3"
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(archivePath))
	if err := os.WriteFile(sidecar, []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("failed to write checksum sidecar: %w", err)
	}
	return sidecar, nil
}
