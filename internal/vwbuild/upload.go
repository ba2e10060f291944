package vwbuild

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
)

// uploadArchive publishes the archive and its checksum sidecar to the
// configured R2 bucket. Credentials come from the config/environment layer;
// they are only required once --upload was requested.
func uploadArchive(ctx context.Context, conf *Config, archivePath, sidecarPath string, logger io.Writer) error {
	client, err := NewR2Client(conf)
	if err != nil {
		return err
	}

	for _, path := range []string{archivePath, sidecarPath} {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s for upload: %w", path, err)
		}

		stat, err := f.Stat()
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		key := filepath.Base(path)
		cPrintf(logger, colArrow, "-> ")
		cPrintf(logger, colSuccess, "Uploading %s (%d bytes)\n", key, stat.Size())

		bar := progressbar.DefaultBytes(stat.Size(), key)
		body := io.TeeReader(f, bar)

		if err := client.UploadStream(ctx, key, body, stat.Size()); err != nil {
			f.Close()
			bar.Close()
			return fmt.Errorf("%w: upload of %s failed: %v", errExternalTool, key, err)
		}
		bar.Close()
		f.Close()
	}
	return nil
}
