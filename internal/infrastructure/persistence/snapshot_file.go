package persistence

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MaxSnapshotFileSize bounds the ledger snapshot read from disk (64MB).
const MaxSnapshotFileSize = 64 << 20

type tempFile interface {
	Name() string
	Chmod(os.FileMode) error
	Write([]byte) (int, error)
	Sync() error
	Close() error
}

// fsOps holds the filesystem calls used when replacing the snapshot,
// so tests can fail individual steps.
type fsOps struct {
	createTemp func(dir, pattern string) (tempFile, error)
	rename     func(oldpath, newpath string) error
	remove     func(path string) error
}

func osFSOps() fsOps {
	return fsOps{
		createTemp: func(dir, pattern string) (tempFile, error) {
			return os.CreateTemp(dir, pattern)
		},
		rename: os.Rename,
		remove: os.Remove,
	}
}

// readSnapshotFile reads at most maxSize bytes of path.
func readSnapshotFile(path string, maxSize int64) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("snapshot %s is %d bytes, limit is %d", path, info.Size(), maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("snapshot %s grew past the %d byte limit while reading", path, maxSize)
	}
	return data, nil
}

// replaceSnapshotFile writes data next to path and renames it into place.
// Readers observe either the previous snapshot or the new one.
func replaceSnapshotFile(path string, data []byte, ops fsOps) error {
	tmp, err := ops.createTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = ops.remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := ops.rename(tmpPath, path); err != nil {
		_ = ops.remove(tmpPath)
		committed = true
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	committed = true
	return nil
}
