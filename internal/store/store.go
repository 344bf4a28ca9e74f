// Package store is the read-only boundary to the remote object store holding
// model artifacts. Implementations must never let callers observe a partially
// written destination file: bytes go to a temp path, are verified, and are
// renamed into place in one step.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Object is the metadata of one stored artifact.
type Object struct {
	Key    string
	Size   int64
	SHA256 string
}

// Client reads artifacts from an object store.
type Client interface {
	// List returns objects under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Stat returns size and checksum metadata for key.
	Stat(ctx context.Context, key string) (Object, error)
	// Fetch downloads key to dest. dest appears only after a full,
	// verified transfer. wantSHA pins the expected digest; when empty the
	// store-reported digest (if any) is used.
	Fetch(ctx context.Context, key, dest, wantSHA string) error
}

// writeAtomic streams r into dest via a temp file in the same directory,
// verifying the SHA-256 digest before the rename. On any failure the temp
// file is removed and dest is left untouched.
func writeAtomic(key, dest, wantSHA string, r io.Reader) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ErrTransfer(key, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".part-*")
	if err != nil {
		return ErrTransfer(key, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		cleanup()
		return ErrTransfer(key, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return ErrTransfer(key, fmt.Errorf("sync: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return ErrTransfer(key, err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if wantSHA != "" && got != wantSHA {
		_ = os.Remove(tmpName)
		return ErrCorrupt(key, wantSHA, got)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return ErrTransfer(key, err)
	}
	return nil
}
