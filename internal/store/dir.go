package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ensembled/internal/common/fsutil"
)

// DirClient serves objects from a local directory tree. Used for tests and
// for development serving against a locally synced bucket.
type DirClient struct {
	Root string
}

// NewDir returns a DirClient rooted at dir (with '~' expansion).
func NewDir(dir string) (*DirClient, error) {
	root, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &DirClient{Root: abs}, nil
}

func (c *DirClient) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	err := filepath.WalkDir(c.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasSuffix(p, ".sha256") {
			return nil
		}
		rel, err := filepath.Rel(c.Root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		sum, err := fsutil.SHA256File(p)
		if err != nil {
			return err
		}
		out = append(out, Object{Key: key, Size: info.Size(), SHA256: sum})
		return nil
	})
	if err != nil {
		return nil, ErrTransfer(prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (c *DirClient) Stat(ctx context.Context, key string) (Object, error) {
	p := c.path(key)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Object{}, ErrNotFound(key)
		}
		return Object{}, ErrTransfer(key, err)
	}
	sum, err := fsutil.SHA256File(p)
	if err != nil {
		return Object{}, ErrTransfer(key, err)
	}
	return Object{Key: key, Size: info.Size(), SHA256: sum}, nil
}

func (c *DirClient) Fetch(ctx context.Context, key, dest, wantSHA string) error {
	if ctx.Err() != nil {
		return ErrTransfer(key, ctx.Err())
	}
	f, err := os.Open(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound(key)
		}
		return ErrTransfer(key, err)
	}
	defer f.Close()
	return writeAtomic(key, dest, wantSHA, f)
}

func (c *DirClient) path(key string) string {
	return filepath.Join(c.Root, filepath.FromSlash(key))
}
