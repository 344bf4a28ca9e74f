package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeObject(t *testing.T, root, key string, b []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("write %s: %v", key, err)
	}
}

func TestDirListOrderedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeObject(t, root, "models/xgb.json", []byte("x"))
	writeObject(t, root, "models/rf.json", []byte("r"))
	writeObject(t, root, "models/rf.json.sha256", []byte("ignored"))
	writeObject(t, root, "other/readme", []byte("n"))

	c, err := NewDir(root)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	objs, err := c.List(context.Background(), "models/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("expected 2 objects, got %d: %+v", len(objs), objs)
	}
	if objs[0].Key != "models/rf.json" || objs[1].Key != "models/xgb.json" {
		t.Fatalf("unexpected order: %+v", objs)
	}
	if objs[0].SHA256 == "" || objs[0].Size != 1 {
		t.Fatalf("missing metadata: %+v", objs[0])
	}
}

func TestDirFetchRoundTrip(t *testing.T) {
	root := t.TempDir()
	payload := []byte(`{"name":"rf","kind":"forest"}`)
	writeObject(t, root, "models/rf.json", payload)

	c, _ := NewDir(root)
	obj, err := c.Stat(context.Background(), "models/rf.json")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "rf.json")
	if err := c.Fetch(context.Background(), "models/rf.json", dest, obj.SHA256); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: %q", got)
	}
	// no temp leftovers beside the destination
	entries, _ := os.ReadDir(filepath.Dir(dest))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".part-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDirFetchChecksumMismatchLeavesNoFile(t *testing.T) {
	root := t.TempDir()
	writeObject(t, root, "models/rf.json", []byte("payload"))

	c, _ := NewDir(root)
	dest := filepath.Join(t.TempDir(), "rf.json")
	err := c.Fetch(context.Background(), "models/rf.json", dest, strings.Repeat("0", 64))
	if err == nil || !IsCorrupt(err) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("destination must not exist after corrupt fetch")
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 0 {
		t.Fatalf("temp leftovers after corrupt fetch: %v", entries)
	}
}

func TestDirFetchNotFound(t *testing.T) {
	c, _ := NewDir(t.TempDir())
	err := c.Fetch(context.Background(), "models/nope.json", filepath.Join(t.TempDir(), "x"), "")
	if err == nil || !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := c.Stat(context.Background(), "models/nope.json"); !IsNotFound(err) {
		t.Fatalf("expected not found from Stat, got %v", err)
	}
}

func TestDirFetchDoesNotClobberOnFailure(t *testing.T) {
	root := t.TempDir()
	writeObject(t, root, "models/rf.json", []byte("new"))

	destDir := t.TempDir()
	dest := filepath.Join(destDir, "rf.json")
	if err := os.WriteFile(dest, []byte("old-verified"), 0o644); err != nil {
		t.Fatalf("seed dest: %v", err)
	}
	c, _ := NewDir(root)
	err := c.Fetch(context.Background(), "models/rf.json", dest, strings.Repeat("f", 64))
	if !IsCorrupt(err) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
	got, _ := os.ReadFile(dest)
	if string(got) != "old-verified" {
		t.Fatalf("existing file was clobbered by failed fetch: %q", got)
	}
}
