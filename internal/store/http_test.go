package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newStoreServer(t *testing.T, objects map[string][]byte, withHeader bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			prefix := r.URL.Query().Get("prefix")
			var out listResponse
			for k, b := range objects {
				if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
					sum := sha256.Sum256(b)
					out.Objects = append(out.Objects, Object{Key: k, Size: int64(len(b)), SHA256: hex.EncodeToString(sum[:])})
				}
			}
			_ = json.NewEncoder(w).Encode(out)
			return
		}
		key := r.URL.Path[1:]
		b, ok := objects[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if withHeader {
			sum := sha256.Sum256(b)
			w.Header().Set(shaHeader, hex.EncodeToString(sum[:]))
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "0")
			return
		}
		_, _ = w.Write(b)
	}))
}

func TestHTTPFetchWithHeaderChecksum(t *testing.T) {
	payload := []byte("model-bytes")
	srv := newStoreServer(t, map[string][]byte{"models/rf.json": payload}, true)
	defer srv.Close()

	c := NewHTTP(srv.URL, 5*time.Second)
	dest := filepath.Join(t.TempDir(), "rf.json")
	if err := c.Fetch(context.Background(), "models/rf.json", dest, ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestHTTPFetchWithSidecarChecksum(t *testing.T) {
	payload := []byte("model-bytes")
	sum := sha256.Sum256(payload)
	objects := map[string][]byte{
		"models/rf.json":        payload,
		"models/rf.json.sha256": []byte(hex.EncodeToString(sum[:]) + "  rf.json\n"),
	}
	srv := newStoreServer(t, objects, false)
	defer srv.Close()

	c := NewHTTP(srv.URL, 5*time.Second)
	dest := filepath.Join(t.TempDir(), "rf.json")
	if err := c.Fetch(context.Background(), "models/rf.json", dest, ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}

func TestHTTPFetchPinnedChecksumWins(t *testing.T) {
	srv := newStoreServer(t, map[string][]byte{"models/rf.json": []byte("tampered")}, true)
	defer srv.Close()

	c := NewHTTP(srv.URL, 5*time.Second)
	dest := filepath.Join(t.TempDir(), "rf.json")
	pinned := hex.EncodeToString(bytes.Repeat([]byte{0xab}, 32))
	err := c.Fetch(context.Background(), "models/rf.json", dest, pinned)
	if !IsCorrupt(err) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("destination must not exist after corrupt fetch")
	}
}

func TestHTTPNotFound(t *testing.T) {
	srv := newStoreServer(t, map[string][]byte{}, false)
	defer srv.Close()

	c := NewHTTP(srv.URL, 5*time.Second)
	if err := c.Fetch(context.Background(), "models/nope.json", filepath.Join(t.TempDir(), "x"), ""); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := c.Stat(context.Background(), "models/nope.json"); !IsNotFound(err) {
		t.Fatalf("expected not found from Stat, got %v", err)
	}
}

func TestHTTPTransferError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTP(srv.URL, 5*time.Second)
	if err := c.Fetch(context.Background(), "models/rf.json", filepath.Join(t.TempDir(), "x"), ""); !IsTransfer(err) {
		t.Fatalf("expected transfer error, got %v", err)
	}
	srv.Close()
	if err := c.Fetch(context.Background(), "models/rf.json", filepath.Join(t.TempDir(), "x"), ""); !IsTransfer(err) {
		t.Fatalf("expected transfer error on closed server, got %v", err)
	}
}

func TestHTTPListOrdered(t *testing.T) {
	objects := map[string][]byte{
		"models/xgb.json": []byte("x"),
		"models/rf.json":  []byte("r"),
		"other/readme":    []byte("n"),
	}
	srv := newStoreServer(t, objects, false)
	defer srv.Close()

	c := NewHTTP(srv.URL, 5*time.Second)
	objs, err := c.List(context.Background(), "models/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objs) != 2 || objs[0].Key != "models/rf.json" || objs[1].Key != "models/xgb.json" {
		t.Fatalf("unexpected listing: %+v", objs)
	}
}
