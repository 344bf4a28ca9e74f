package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `
addr: ":9999"
data_dir: /var/lib/ensembled
store_url: http://store:9000/bucket
store_prefix: models/
policy: fail-closed
models:
  - name: rf
    key: models/rf.json
  - name: xgb
    key: models/xgb.json
    sha256: abc123
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.DataDir != "/var/lib/ensembled" || cfg.Policy != "fail-closed" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Models) != 2 || cfg.Models[1].SHA256 != "abc123" {
		t.Fatalf("unexpected models: %+v", cfg.Models)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","store_url":"http://s/b","models":[{"name":"rf","key":"k"}]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.StoreURL != "http://s/b" || len(cfg.Models) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\npolicy=\"serve-degraded\"\n\n[[models]]\nname=\"lgbm\"\nkey=\"models/lgbm.json\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.Policy != "serve-degraded" || len(cfg.Models) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected error on missing file")
	}
	p := writeTempFile(t, d, "cfg.ini", "addr=:1\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error on unsupported extension")
	}
	p = writeTempFile(t, d, "bad.yaml", ":\t:\n\t-")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error on malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{Policy: "serve-degraded", Models: []Member{{Name: "rf", Key: "k"}}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.Policy = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected policy error")
	}
	cfg.Policy = ""
	cfg.Models = append(cfg.Models, Member{Name: "rf", Key: "k2"})
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	cfg.Models = []Member{{Name: "rf"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestArtifacts(t *testing.T) {
	cfg := Config{Models: []Member{{Name: "rf", Key: "models/rf.json", SHA256: "aa"}}}
	arts := cfg.Artifacts("/data")
	if len(arts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(arts))
	}
	a := arts[0]
	if a.Name != "rf" || a.Key != "models/rf.json" || a.SHA256 != "aa" {
		t.Fatalf("unexpected artifact: %+v", a)
	}
	if a.Path != filepath.Join("/data", "rf.json") {
		t.Fatalf("unexpected path: %s", a.Path)
	}
}
