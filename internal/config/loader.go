package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"ensembled/pkg/types"
)

// Policy values for partial-ensemble handling.
const (
	PolicyServeDegraded = "serve-degraded"
	PolicyFailClosed    = "fail-closed"
)

// Member declares one ensemble member and where its artifact lives in the
// object store.
type Member struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Key    string `json:"key" yaml:"key" toml:"key"`
	SHA256 string `json:"sha256" yaml:"sha256" toml:"sha256"`
}

// Config holds runtime parameters for the service and the deploy tooling.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr        string   `json:"addr" yaml:"addr" toml:"addr"`
	DataDir     string   `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	StoreURL    string   `json:"store_url" yaml:"store_url" toml:"store_url"`
	StorePrefix string   `json:"store_prefix" yaml:"store_prefix" toml:"store_prefix"`
	Policy      string   `json:"policy" yaml:"policy" toml:"policy"`
	Models      []Member `json:"models" yaml:"models" toml:"models"`

	// Deployment side (deployctl / swapagent); unused by the serving daemon.
	Image      string `json:"image" yaml:"image" toml:"image"`
	Instance   string `json:"instance" yaml:"instance" toml:"instance"`
	AgentURL   string `json:"agent_url" yaml:"agent_url" toml:"agent_url"`
	RecordPath string `json:"record_path" yaml:"record_path" toml:"record_path"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Validate checks fields the serving daemon cannot default.
func (c Config) Validate() error {
	switch c.Policy {
	case "", PolicyServeDegraded, PolicyFailClosed:
	default:
		return fmt.Errorf("unknown policy: %q", c.Policy)
	}
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("model with empty name")
		}
		if m.Key == "" {
			return fmt.Errorf("model %s: empty key", m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate model name: %s", m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// Artifacts maps the configured members to artifact descriptors rooted at
// dataDir. The local filename is the base name of the object key.
func (c Config) Artifacts(dataDir string) []types.Artifact {
	out := make([]types.Artifact, 0, len(c.Models))
	for _, m := range c.Models {
		out = append(out, types.Artifact{
			Name:   m.Name,
			Key:    m.Key,
			Path:   filepath.Join(dataDir, filepath.Base(m.Key)),
			SHA256: m.SHA256,
		})
	}
	return out
}
