package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const manifestName = "insider.toml"

type weaveManifest struct {
	Path   string
	Root   string
	Config manifestConfig
}

type manifestConfig struct {
	Weave    weaveConfig    `toml:"weave"`
	Settings map[string]any `toml:"settings"`
}

type weaveConfig struct {
	Target           string   `toml:"target"`
	Output           string   `toml:"output"`
	References       []string `toml:"references"`
	WarningsAsErrors bool     `toml:"warnings_as_errors"`
	Jobs             int      `toml:"jobs"`
}

func findManifest(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadManifest reads path, or the nearest insider.toml above startDir when
// path is empty. A missing file is not an error in the search case.
func loadManifest(path, startDir string) (*weaveManifest, bool, error) {
	if path == "" {
		found, ok, err := findManifest(startDir)
		if err != nil || !ok {
			return nil, ok, err
		}
		path = found
	}
	cfg, err := loadManifestConfig(path)
	if err != nil {
		return nil, true, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &weaveManifest{Path: abs, Root: filepath.Dir(abs), Config: cfg}, true, nil
}

func loadManifestConfig(path string) (manifestConfig, error) {
	var cfg manifestConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return manifestConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("weave") && !meta.IsDefined("settings") {
		return manifestConfig{}, fmt.Errorf("%s: expected [weave] or [settings]", path)
	}
	if meta.IsDefined("weave", "target") && strings.TrimSpace(cfg.Weave.Target) == "" {
		return manifestConfig{}, fmt.Errorf("%s: [weave].target is empty", path)
	}
	if cfg.Weave.Jobs < 0 {
		return manifestConfig{}, fmt.Errorf("%s: [weave].jobs must not be negative", path)
	}
	// [settings] is free-form; dotted keys under it show up as undecoded
	for _, key := range meta.Undecoded() {
		if len(key) > 0 && key[0] == "settings" {
			continue
		}
		return manifestConfig{}, fmt.Errorf("%s: unknown key %s", path, key)
	}
	return cfg, nil
}

// resolve makes a manifest-relative path absolute.
func (m *weaveManifest) resolve(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, filepath.FromSlash(p))
}

func (m *weaveManifest) references() []string {
	out := make([]string, 0, len(m.Config.Weave.References))
	for _, r := range m.Config.Weave.References {
		if r = m.resolve(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// settings flattens [settings] so that dotted keys such as
// Insider.CleanUp = false name the setting "Insider.CleanUp".
func (m *weaveManifest) settings() map[string]any {
	out := make(map[string]any)
	flattenSettings("", m.Config.Settings, out)
	return out
}

func flattenSettings(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenSettings(key, nested, out)
			continue
		}
		out[key] = v
	}
}
