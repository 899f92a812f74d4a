// Package configstore persists per-user defaults for container sessions:
// the image, working directory and hostname applied when the corresponding
// run flags are omitted. Global values live under [defaults]; per-project
// overrides live under [projects."<path>"] keyed by the absolute project
// directory.
package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Built-in session defaults, used when neither the configuration file nor
// the command line provides a value.
const (
	DefaultWorkdir  = "/tmp/code"
	DefaultHostname = "XAs-Docker-Container"
)

// Defaults holds the tunable session values at one precedence layer.
type Defaults struct {
	Image    string `toml:"image,omitempty"`
	Workdir  string `toml:"workdir,omitempty"`
	Hostname string `toml:"hostname,omitempty"`
}

// Config represents the persisted xacker configuration.
type Config struct {
	Defaults Defaults            `toml:"defaults,omitempty"`
	Projects map[string]Defaults `toml:"projects,omitempty"`
}

// New returns a Config with initialized maps. Callers that mutate the
// configuration should start from this constructor to avoid nil maps.
func New() Config {
	return Config{Projects: make(map[string]Defaults)}
}

// Effective resolves the session defaults for the given project directory:
// built-ins, overlaid by global values, overlaid by the project section.
func (c Config) Effective(projectDir string) Defaults {
	out := Defaults{Workdir: DefaultWorkdir, Hostname: DefaultHostname}
	out = overlay(out, c.Defaults)
	if key, err := normalizeProjectKey(projectDir); err == nil {
		out = overlay(out, c.Projects[key])
	}
	return out
}

// SetProject records a per-project override. An all-empty value removes the
// project section.
func (c *Config) SetProject(projectDir string, values Defaults) error {
	key, err := normalizeProjectKey(projectDir)
	if err != nil {
		return err
	}
	if c.Projects == nil {
		c.Projects = make(map[string]Defaults)
	}
	if values == (Defaults{}) {
		delete(c.Projects, key)
		return nil
	}
	c.Projects[key] = values
	return nil
}

func overlay(base, layer Defaults) Defaults {
	if v := strings.TrimSpace(layer.Image); v != "" {
		base.Image = v
	}
	if v := strings.TrimSpace(layer.Workdir); v != "" {
		base.Workdir = v
	}
	if v := strings.TrimSpace(layer.Hostname); v != "" {
		base.Hostname = v
	}
	return base
}

// normalizeProjectKey resolves the absolute path for use as a project key.
func normalizeProjectKey(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("project path must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs project path: %w", err)
	}
	normalized, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// If the path does not exist yet, fall back to cleaned absolute path.
		if os.IsNotExist(err) {
			return filepath.Clean(abs), nil
		}
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	return filepath.Clean(normalized), nil
}
