// Package manifest handles vesper.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Filename is the manifest file name looked up in a project directory.
const Filename = "vesper.toml"

// Manifest represents a vesper.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	VM      VMConfig    `toml:"vm"`
	Image   ImageConfig `toml:"image"`

	// Dir is the directory containing the vesper.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// VMConfig configures execution limits.
type VMConfig struct {
	StackLimit uint64 `toml:"stack-limit"`
	EntryPoint uint64 `toml:"entry-point"`
}

// ImageConfig configures package image output.
type ImageConfig struct {
	Output string `toml:"output"`
}

// Load parses a vesper.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	m.Dir = dir

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks the manifest for required fields.
func (m *Manifest) Validate() error {
	if m.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	return nil
}

// OutputPath returns the image output path resolved against the manifest
// directory, or the default "<name>.vspi" when unset.
func (m *Manifest) OutputPath() string {
	output := m.Image.Output
	if output == "" {
		output = m.Project.Name + ".vspi"
	}
	if filepath.IsAbs(output) || m.Dir == "" {
		return output
	}
	return filepath.Join(m.Dir, output)
}

// Save writes the manifest to its directory.
func (m *Manifest) Save() error {
	if err := m.Validate(); err != nil {
		return err
	}
	path := filepath.Join(m.Dir, Filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("cannot encode %s: %w", path, err)
	}
	return nil
}
