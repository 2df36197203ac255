// Package manifest reads the optional plugin.yaml carried by a plugin tree.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"

	"github.com/plugman-dev/plugman/plugin/entities"
	"github.com/plugman-dev/plugman/plugin/values"
)

// FileName is the manifest file looked up at the root of a plugin tree.
const FileName = "plugin.yaml"

// Manifest is the self-description a plugin may ship.
type Manifest struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// Load reads the manifest from a plugin tree. A missing manifest returns
// (nil, nil); a malformed one fails with entities.ErrInvalidManifest so
// nothing broken gets published.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidManifest, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidManifest, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Name != "" {
		if _, err := values.NewPluginName(m.Name); err != nil {
			return err
		}
	}
	if m.Version != "" {
		if _, err := semver.NewVersion(m.Version); err != nil {
			return fmt.Errorf("version %q: %w", m.Version, err)
		}
	}
	return nil
}
