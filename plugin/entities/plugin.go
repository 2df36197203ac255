package entities

import (
	"time"

	"github.com/plugman-dev/plugman/plugin/values"
)

// InstalledPlugin is a registry record: one installed plugin and its
// provenance. Name is the unique key; InstallPath is always a direct
// subdirectory of the managed root.
type InstalledPlugin struct {
	Name        string
	Source      values.Source
	ResolvedRef string // concrete commit hash, or tree fingerprint for local sources
	InstallPath string
	Version     string // from the plugin manifest, may be empty
	Description string // from the plugin manifest, may be empty
	InstalledAt time.Time
	UpdatedAt   time.Time
}

// Validate checks record invariants.
func (p *InstalledPlugin) Validate() error {
	if _, err := values.NewPluginName(p.Name); err != nil {
		return err
	}
	if p.InstallPath == "" {
		return errInvalidRecord(p.Name, "install path is required")
	}
	if p.Source.Kind() == "" {
		return errInvalidRecord(p.Name, "source is required")
	}
	if p.InstalledAt.IsZero() {
		return errInvalidRecord(p.Name, "installed_at is required")
	}
	return nil
}
