// Package filesystem provides file-based repositories for the infrastructure layer.
package filesystem

import (
	"fmt"
	"time"

	"github.com/plugman-dev/plugman/plugin/entities"
	"github.com/plugman-dev/plugman/plugin/values"
)

// registryDoc is the YAML structure of the registry document.
type registryDoc struct {
	Version int            `yaml:"registry_version"`
	Plugins []pluginRecord `yaml:"plugins"`
}

// pluginRecord is one installed plugin in YAML.
type pluginRecord struct {
	Name           string    `yaml:"name"`
	SourceKind     string    `yaml:"source_kind"`
	SourceLocation string    `yaml:"source_location"`
	SourceRef      string    `yaml:"source_ref,omitempty"`
	SourceSubdir   string    `yaml:"source_subdir,omitempty"`
	ResolvedRef    string    `yaml:"resolved_ref"`
	InstallPath    string    `yaml:"install_path"`
	Version        string    `yaml:"version,omitempty"`
	Description    string    `yaml:"description,omitempty"`
	InstalledAt    time.Time `yaml:"installed_at"`
	UpdatedAt      time.Time `yaml:"updated_at"`
}

const registryDocVersion = 1

// toEntity converts the document to the domain aggregate, re-validating
// every record and the cross-record invariants.
func (d *registryDoc) toEntity() (*entities.Registry, error) {
	reg := entities.NewRegistry()
	for _, rec := range d.Plugins {
		src, err := values.NewSource(values.SourceKind(rec.SourceKind), rec.SourceLocation, rec.SourceRef, rec.SourceSubdir)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", rec.Name, err)
		}
		if err := reg.Upsert(entities.InstalledPlugin{
			Name:        rec.Name,
			Source:      src,
			ResolvedRef: rec.ResolvedRef,
			InstallPath: rec.InstallPath,
			Version:     rec.Version,
			Description: rec.Description,
			InstalledAt: rec.InstalledAt,
			UpdatedAt:   rec.UpdatedAt,
		}); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// fromEntity converts the domain aggregate to its YAML representation.
func fromEntity(reg *entities.Registry) *registryDoc {
	doc := &registryDoc{Version: registryDocVersion}
	for _, rec := range reg.List() {
		doc.Plugins = append(doc.Plugins, pluginRecord{
			Name:           rec.Name,
			SourceKind:     string(rec.Source.Kind()),
			SourceLocation: rec.Source.Location(),
			SourceRef:      rec.Source.Ref(),
			SourceSubdir:   rec.Source.Subdir(),
			ResolvedRef:    rec.ResolvedRef,
			InstallPath:    rec.InstallPath,
			Version:        rec.Version,
			Description:    rec.Description,
			InstalledAt:    rec.InstalledAt,
			UpdatedAt:      rec.UpdatedAt,
		})
	}
	return doc
}
