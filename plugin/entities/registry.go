package entities

import (
	"fmt"
)

// Registry is the aggregate root for installed-plugin bookkeeping: an ordered
// collection of InstalledPlugin records, persisted as a single document.
//
// Invariants:
// - Plugin names are unique
// - Install paths are never shared between two records
// - Records keep their insertion (installation) order
type Registry struct {
	records []InstalledPlugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Get returns the record for name, or nil if absent.
func (r *Registry) Get(name string) *InstalledPlugin {
	for i := range r.records {
		if r.records[i].Name == name {
			rec := r.records[i]
			return &rec
		}
	}
	return nil
}

// Upsert adds a record, or replaces the existing record with the same name
// in place so installation order is preserved.
func (r *Registry) Upsert(rec InstalledPlugin) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	for i := range r.records {
		if r.records[i].Name == rec.Name {
			r.records[i] = rec
			return nil
		}
		if r.records[i].InstallPath == rec.InstallPath {
			return errInvalidRecord(rec.Name, fmt.Sprintf("install path %s already owned by %q", rec.InstallPath, r.records[i].Name))
		}
	}
	r.records = append(r.records, rec)
	return nil
}

// Remove drops the record for name. Returns false if it was absent.
func (r *Registry) Remove(name string) bool {
	for i := range r.records {
		if r.records[i].Name == name {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy of all records in insertion order.
func (r *Registry) List() []InstalledPlugin {
	out := make([]InstalledPlugin, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of installed plugins.
func (r *Registry) Len() int {
	return len(r.records)
}

// Validate checks registry invariants across all records.
func (r *Registry) Validate() error {
	names := make(map[string]struct{}, len(r.records))
	paths := make(map[string]string, len(r.records))
	for i := range r.records {
		rec := &r.records[i]
		if err := rec.Validate(); err != nil {
			return err
		}
		if _, dup := names[rec.Name]; dup {
			return errInvalidRecord(rec.Name, "duplicate plugin name")
		}
		names[rec.Name] = struct{}{}
		if owner, dup := paths[rec.InstallPath]; dup {
			return errInvalidRecord(rec.Name, fmt.Sprintf("install path %s already owned by %q", rec.InstallPath, owner))
		}
		paths[rec.InstallPath] = rec.Name
	}
	return nil
}

func errInvalidRecord(name, msg string) error {
	return fmt.Errorf("plugin record %q: %s", name, msg)
}
