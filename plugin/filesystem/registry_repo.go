package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/plugman-dev/plugman/plugin/entities"
)

// FileRegistryRepository implements ports.RegistryRepository on top of a
// single YAML document inside the managed root.
type FileRegistryRepository struct {
	path string
}

// NewFileRegistryRepository creates a repository backed by the given document path.
func NewFileRegistryRepository(path string) *FileRegistryRepository {
	return &FileRegistryRepository{path: path}
}

// Path returns the backing document path.
func (r *FileRegistryRepository) Path() string {
	return r.path
}

// Load reads the registry document. A missing document yields an empty
// registry; a document that fails to parse or validate yields
// entities.ErrCorruptRegistry, never a silently emptied registry.
func (r *FileRegistryRepository) Load(ctx context.Context) (*entities.Registry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return entities.NewRegistry(), nil
		}
		return nil, fmt.Errorf("reading registry %q: %w", r.path, err)
	}

	var doc registryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &entities.CorruptRegistryError{Path: r.path, Cause: err}
	}

	reg, err := doc.toEntity()
	if err != nil {
		return nil, &entities.CorruptRegistryError{Path: r.path, Cause: err}
	}
	return reg, nil
}

// Save atomically replaces the registry document: the new content is written
// to a temp file in the same directory, synced, then renamed over the
// original, so a crash mid-write leaves the previous document intact.
func (r *FileRegistryRepository) Save(ctx context.Context, reg *entities.Registry) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("invalid registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}

	data, err := yaml.Marshal(fromEntity(reg))
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*")
	if err != nil {
		return fmt.Errorf("creating temp registry: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp registry: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp registry: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replacing registry %q: %w", r.path, err)
	}
	return nil
}
