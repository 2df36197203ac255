package ports

import (
	"context"

	"github.com/plugman-dev/plugman/plugin/entities"
)

// RegistryRepository manages registry persistence.
// Load of a missing document yields an empty registry; Save must replace the
// backing document atomically so a crash mid-write never corrupts it.
type RegistryRepository interface {
	Load(ctx context.Context) (*entities.Registry, error)
	Save(ctx context.Context, reg *entities.Registry) error
}
