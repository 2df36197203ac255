package ports

import (
	"context"

	"github.com/plugman-dev/plugman/plugin/values"
)

// FetchResult is a freshly materialized plugin tree in staging.
// Dir points at the effective plugin tree (the requested subdirectory for
// monorepo sources). Cleanup releases all staging state and is safe to call
// on every exit path, including after the tree has been moved away.
type FetchResult struct {
	Dir         string
	ResolvedRef string
	Cleanup     func()
}

// Fetcher materializes a resolved source into isolated staging.
// It never writes to the final managed location; publishing is the caller's
// job so a failed fetch can never destroy a working installation.
type Fetcher interface {
	Fetch(ctx context.Context, src values.Source) (*FetchResult, error)
}
