// Package fetcher materializes resolved plugin sources into isolated staging
// directories. Nothing here ever touches the final managed location; the
// caller publishes a staged tree with an atomic rename.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plugman-dev/plugman/plugin/ports"
	"github.com/plugman-dev/plugman/plugin/values"
)

// SourceFetcher dispatches a fetch to the git or local fetcher by source kind.
type SourceFetcher struct {
	git   *GitFetcher
	local *LocalFetcher
}

// Option configures a SourceFetcher.
type Option func(*options)

type options struct {
	depth   int
	timeout time.Duration
	ignore  []string
	logger  *slog.Logger
}

// WithCloneDepth sets the shallow-clone depth for remote sources.
func WithCloneDepth(depth int) Option {
	return func(o *options) { o.depth = depth }
}

// WithTimeout bounds each fetch operation.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithIgnorePatterns sets the doublestar patterns skipped when copying
// local source trees.
func WithIgnorePatterns(patterns []string) Option {
	return func(o *options) { o.ignore = patterns }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewSourceFetcher creates a fetcher staging under stagingRoot.
func NewSourceFetcher(stagingRoot string, opts ...Option) *SourceFetcher {
	o := options{depth: 1, timeout: 2 * time.Minute, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &SourceFetcher{
		git:   NewGitFetcher(stagingRoot, o.depth, o.timeout, o.logger),
		local: NewLocalFetcher(stagingRoot, o.ignore),
	}
}

// Fetch implements ports.Fetcher.
func (f *SourceFetcher) Fetch(ctx context.Context, src values.Source) (*ports.FetchResult, error) {
	switch src.Kind() {
	case values.SourceGithub, values.SourceGitURL, values.SourceGitSSH:
		return f.git.Fetch(ctx, src)
	case values.SourceLocal:
		return f.local.Fetch(ctx, src)
	default:
		return nil, fmt.Errorf("unsupported source kind %q", src.Kind())
	}
}
