package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/plugman-dev/plugman/plugin/entities"
	"github.com/plugman-dev/plugman/plugin/ports"
	"github.com/plugman-dev/plugman/plugin/values"
)

// GitFetcher materializes remote sources (GitHub shorthand, HTTP(S) URLs,
// SSH remotes) into staging via go-git.
type GitFetcher struct {
	stagingRoot string
	depth       int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewGitFetcher creates a git fetcher that stages clones under stagingRoot.
// stagingRoot should live on the same filesystem as the final managed
// location so the publish step can be a rename.
func NewGitFetcher(stagingRoot string, depth int, timeout time.Duration, logger *slog.Logger) *GitFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	installRetryTransport()
	return &GitFetcher{
		stagingRoot: stagingRoot,
		depth:       depth,
		timeout:     timeout,
		logger:      logger,
	}
}

var installTransportOnce sync.Once

// installRetryTransport routes go-git's smart-HTTP protocol through the
// retrying transport. Installed once per process.
func installRetryTransport() {
	installTransportOnce.Do(func() {
		httpClient := &http.Client{Transport: &RetryTransport{}}
		client.InstallProtocol("https", githttp.NewClient(httpClient))
		client.InstallProtocol("http", githttp.NewClient(httpClient))
	})
}

// Fetch clones the remote at the requested ref (or its default branch) into
// a fresh staging directory and returns the effective plugin tree.
func (f *GitFetcher) Fetch(ctx context.Context, src values.Source) (*ports.FetchResult, error) {
	if !src.IsRemote() {
		return nil, fmt.Errorf("git fetcher cannot handle %s sources", src.Kind())
	}

	if err := os.MkdirAll(f.stagingRoot, 0o750); err != nil {
		return nil, &entities.FetchError{Source: src.String(), Cause: err}
	}
	staging, err := os.MkdirTemp(f.stagingRoot, "fetch-*")
	if err != nil {
		return nil, &entities.FetchError{Source: src.String(), Cause: err}
	}
	cleanup := func() { _ = os.RemoveAll(staging) }

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	f.logger.Debug("cloning plugin source",
		"url", src.CloneURL(), "ref", src.Ref(), "staging", staging)

	cloneDir := filepath.Join(staging, "clone")
	resolvedRef, err := f.cloneAtRef(ctx, src, cloneDir)
	if err != nil {
		cleanup()
		if subErr, ok := err.(*entities.SubdirNotFoundError); ok {
			return nil, subErr
		}
		return nil, &entities.FetchError{Source: src.String(), Cause: err}
	}

	// The clone metadata is not part of the plugin tree.
	if err := os.RemoveAll(filepath.Join(cloneDir, ".git")); err != nil {
		cleanup()
		return nil, &entities.FetchError{Source: src.String(), Cause: err}
	}

	dir := cloneDir
	if sub := src.Subdir(); sub != "" {
		dir = filepath.Join(cloneDir, filepath.FromSlash(sub))
		info, statErr := os.Stat(dir)
		if statErr != nil || !info.IsDir() {
			cleanup()
			return nil, &entities.SubdirNotFoundError{Subdir: sub, Source: src.String()}
		}
	}

	f.logger.Debug("fetched plugin source", "resolved_ref", resolvedRef)
	return &ports.FetchResult{Dir: dir, ResolvedRef: resolvedRef, Cleanup: cleanup}, nil
}

var commitHashRe = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

// cloneAtRef clones into dir and leaves the worktree checked out at the
// requested ref. Branch and tag refs clone shallow; a raw commit hash needs
// the full history before it can be checked out.
func (f *GitFetcher) cloneAtRef(ctx context.Context, src values.Source, dir string) (string, error) {
	url := src.CloneURL()
	ref := src.Ref()

	if ref == "" {
		repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:          url,
			Depth:        f.depth,
			SingleBranch: true,
			Tags:         git.NoTags,
		})
		if err != nil {
			return "", fmt.Errorf("clone %s: %w", url, err)
		}
		return headHash(repo)
	}

	var lastErr error
	for _, refName := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	} {
		repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           url,
			Depth:         f.depth,
			SingleBranch:  true,
			ReferenceName: refName,
			Tags:          git.NoTags,
		})
		if err == nil {
			return headHash(repo)
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		_ = os.RemoveAll(dir)
	}

	if commitHashRe.MatchString(ref) {
		return f.cloneAtCommit(ctx, url, ref, dir)
	}
	return "", fmt.Errorf("ref %q not found at %s: %w", ref, url, lastErr)
}

func (f *GitFetcher) cloneAtCommit(ctx context.Context, url, ref, dir string) (string, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: url})
	if err != nil {
		return "", fmt.Errorf("clone %s: %w", url, err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", fmt.Errorf("resolve commit %q: %w", ref, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
		return "", fmt.Errorf("checkout %s: %w", hash, err)
	}
	return hash.String(), nil
}

func headHash(repo *git.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}
