package fetcher

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/plugman-dev/plugman/plugin/entities"
	"github.com/plugman-dev/plugman/plugin/ports"
	"github.com/plugman-dev/plugman/plugin/values"
)

// DefaultIgnorePatterns are skipped when copying local source trees.
var DefaultIgnorePatterns = []string{".git", ".git/**"}

// LocalFetcher materializes local directory sources by copying them (never
// moving) into staging, preserving file modes and mtimes. The resolved ref
// for a local source is a fingerprint of the copied tree.
type LocalFetcher struct {
	stagingRoot string
	ignore      []string // doublestar patterns over slash-separated relative paths
}

// NewLocalFetcher creates a local fetcher staging under stagingRoot.
// Nil ignore patterns fall back to DefaultIgnorePatterns.
func NewLocalFetcher(stagingRoot string, ignore []string) *LocalFetcher {
	if ignore == nil {
		ignore = DefaultIgnorePatterns
	}
	return &LocalFetcher{stagingRoot: stagingRoot, ignore: ignore}
}

// Fetch copies the source directory into staging and fingerprints the
// effective tree.
func (f *LocalFetcher) Fetch(ctx context.Context, src values.Source) (*ports.FetchResult, error) {
	if src.Kind() != values.SourceLocal {
		return nil, fmt.Errorf("local fetcher cannot handle %s sources", src.Kind())
	}

	if err := os.MkdirAll(f.stagingRoot, 0o750); err != nil {
		return nil, &entities.FetchError{Source: src.String(), Cause: err}
	}
	staging, err := os.MkdirTemp(f.stagingRoot, "fetch-*")
	if err != nil {
		return nil, &entities.FetchError{Source: src.String(), Cause: err}
	}
	cleanup := func() { _ = os.RemoveAll(staging) }

	dest := filepath.Join(staging, "tree")
	if err := f.copyTree(ctx, src.Location(), dest); err != nil {
		cleanup()
		return nil, &entities.FetchError{Source: src.String(), Cause: err}
	}

	dir := dest
	if sub := src.Subdir(); sub != "" {
		dir = filepath.Join(dest, filepath.FromSlash(sub))
		info, statErr := os.Stat(dir)
		if statErr != nil || !info.IsDir() {
			cleanup()
			return nil, &entities.SubdirNotFoundError{Subdir: sub, Source: src.String()}
		}
	}

	digest, err := values.ComputeTreeDigest(dir)
	if err != nil {
		cleanup()
		return nil, &entities.FetchError{Source: src.String(), Cause: err}
	}

	return &ports.FetchResult{Dir: dir, ResolvedRef: digest.String(), Cleanup: cleanup}, nil
}

// copyTree copies src into dest, skipping ignored paths.
func (f *LocalFetcher) copyTree(ctx context.Context, src, dest string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel != "." && f.ignored(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		target := filepath.Join(dest, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			if err := copyFile(p, target, info.Mode().Perm()); err != nil {
				return err
			}
			return os.Chtimes(target, info.ModTime(), info.ModTime())
		default:
			// Sockets, devices and the like have no place in a plugin tree.
			return nil
		}
	})
}

func (f *LocalFetcher) ignored(rel string) bool {
	for _, pattern := range f.ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func copyFile(src, dest string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
