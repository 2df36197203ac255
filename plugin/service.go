// Package plugin implements the plugin installation manager: it orchestrates
// source resolution, fetching into staging, atomic publish into the managed
// root, and registry bookkeeping.
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/plugman-dev/plugman/plugin/entities"
	"github.com/plugman-dev/plugman/plugin/filesystem"
	"github.com/plugman-dev/plugman/plugin/manifest"
	"github.com/plugman-dev/plugman/plugin/ports"
	"github.com/plugman-dev/plugman/plugin/values"
)

// Well-known names inside the managed root.
const (
	// RegistryFileName is the registry document inside the managed root.
	RegistryFileName = "registry.yaml"
	// LocksDirName holds per-name advisory lock files.
	LocksDirName = ".locks"
	// StagingDirName holds in-flight fetches. It lives inside the managed
	// root so publishing a staged tree is a same-filesystem rename.
	StagingDirName = ".staging"
)

// Service coordinates install, uninstall, update, and list operations.
// It owns the registry handle for the duration of one operation; cross-process
// mutation is guarded by per-name locks.
type Service struct {
	root     string
	registry ports.RegistryRepository
	fetcher  ports.Fetcher
	locks    ports.Locker
	now      func() time.Time
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// NewService creates an installation manager rooted at root.
// Registry and fetcher are required dependencies.
func NewService(root string, registry ports.RegistryRepository, fetcher ports.Fetcher, opts ...ServiceOption) *Service {
	s := &Service{
		root:     root,
		registry: registry,
		fetcher:  fetcher,
		locks:    filesystem.NewLockDir(filepath.Join(root, LocksDirName)),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLocker sets the per-name lock implementation.
func WithLocker(l ports.Locker) ServiceOption {
	return func(s *Service) { s.locks = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// InstallRequest carries the arguments of one install operation.
type InstallRequest struct {
	Source string // raw source text (github shorthand, git URL, SSH remote, or path)
	Ref    string // branch/tag/commit, empty for the default branch
	Subdir string // repository-relative subdirectory for monorepo sources
	Name   string // explicit plugin name, empty to derive from the source
	Force  bool   // replace an existing installation
}

// Install resolves, fetches, and publishes a plugin, then commits the
// registry update. Any failure before the registry write leaves prior state
// untouched.
func (s *Service) Install(ctx context.Context, req InstallRequest) (*entities.InstalledPlugin, error) {
	src, err := values.ParseSource(req.Source, req.Ref, req.Subdir)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	rawName := req.Name
	if rawName == "" {
		rawName = src.DeriveName()
	}
	name, err := values.NewPluginName(rawName)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	unlock, err := s.locks.Acquire(ctx, name.String())
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", name.String(), err)
	}
	defer unlock()

	return s.installLocked(ctx, src, name.String(), req.Force, nil)
}

// Uninstall removes a plugin's directory and registry record.
// Removal runs before the registry write, so a crash in between leaves a
// dangling record that List reports as missing instead of fabricating state.
func (s *Service) Uninstall(ctx context.Context, name string) error {
	pn, err := values.NewPluginName(name)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	unlock, err := s.locks.Acquire(ctx, pn.String())
	if err != nil {
		return fmt.Errorf("lock %q: %w", pn.String(), err)
	}
	defer unlock()

	reg, err := s.registry.Load(ctx)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	rec := reg.Get(pn.String())
	if rec == nil {
		return &entities.NotInstalledError{Name: pn.String()}
	}

	if err := s.ensureManaged(rec.InstallPath); err != nil {
		return err
	}
	if err := os.RemoveAll(rec.InstallPath); err != nil {
		return fmt.Errorf("removing %s: %w", rec.InstallPath, err)
	}

	reg.Remove(pn.String())
	if err := s.registry.Save(ctx, reg); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	s.logger.Info("plugin uninstalled", "name", pn.String())
	return nil
}

// Update re-installs a plugin from its originally stored source, with the
// originally stored ref policy: a pinned ref re-resolves that ref, an empty
// ref re-resolves the remote default branch. The original installation is
// left intact if the re-fetch fails.
func (s *Service) Update(ctx context.Context, name string) (*entities.InstalledPlugin, error) {
	pn, err := values.NewPluginName(name)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	unlock, err := s.locks.Acquire(ctx, pn.String())
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", pn.String(), err)
	}
	defer unlock()

	reg, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	rec := reg.Get(pn.String())
	if rec == nil {
		return nil, &entities.NotInstalledError{Name: pn.String()}
	}

	installedAt := rec.InstalledAt
	return s.installLocked(ctx, rec.Source, pn.String(), true, &installedAt)
}

// ListStatus classifies a list entry.
type ListStatus string

const (
	// StatusOK means registry and filesystem agree.
	StatusOK ListStatus = "ok"
	// StatusMissing means a registry record's install path no longer exists.
	StatusMissing ListStatus = "missing"
	// StatusOrphaned means a directory in the managed root has no record.
	StatusOrphaned ListStatus = "orphaned"
)

// Inconsistent reports whether registry and filesystem disagree for this entry.
func (s ListStatus) Inconsistent() bool {
	return s != StatusOK
}

// ListEntry is one row of a listing: a record plus its consistency status.
// Orphaned entries carry only Name and InstallPath.
type ListEntry struct {
	Plugin entities.InstalledPlugin
	Status ListStatus
}

// List returns a read-only snapshot of all installed plugins in installation
// order, flagging registry/filesystem disagreements instead of failing or
// repairing them. Repair is an explicit uninstall.
func (s *Service) List(ctx context.Context) ([]ListEntry, error) {
	reg, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	known := make(map[string]struct{}, reg.Len())
	var entries []ListEntry
	for _, rec := range reg.List() {
		known[rec.Name] = struct{}{}
		status := StatusOK
		if info, statErr := os.Stat(rec.InstallPath); statErr != nil || !info.IsDir() {
			status = StatusMissing
		}
		entries = append(entries, ListEntry{Plugin: rec, Status: status})
	}

	// Directories nobody claims (e.g. a crash between publish and registry
	// write) are surfaced, never silently dropped.
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("reading managed root: %w", err)
	}
	for _, d := range dirents {
		if !d.IsDir() || d.Name()[0] == '.' {
			continue
		}
		if _, ok := known[d.Name()]; ok {
			continue
		}
		entries = append(entries, ListEntry{
			Plugin: entities.InstalledPlugin{
				Name:        d.Name(),
				InstallPath: filepath.Join(s.root, d.Name()),
			},
			Status: StatusOrphaned,
		})
	}
	return entries, nil
}

// Root returns the managed root directory.
func (s *Service) Root() string {
	return s.root
}

// installLocked runs the fetch→publish→commit sequence. The per-name lock
// must already be held. preserveInstalledAt keeps the original install
// timestamp across updates.
func (s *Service) installLocked(ctx context.Context, src values.Source, name string, force bool, preserveInstalledAt *time.Time) (*entities.InstalledPlugin, error) {
	reg, err := s.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if existing := reg.Get(name); existing != nil && !force {
		return nil, &entities.NameConflictError{Name: name}
	}

	s.logger.Info("installing plugin", "name", name, "source", src.String())

	res, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer res.Cleanup()

	man, err := manifest.Load(res.Dir)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	installPath := filepath.Join(s.root, name)
	if err := s.publish(res.Dir, installPath, name, force); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := entities.InstalledPlugin{
		Name:        name,
		Source:      src,
		ResolvedRef: res.ResolvedRef,
		InstallPath: installPath,
		InstalledAt: now,
		UpdatedAt:   now,
	}
	if preserveInstalledAt != nil {
		rec.InstalledAt = *preserveInstalledAt
	}
	if man != nil {
		rec.Version = man.Version
		rec.Description = man.Description
	}

	if err := reg.Upsert(rec); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	// Commit point: the operation is complete only once this write succeeds.
	if err := s.registry.Save(ctx, reg); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	s.logger.Info("plugin installed",
		"name", name, "resolved_ref", rec.ResolvedRef, "path", installPath)
	return &rec, nil
}

// publish atomically moves a verified staged tree into the managed location.
// The previous installation is renamed aside first and restored if the move
// fails, so no failure mode loses a working install.
func (s *Service) publish(stagedDir, installPath, name string, force bool) error {
	if err := s.ensureManaged(installPath); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return &entities.InstallError{Name: name, Cause: err}
	}

	var trash string
	if _, err := os.Stat(installPath); err == nil {
		if !force {
			return &entities.NameConflictError{Name: name}
		}
		trash = filepath.Join(s.root, fmt.Sprintf(".trash-%s-%d", name, s.now().UnixNano()))
		if err := os.Rename(installPath, trash); err != nil {
			return &entities.InstallError{Name: name, Cause: err}
		}
	}

	if err := os.Rename(stagedDir, installPath); err != nil {
		if trash != "" {
			// Best effort restore; the old tree was only renamed, never deleted.
			_ = os.Rename(trash, installPath)
		}
		return &entities.InstallError{Name: name, Cause: err}
	}

	if trash != "" {
		if err := os.RemoveAll(trash); err != nil {
			s.logger.Warn("could not remove replaced installation", "path", trash, "error", err)
		}
	}
	return nil
}

// ensureManaged refuses to touch paths outside the managed root.
func (s *Service) ensureManaged(path string) error {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(s.root) {
		return fmt.Errorf("refusing to operate on %q: outside managed root %q", path, s.root)
	}
	return nil
}
