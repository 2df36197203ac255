package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error patterns.
// These allow both errors.Is() checks and errors.As() for detailed information.
var (
	// ErrSubdirNotFound is returned when a requested subdirectory is missing
	// from the fetched tree.
	ErrSubdirNotFound = errors.New("subdirectory not found")

	// ErrFetchFailed is returned when materializing a source into staging fails.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrNameConflict is returned when installing over an existing plugin
	// without force.
	ErrNameConflict = errors.New("plugin name conflict")

	// ErrNotInstalled is returned when operating on an unknown plugin name.
	ErrNotInstalled = errors.New("plugin not installed")

	// ErrInstallFailed is returned when the atomic publish step cannot complete.
	ErrInstallFailed = errors.New("install failed")

	// ErrCorruptRegistry is returned when the registry document cannot be parsed.
	ErrCorruptRegistry = errors.New("corrupt registry")

	// ErrOperationInProgress is returned when another operation holds the
	// per-name lock.
	ErrOperationInProgress = errors.New("operation in progress")

	// ErrInvalidManifest is returned when a fetched tree carries a malformed
	// plugin manifest.
	ErrInvalidManifest = errors.New("invalid plugin manifest")
)

// FetchError indicates a failed fetch with its underlying cause.
type FetchError struct {
	Source string
	Cause  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.Source, e.Cause)
}

// Is implements error matching for errors.Is() checks.
// This allows: errors.Is(err, entities.ErrFetchFailed)
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// SubdirNotFoundError indicates a subdirectory missing from a fetched tree.
type SubdirNotFoundError struct {
	Subdir string
	Source string
}

func (e *SubdirNotFoundError) Error() string {
	return fmt.Sprintf("subdirectory %q not found in %s", e.Subdir, e.Source)
}

func (e *SubdirNotFoundError) Is(target error) bool {
	return target == ErrSubdirNotFound
}

// NameConflictError indicates an install over an existing name without force.
type NameConflictError struct {
	Name string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("plugin %q is already installed (use force to replace)", e.Name)
}

func (e *NameConflictError) Is(target error) bool {
	return target == ErrNameConflict
}

// NotInstalledError indicates an unknown plugin name.
type NotInstalledError struct {
	Name string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("plugin %q is not installed", e.Name)
}

func (e *NotInstalledError) Is(target error) bool {
	return target == ErrNotInstalled
}

// InstallError indicates the atomic publish step failed; the previous
// installation, if any, has been left in place.
type InstallError struct {
	Name  string
	Cause error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install of %q failed: %v", e.Name, e.Cause)
}

func (e *InstallError) Is(target error) bool {
	return target == ErrInstallFailed
}

func (e *InstallError) Unwrap() error {
	return e.Cause
}

// CorruptRegistryError indicates an unreadable registry document. It is never
// auto-repaired: discarding it could lose record of real installations.
type CorruptRegistryError struct {
	Path  string
	Cause error
}

func (e *CorruptRegistryError) Error() string {
	return fmt.Sprintf("corrupt registry at %s: %v", e.Path, e.Cause)
}

func (e *CorruptRegistryError) Is(target error) bool {
	return target == ErrCorruptRegistry
}

func (e *CorruptRegistryError) Unwrap() error {
	return e.Cause
}
