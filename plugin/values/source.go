package values

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// SourceKind discriminates the supported plugin source forms.
type SourceKind string

const (
	// SourceGithub is the "github:owner/repo" shorthand.
	SourceGithub SourceKind = "github"
	// SourceGitURL is a full HTTP(S) git remote URL.
	SourceGitURL SourceKind = "git-url"
	// SourceGitSSH is an scp-like SSH remote ("user@host:owner/repo[.git]").
	SourceGitSSH SourceKind = "git-ssh"
	// SourceLocal is a directory on the local filesystem.
	SourceLocal SourceKind = "local"
)

// Sentinel errors for source resolution failures.
var (
	// ErrInvalidSourceFormat is returned when no parsing rule matches.
	ErrInvalidSourceFormat = errors.New("invalid source format")

	// ErrUnsafePath is returned when a subdirectory escapes the fetched root.
	ErrUnsafePath = errors.New("unsafe subdirectory path")

	// ErrRefNotApplicable is returned when a ref is combined with a local path.
	ErrRefNotApplicable = errors.New("ref not applicable to local sources")
)

// Source is an immutable, resolved plugin source descriptor.
// Downstream code switches on Kind instead of re-inspecting strings.
type Source struct {
	kind     SourceKind
	location string // owner/repo, URL, or absolute path
	ref      string // branch/tag/commit; empty means default branch
	subdir   string // repository-relative subdirectory, slash-separated
}

var (
	githubShorthandRe = regexp.MustCompile(`^github:([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?$`)
	sshRemoteRe       = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9._-]+:[A-Za-z0-9._~-][A-Za-z0-9._/~-]*(?:\.git)?$`)
)

// ParseSource resolves a raw source string plus separately supplied ref and
// subdir into a typed Source. Parsing precedence, first match wins:
//
//  1. github:<owner>/<repo> shorthand
//  2. full HTTP(S) git remote URL
//  3. scp-like SSH remote (user@host:owner/repo[.git])
//  4. an existing filesystem path, expanded against the working directory
//
// Anything else fails with ErrInvalidSourceFormat. A non-empty ref combined
// with a local path fails with ErrRefNotApplicable.
func ParseSource(raw, ref, subdir string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, fmt.Errorf("%w: empty source", ErrInvalidSourceFormat)
	}

	subdir, err := normalizeSubdir(subdir)
	if err != nil {
		return Source{}, err
	}

	if m := githubShorthandRe.FindStringSubmatch(raw); m != nil {
		return Source{kind: SourceGithub, location: m[1] + "/" + m[2], ref: ref, subdir: subdir}, nil
	}

	if isGitHTTPURL(raw) {
		return Source{kind: SourceGitURL, location: raw, ref: ref, subdir: subdir}, nil
	}

	if sshRemoteRe.MatchString(raw) {
		return Source{kind: SourceGitSSH, location: raw, ref: ref, subdir: subdir}, nil
	}

	abs, err := filepath.Abs(raw)
	if err == nil {
		if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
			if ref != "" {
				return Source{}, fmt.Errorf("%w: %q", ErrRefNotApplicable, raw)
			}
			return Source{kind: SourceLocal, location: abs, subdir: subdir}, nil
		}
	}

	return Source{}, fmt.Errorf("%w: %q", ErrInvalidSourceFormat, raw)
}

// NewSource rehydrates a Source from stored components, re-validating the
// invariants ParseSource enforces. Used when reading registry records back.
func NewSource(kind SourceKind, location, ref, subdir string) (Source, error) {
	switch kind {
	case SourceGithub, SourceGitURL, SourceGitSSH, SourceLocal:
	default:
		return Source{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidSourceFormat, kind)
	}
	if location == "" {
		return Source{}, fmt.Errorf("%w: empty location", ErrInvalidSourceFormat)
	}
	if kind == SourceLocal && ref != "" {
		return Source{}, fmt.Errorf("%w: %q", ErrRefNotApplicable, location)
	}
	subdir, err := normalizeSubdir(subdir)
	if err != nil {
		return Source{}, err
	}
	return Source{kind: kind, location: location, ref: ref, subdir: subdir}, nil
}

func isGitHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != "" && strings.Trim(u.Path, "/") != ""
}

// normalizeSubdir cleans a repository-relative subdirectory and rejects
// anything that could escape the fetched root.
func normalizeSubdir(subdir string) (string, error) {
	if subdir == "" {
		return "", nil
	}
	cleaned := path.Clean(filepath.ToSlash(subdir))
	if cleaned == "." {
		return "", nil
	}
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, subdir)
	}
	return cleaned, nil
}

// Kind returns the source discriminator.
func (s Source) Kind() SourceKind {
	return s.kind
}

// Location returns the normalized origin: owner/repo for the GitHub
// shorthand, the URL for git remotes, or an absolute path for local sources.
func (s Source) Location() string {
	return s.location
}

// Ref returns the requested branch/tag/commit, empty for the default branch.
func (s Source) Ref() string {
	return s.ref
}

// Subdir returns the repository-relative subdirectory, empty for the root.
func (s Source) Subdir() string {
	return s.subdir
}

// IsRemote reports whether fetching this source requires git.
func (s Source) IsRemote() bool {
	return s.kind != SourceLocal
}

// CloneURL returns the git remote URL for remote kinds.
func (s Source) CloneURL() string {
	if s.kind == SourceGithub {
		return "https://github.com/" + s.location + ".git"
	}
	return s.location
}

// DeriveName computes the default plugin name: the subdirectory basename for
// monorepo installs, otherwise the repository or directory basename.
func (s Source) DeriveName() string {
	if s.subdir != "" {
		return path.Base(s.subdir)
	}
	switch s.kind {
	case SourceGithub:
		_, repo, _ := strings.Cut(s.location, "/")
		return repo
	case SourceGitURL:
		u, err := url.Parse(s.location)
		if err != nil {
			return ""
		}
		return strings.TrimSuffix(path.Base(strings.Trim(u.Path, "/")), ".git")
	case SourceGitSSH:
		_, remotePath, _ := strings.Cut(s.location, ":")
		return strings.TrimSuffix(path.Base(remotePath), ".git")
	case SourceLocal:
		return filepath.Base(s.location)
	}
	return ""
}

// String returns a display form of the descriptor.
func (s Source) String() string {
	out := s.location
	if s.kind == SourceGithub {
		out = "github:" + s.location
	}
	if s.subdir != "" {
		out += "//" + s.subdir
	}
	if s.ref != "" {
		out += "@" + s.ref
	}
	return out
}

// Equals checks equality with another source descriptor.
func (s Source) Equals(other Source) bool {
	return s == other
}
