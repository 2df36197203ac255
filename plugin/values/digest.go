package values

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Digest represents a content hash with algorithm.
// For local plugin sources it stands in for a git commit: a fingerprint of
// the installed tree, used only for display and change detection.
type Digest struct {
	algorithm string // sha256
	value     string // hex-encoded hash
}

// NewDigest creates a digest from algorithm and hex value.
func NewDigest(algorithm, hexValue string) (Digest, error) {
	if algorithm != "sha256" {
		return Digest{}, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}
	if hexValue == "" {
		return Digest{}, fmt.Errorf("empty digest value")
	}
	return Digest{algorithm: algorithm, value: hexValue}, nil
}

// ParseDigest parses a digest string (e.g., "sha256:abc123...").
func ParseDigest(s string) (Digest, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Digest{}, fmt.Errorf("invalid digest format: %s", s)
	}
	return NewDigest(parts[0], parts[1])
}

// String returns the canonical digest string.
func (d Digest) String() string {
	return fmt.Sprintf("%s:%s", d.algorithm, d.value)
}

// Algorithm returns the hash algorithm.
func (d Digest) Algorithm() string {
	return d.algorithm
}

// Value returns the hex-encoded hash value.
func (d Digest) Value() string {
	return d.value
}

// Equals checks equality with another digest.
func (d Digest) Equals(other Digest) bool {
	return d.algorithm == other.algorithm && d.value == other.value
}

// ComputeDigestSHA256 computes SHA-256 digest of reader contents.
func ComputeDigestSHA256(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	return Digest{
		algorithm: "sha256",
		value:     hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// ComputeTreeDigest fingerprints a directory tree: SHA-256 over each regular
// file's slash-separated relative path followed by its contents, visited in
// sorted order so the result is stable across platforms.
func ComputeTreeDigest(root string) (Digest, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return Digest{}, fmt.Errorf("walk tree: %w", err)
	}
	sort.Strings(files)

	h := sha256.New()
	for _, p := range files {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return Digest{}, err
		}
		// Path then NUL then contents, so renames change the digest.
		if _, err := io.WriteString(h, filepath.ToSlash(rel)); err != nil {
			return Digest{}, err
		}
		if _, err := h.Write([]byte{0}); err != nil {
			return Digest{}, err
		}
		f, err := os.Open(p)
		if err != nil {
			return Digest{}, err
		}
		_, err = io.Copy(h, f)
		_ = f.Close()
		if err != nil {
			return Digest{}, err
		}
	}

	return Digest{
		algorithm: "sha256",
		value:     hex.EncodeToString(h.Sum(nil)),
	}, nil
}
