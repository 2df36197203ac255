package values

import (
	"fmt"
	"strings"
)

// PluginName represents a validated plugin identifier.
// Names become directory names under the managed root, so the rules are
// strict: alphanumerics, underscores, and hyphens only.
type PluginName struct {
	value string
}

// NewPluginName creates a PluginName with strict validation.
// A valid plugin name must:
// - Be non-empty and at most 64 characters
// - contain only alphanumeric characters, underscores, and hyphens
// - NOT contain path separators or parent directory references
func NewPluginName(name string) (PluginName, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PluginName{}, fmt.Errorf("plugin name cannot be empty")
	}

	if len(name) > 64 {
		return PluginName{}, fmt.Errorf("plugin name too long (max 64 chars)")
	}

	// Security check: Path separators
	if strings.ContainsAny(name, `/\`) {
		return PluginName{}, fmt.Errorf("plugin name cannot contain path separators")
	}

	// Security check: Directory traversal
	if strings.Contains(name, "..") {
		return PluginName{}, fmt.Errorf("plugin name cannot contain parent directory references")
	}

	for _, ch := range name {
		if !isValidPluginChar(ch) {
			return PluginName{}, fmt.Errorf("invalid plugin name %q: must contain only alphanumeric characters, underscores, and hyphens", name)
		}
	}

	return PluginName{value: name}, nil
}

func isValidPluginChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '_' ||
		r == '-'
}

// MustNewPluginName creates a PluginName or panics
func MustNewPluginName(name string) PluginName {
	pn, err := NewPluginName(name)
	if err != nil {
		panic(err)
	}
	return pn
}

// String returns the string representation
func (p PluginName) String() string {
	return p.value
}

// IsEmpty returns true if this is the zero value
func (p PluginName) IsEmpty() bool {
	return p.value == ""
}

// Equals checks if two plugin names are equal
func (p PluginName) Equals(other PluginName) bool {
	return p.value == other.value
}
