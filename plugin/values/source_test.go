package values

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_ParseSource_GithubShorthand(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		location string
		wantErr  bool
	}{
		{"simple", "github:acme/sample-plugin", "acme/sample-plugin", false},
		{"dotted repo", "github:acme/tools.io", "acme/tools.io", false},
		{"git suffix stripped", "github:acme/sample.git", "acme/sample", false},
		{"missing repo", "github:acme", "", true},
		{"extra segment", "github:acme/repo/extra", "", true},
		{"empty", "github:/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := ParseSource(tt.raw, "", "")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSourceFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, SourceGithub, src.Kind())
			assert.Equal(t, tt.location, src.Location())
		})
	}
}

func Test_ParseSource_GitURL(t *testing.T) {
	src, err := ParseSource("https://gitlab.example.com/acme/widget.git", "v1.2.3", "")
	require.NoError(t, err)
	assert.Equal(t, SourceGitURL, src.Kind())
	assert.Equal(t, "https://gitlab.example.com/acme/widget.git", src.Location())
	assert.Equal(t, "v1.2.3", src.Ref())
	assert.Equal(t, "widget", src.DeriveName())

	_, err = ParseSource("https://example.com", "", "")
	assert.ErrorIs(t, err, ErrInvalidSourceFormat, "URL without a path is not a git remote")
}

func Test_ParseSource_SSHRemote(t *testing.T) {
	src, err := ParseSource("git@github.com:acme/widget.git", "", "")
	require.NoError(t, err)
	assert.Equal(t, SourceGitSSH, src.Kind())
	assert.Equal(t, "git@github.com:acme/widget.git", src.Location())
	assert.Equal(t, "widget", src.DeriveName())
	assert.Equal(t, "git@github.com:acme/widget.git", src.CloneURL())
}

func Test_ParseSource_LocalPath(t *testing.T) {
	dir := t.TempDir()

	src, err := ParseSource(dir, "", "")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, src.Kind())
	assert.Equal(t, dir, src.Location())
	assert.Equal(t, filepath.Base(dir), src.DeriveName())
	assert.False(t, src.IsRemote())
}

func Test_ParseSource_LocalPath_Relative(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "my-plugin")
	require.NoError(t, os.Mkdir(sub, 0o750))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	src, err := ParseSource("my-plugin", "", "")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, src.Kind())
	assert.True(t, filepath.IsAbs(src.Location()))
}

func Test_ParseSource_LocalPath_RefNotApplicable(t *testing.T) {
	dir := t.TempDir()
	_, err := ParseSource(dir, "v1.0.0", "")
	assert.ErrorIs(t, err, ErrRefNotApplicable)
}

func Test_ParseSource_NoRuleMatches(t *testing.T) {
	_, err := ParseSource("definitely/not/a/real/path", "", "")
	assert.ErrorIs(t, err, ErrInvalidSourceFormat)

	_, err = ParseSource("", "", "")
	assert.ErrorIs(t, err, ErrInvalidSourceFormat)
}

func Test_ParseSource_SubdirTraversal(t *testing.T) {
	tests := []struct {
		name    string
		subdir  string
		wantErr bool
		cleaned string
	}{
		{"plain", "plugins/widget", false, "plugins/widget"},
		{"cleaned inner dotdot", "plugins/../plugins/widget", false, "plugins/widget"},
		{"dot", ".", false, ""},
		{"escape", "../outside", true, ""},
		{"escape after clean", "plugins/../../outside", true, ""},
		{"bare dotdot", "..", true, ""},
		{"absolute", "/etc", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := ParseSource("github:acme/widget", "", tt.subdir)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsafePath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cleaned, src.Subdir())
		})
	}
}

func Test_Source_DeriveName_SubdirWins(t *testing.T) {
	src, err := ParseSource("github:acme/monorepo", "", "plugins/widget")
	require.NoError(t, err)
	assert.Equal(t, "widget", src.DeriveName())
}

func Test_Source_CloneURL(t *testing.T) {
	src, err := ParseSource("github:acme/widget", "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/widget.git", src.CloneURL())
}

func Test_NewSource_RoundTrip(t *testing.T) {
	orig, err := ParseSource("github:acme/widget", "v2", "plugins/widget")
	require.NoError(t, err)

	rehydrated, err := NewSource(orig.Kind(), orig.Location(), orig.Ref(), orig.Subdir())
	require.NoError(t, err)
	assert.True(t, orig.Equals(rehydrated))
}

func Test_NewSource_Invalid(t *testing.T) {
	_, err := NewSource("carrier-pigeon", "acme/widget", "", "")
	assert.ErrorIs(t, err, ErrInvalidSourceFormat)

	_, err = NewSource(SourceLocal, "/some/path", "v1", "")
	assert.ErrorIs(t, err, ErrRefNotApplicable)
}

// Property: every well-formed github:owner/repo shorthand resolves to the
// GithubShorthand kind with location owner/repo.
func Test_ParseSource_GithubShorthand_Property(t *testing.T) {
	ident := rapid.StringMatching(`[A-Za-z0-9_-]{1,20}`)

	rapid.Check(t, func(t *rapid.T) {
		owner := ident.Draw(t, "owner")
		repo := ident.Draw(t, "repo")

		src, err := ParseSource("github:"+owner+"/"+repo, "", "")
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if src.Kind() != SourceGithub {
			t.Fatalf("kind = %q", src.Kind())
		}
		if src.Location() != owner+"/"+repo {
			t.Fatalf("location = %q", src.Location())
		}
		if src.DeriveName() != repo {
			t.Fatalf("derived name = %q", src.DeriveName())
		}
	})
}

// Property: any subdir whose cleaned form starts with ".." is rejected.
func Test_ParseSource_SubdirEscape_Property(t *testing.T) {
	segment := rapid.StringMatching(`[a-z]{1,8}`)

	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(0, 3).Draw(t, "depth")
		subdir := ".."
		for i := 0; i < depth; i++ {
			subdir = subdir + "/" + segment.Draw(t, "seg")
		}
		// Prefixing with ".." always escapes, whatever follows.
		_, err := ParseSource("github:acme/widget", "", subdir)
		if err == nil {
			t.Fatalf("expected rejection of subdir %q", subdir)
		}
	})
}
