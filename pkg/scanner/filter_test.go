package scanner

import (
	"io/fs"
	"testing"

	"github.com/grovetools/extcore/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatching(t *testing.T) {
	tests := []struct {
		name     string
		match    string
		patterns []string
		accept   []string
		reject   []string
	}{
		{
			name:   "defaults",
			accept: []string{"a.zip", "lib/b.jar", "x/y/app.war", "pkg.tar.gz", "native.so", "plugin.wasm"},
			reject: []string{"readme.md", "a.zip.tmp", "tar.gz.txt"},
		},
		{
			name:     "or",
			match:    "or",
			patterns: []string{"*.zip", "*.jar"},
			accept:   []string{"a.zip", "deep/b.jar"},
			reject:   []string{"c.war"},
		},
		{
			name:     "and",
			match:    "and",
			patterns: []string{"*.zip", "release-*"},
			accept:   []string{"release-1.zip", "x/release-2.zip"},
			reject:   []string{"a.zip", "release-1.jar"},
		},
		{
			name:     "exclusion",
			patterns: []string{"*.zip", "!*-SNAPSHOT.zip"},
			accept:   []string{"a-1.0.zip"},
			reject:   []string{"a-SNAPSHOT.zip", "b/a-SNAPSHOT.zip"},
		},
		{
			name:     "exclusion in and filter",
			match:    "and",
			patterns: []string{"*.zip", "!tmp-*"},
			accept:   []string{"a.zip"},
			reject:   []string{"tmp-a.zip"},
		},
		{
			name:     "only exclusions",
			patterns: []string{"!*.tmp"},
			accept:   []string{"a.zip", "readme.md"},
			reject:   []string{"x.tmp"},
		},
		{
			name:     "path pattern",
			patterns: []string{"libs/*.jar"},
			accept:   []string{"libs/a.jar"},
			reject:   []string{"other/a.jar", "a.jar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.match, tt.patterns...)
			require.NoError(t, err)

			for _, rel := range tt.accept {
				_, ok := f.Match(rel, nil)
				assert.True(t, ok, "expected %s to match", rel)
			}
			for _, rel := range tt.reject {
				_, ok := f.Match(rel, nil)
				assert.False(t, ok, "expected %s not to match", rel)
			}
		})
	}
}

func TestFilterReportsPattern(t *testing.T) {
	f, err := NewOrFilter("*.zip", "*.jar")
	require.NoError(t, err)

	pattern, ok := f.Match("lib/a.jar", nil)
	require.True(t, ok)
	assert.Equal(t, "*.jar", pattern)
}

func TestFilterRejectsInvalidPatterns(t *testing.T) {
	tests := []struct {
		name     string
		match    string
		patterns []string
	}{
		{"bad glob", "or", []string{"[a-"}},
		{"bare exclusion", "or", []string{"!"}},
		{"and without patterns", "and", nil},
		{"unknown mode", "xor", []string{"*.zip"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFilter(tt.match, tt.patterns...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid), "got %v", err)
		})
	}
}

func TestFilterFunc(t *testing.T) {
	f := FilterFunc(func(rel string, _ fs.DirEntry) (string, bool) {
		return "custom", rel == "keep"
	})

	_, ok := f.Match("drop", nil)
	assert.False(t, ok)
	pattern, ok := f.Match("keep", nil)
	assert.True(t, ok)
	assert.Equal(t, "custom", pattern)
}
