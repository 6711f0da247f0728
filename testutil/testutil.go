// Package testutil builds module trees for tests.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteTree creates files below root. Keys are slash separated paths
// relative to root; a key ending in "/" creates an empty directory.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(path, 0755); err != nil {
				t.Fatalf("Failed to create directory %s: %v", rel, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create parent of %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}

// WriteModules creates n module files with extension ext spread over a few
// nested directories and returns their relative paths.
func WriteModules(t *testing.T, root string, n int, ext string) []string {
	t.Helper()

	rels := make([]string, 0, n)
	files := make(map[string]string, n)
	for i := 0; i < n; i++ {
		rel := fmt.Sprintf("group-%d/sub-%d/module-%03d%s", i%3, i%2, i, ext)
		files[rel] = RandomString(16)
		rels = append(rels, rel)
	}
	WriteTree(t, root, files)
	return rels
}

// RandomString generates a random string of the specified length
func RandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}
