package testutils

import (
	"os"
	"path/filepath"
	"testing"
)

// GetRepoRootDir walks up from the working directory to the module root.
func GetRepoRootDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working dir: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("no go.mod above the working dir")
		}
		dir = parent
	}
}

func GetBuildsDir(t *testing.T) string {
	return filepath.Join(GetRepoRootDir(t), "contracts", "build")
}

// RequireArtifact returns the path of a compiled contract and skips the test
// when it has not been built.
func RequireArtifact(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(GetBuildsDir(t), name)
	if _, err := os.Stat(path); err != nil {
		t.Skipf("compiled contract %s not found, build the contracts first", path)
	}
	return path
}
