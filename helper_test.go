// Shared test helpers.
package pgdump

import (
	"iter"
	"path/filepath"
	"testing"
)

// collect materializes an iter.Seq2[T, error] into a slice, stopping on
// the first error.
func collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// newTestArchive creates a fresh archive with default config and
// registers cleanup to close it when the test finishes.
func newTestArchive(t *testing.T, cfg Config) *Archive {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// savedArchivePath saves a under a fresh temp dir and returns the path.
func savedArchivePath(t *testing.T, a *Archive) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dump")
	if err := a.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return path
}
