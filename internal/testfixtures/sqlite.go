package testfixtures

import (
	"path/filepath"
	"testing"

	"github.com/example/smarthome-admin/internal/docstore/sqlite"
)

// NewSQLiteStore opens a document store backed by a temporary SQLite file for
// integration-style persistence tests. The store is closed on test cleanup.
func NewSQLiteStore(tb testing.TB, clock *Clock) *sqlite.Store {
	tb.Helper()

	if clock == nil {
		clock = NewClock(ReferenceTime())
	}
	path := filepath.Join(tb.TempDir(), "smarthome-admin.db")

	store, err := sqlite.Open(path, clock.NowFunc())
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
