package testutil

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/nhle/mailcow-companion/internal/storage"
)

// NewTestStorage creates a storage.Service backed by a SQLite file in a
// temporary directory. It automatically closes the backend when the
// test completes.
func NewTestStorage(t *testing.T) *storage.Service {
	t.Helper()

	b, err := storage.OpenLocal(filepath.Join(t.TempDir(), "storage.db"))
	if err != nil {
		t.Fatalf("creating test storage: %v", err)
	}

	s := storage.NewService(b, zaptest.NewLogger(t))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test storage: %v", err)
		}
	})

	return s
}
