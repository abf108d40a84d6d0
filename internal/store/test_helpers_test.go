package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/carbontoken/internal/ledger"
)

// testNow is the fixed timestamp stamped on every row written in tests.
var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed SQLite store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.WithClock(func() time.Time { return testNow })
}

// shipmentKey builds a shipment key with fixed parent ids.
func shipmentKey(tracking string) ledger.Key {
	return ledger.ShipmentKey("10020", "00001", tracking)
}
