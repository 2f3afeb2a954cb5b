package testsupport

import (
	"testing"

	"songlens/internal/config"
	"songlens/internal/store"
)

// MustOpenStore opens the results database for cfg and closes it when the
// test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()
	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
