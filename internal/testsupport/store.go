package testsupport

import (
	"context"
	"testing"

	"hauptstimme/internal/config"
	"hauptstimme/internal/corpus"
)

// MustOpenStore opens a corpus.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *corpus.Store {
	t.Helper()

	store, err := corpus.Open(cfg)
	if err != nil {
		t.Fatalf("corpus.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewScore creates a new corpus item for tests using the provided store.
func NewScore(t testing.TB, store *corpus.Store, scorePath, fingerprint string) *corpus.Item {
	t.Helper()

	item, err := store.NewScore(context.Background(), scorePath, "", fingerprint)
	if err != nil {
		t.Fatalf("store.NewScore: %v", err)
	}
	return item
}
