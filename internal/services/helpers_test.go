package services

import (
	"testing"
	"time"

	"qroll/internal/storage"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newMemoryStore() *storage.SessionStore {
	return storage.NewSessionStore(storage.NewMemoryKV())
}
