package storage

import (
	"os"
	"testing"

	"qroll/internal/models"
)

// Runs only against a real Redis: REDIS_TEST_URL=redis://localhost:6379/15
func TestRedisKV_SessionRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	client, err := NewRedisClient(url)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	kv := NewRedisKV(client, "qroll-test:")
	defer kv.Close()

	store := NewSessionStore(kv)
	defer store.Clear()

	if err := store.SetSession("tok", &models.User{ID: "u1", Role: models.RoleStudent}); err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	if !store.IsAuthenticated() {
		t.Fatalf("expected authenticated after SetSession")
	}
	u, _ := store.User()
	if u.Role != models.RoleStudent {
		t.Fatalf("expected student role, got %q", u.Role)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.IsAuthenticated() {
		t.Fatalf("expected unauthenticated after Clear")
	}
}
