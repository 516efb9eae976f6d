package store

import (
	"context"
	"errors"
	"testing"
)

// runStoreTests exercises the Store contract against any implementation.
func runStoreTests(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing key: err = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "device.id", "dev-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "device.id")
	if err != nil || got != "dev-1" {
		t.Fatalf("Get = %q, %v; want dev-1", got, err)
	}

	// Overwrite
	if err := s.Set(ctx, "device.id", "dev-2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err = s.Get(ctx, "device.id")
	if err != nil || got != "dev-2" {
		t.Fatalf("Get after overwrite = %q, %v; want dev-2", got, err)
	}

	if err := s.Delete(ctx, "device.id"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "device.id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}

	// Deleting again is fine
	if err := s.Delete(ctx, "device.id"); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	runStoreTests(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	runStoreTests(t, s)
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	path := t.TempDir() + "/settings.db"
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "device.id", "dev-1"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "device.id")
	if err != nil || got != "dev-1" {
		t.Fatalf("value did not survive reopen: %q, %v", got, err)
	}
}
