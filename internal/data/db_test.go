package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// setupTestStore creates a store backed by a temp directory. The store is
// closed automatically when the test finishes.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestNewDB(t *testing.T) {
	t.Run("creates database in valid directory", func(t *testing.T) {
		tmpDir := t.TempDir()

		store, err := NewDB(tmpDir)
		if err != nil {
			t.Fatalf("NewDB failed: %v", err)
		}
		defer store.Close()

		dbPath := filepath.Join(tmpDir, "brain.db")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file not created")
		}

		if err := store.Health(); err != nil {
			t.Errorf("health check failed: %v", err)
		}
	})

	t.Run("creates nested directory structure", func(t *testing.T) {
		tmpDir := t.TempDir()
		nestedDir := filepath.Join(tmpDir, "deep", "nested", "brain")

		store, err := NewDB(nestedDir)
		if err != nil {
			t.Fatalf("NewDB with nested dir failed: %v", err)
		}
		defer store.Close()

		if _, err := os.Stat(nestedDir); os.IsNotExist(err) {
			t.Error("nested directory not created")
		}
	})

	t.Run("idempotent migrations", func(t *testing.T) {
		tmpDir := t.TempDir()

		store1, err := NewDB(tmpDir)
		if err != nil {
			t.Fatalf("first NewDB failed: %v", err)
		}
		store1.Close()

		store2, err := NewDB(tmpDir)
		if err != nil {
			t.Fatalf("second NewDB failed: %v", err)
		}
		defer store2.Close()

		if err := store2.Health(); err != nil {
			t.Errorf("health check after re-init failed: %v", err)
		}
	})
}

func TestWithTx(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO conversations (id, interface_type, room_id, metadata, created_at, updated_at)
				VALUES ('conv_tx1', 'cli', 'room-tx1', '{}', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')
			`)
			return err
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}

		if _, err := store.GetConversation(ctx, "conv_tx1"); err != nil {
			t.Errorf("committed row not visible: %v", err)
		}
	})

	t.Run("rolls back on error", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO conversations (id, interface_type, room_id, metadata, created_at, updated_at)
				VALUES ('conv_tx2', 'cli', 'room-tx2', '{}', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')
			`); err != nil {
				return err
			}
			return fmt.Errorf("boom")
		})
		if err == nil {
			t.Fatal("expected error from WithTx")
		}

		if _, err := store.GetConversation(ctx, "conv_tx2"); err == nil {
			t.Error("rolled back row should not be visible")
		}
	})
}
