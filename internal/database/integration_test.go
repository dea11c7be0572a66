package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	tables := []string{"users", "sessions", "families", "members", "migrations"}
	for _, table := range tables {
		query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
		var name string
		if err := db.QueryRowContext(ctx, query, table).Scan(&name); err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	// Running again must be a no-op
	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 recorded migration, got %d", count)
	}
}

// TestWithTx tests commit and rollback through the transaction helper
func TestWithTx(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecReturningID(ctx,
			"INSERT INTO users (username, name, password_hash, role) VALUES (?, ?, ?, ?)",
			"committed", "Committed", "hash", "USER")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() commit path error = %v", err)
	}

	boom := errors.New("boom")
	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users (username, name, password_hash, role) VALUES (?, ?, ?, ?)",
			"rolledback", "Rolled Back", "hash", "USER"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want %v", err, boom)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", "committed").Scan(&count); err != nil {
		t.Fatalf("Failed to query after commit: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 committed user, got %d", count)
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", "rolledback").Scan(&count); err != nil {
		t.Fatalf("Failed to query after rollback: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 users after rollback, got %d", count)
	}
}

// TestForeignKeysCascade checks members disappear with their family
func TestForeignKeysCascade(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	familyID, err := db.ExecReturningID(ctx, "INSERT INTO families (name) VALUES (?)", "Smith")
	if err != nil {
		t.Fatalf("Failed to insert family: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO members (family_id, first_name, last_name, role) VALUES (?, ?, ?, ?)",
		familyID, "Jo", "Smith", "CHILD"); err != nil {
		t.Fatalf("Failed to insert member: %v", err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM families WHERE id = ?", familyID); err != nil {
		t.Fatalf("Failed to delete family: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM members WHERE family_id = ?", familyID).Scan(&count); err != nil {
		t.Fatalf("Failed to count members: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected cascade to remove members, %d left", count)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	insert := "INSERT INTO users (username, name, password_hash, role) VALUES (?, ?, ?, ?)"
	if _, err := db.ExecContext(ctx, insert, "ana", "Ana", "hash", "USER"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	_, err := db.ExecContext(ctx, insert, "ana", "Ana Again", "hash", "USER")
	if err == nil {
		t.Fatal("duplicate username was accepted")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}

	if IsUniqueViolation(errors.New("other")) || IsUniqueViolation(nil) {
		t.Error("IsUniqueViolation() matched an unrelated error")
	}
}
