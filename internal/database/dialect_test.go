package database

import (
	"strings"
	"testing"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "sqlite3"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if !result {
			t.Error("SupportsLastInsertId() should return true for SQLite")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "sqlite"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	dialect := NewPostgresDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "postgres"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if result {
			t.Error("SupportsLastInsertId() should return false for PostgreSQL")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "postgres"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "mysql"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if !result {
			t.Error("SupportsLastInsertId() should return true for MySQL")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "mysql"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "INSERT INTO users (name, email) VALUES (?, ?)",
			expected: "INSERT INTO users (name, email) VALUES ($1, $2)",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE users SET name = ?, email = ? WHERE id = ?",
			expected: "UPDATE users SET name = ?, email = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestLockForUpdate(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		expected string
	}{
		{name: "SQLite relies on immediate transactions", dialect: NewSQLiteDialect(), expected: ""},
		{name: "PostgreSQL row lock", dialect: NewPostgresDialect(), expected: " FOR UPDATE"},
		{name: "MySQL row lock", dialect: NewMySQLDialect(), expected: " FOR UPDATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.dialect.LockForUpdate(); result != tt.expected {
				t.Errorf("LockForUpdate() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		config   DialectConfig
		expected string
	}{
		{
			name:     "SQLite plain path",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "./ampa.db"},
			expected: "./ampa.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate",
		},
		{
			name:     "SQLite path with params",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "file:ampa.db?cache=shared"},
			expected: "file:ampa.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate",
		},
		{
			name:     "MySQL adds parseTime",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "user:pw@tcp(localhost:3306)/ampa"},
			expected: "user:pw@tcp(localhost:3306)/ampa?parseTime=true",
		},
		{
			name:     "MySQL keeps explicit parseTime",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "user:pw@tcp(localhost:3306)/ampa?parseTime=false"},
			expected: "user:pw@tcp(localhost:3306)/ampa?parseTime=false",
		},
		{
			name:     "PostgreSQL passes URL through",
			dialect:  NewPostgresDialect(),
			config:   DialectConfig{URL: "postgres://localhost/ampa"},
			expected: "postgres://localhost/ampa",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.dialect.DSN(tt.config); result != tt.expected {
				t.Errorf("DSN() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestResetSequenceQuery(t *testing.T) {
	if q := NewSQLiteDialect().ResetSequenceQuery("families"); q != "" {
		t.Errorf("SQLite ResetSequenceQuery() = %q, want empty", q)
	}
	q := NewPostgresDialect().ResetSequenceQuery("families")
	if !strings.Contains(q, "pg_get_serial_sequence('families', 'id')") {
		t.Errorf("PostgreSQL ResetSequenceQuery() = %q, missing sequence lookup", q)
	}
	if !strings.Contains(q, "GREATEST(") || !strings.Contains(q, "pg_sequence_last_value(pg_get_serial_sequence('families', 'id')::regclass)") {
		t.Errorf("PostgreSQL ResetSequenceQuery() = %q, may move the sequence backwards", q)
	}
	if q := NewMySQLDialect().ResetSequenceQuery("families"); q != "" {
		t.Errorf("MySQL ResetSequenceQuery() = %q, want empty", q)
	}
}

func TestSplitStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (id INTEGER);

-- second
CREATE INDEX idx_a ON a(id);
`
	statements := splitStatements(content)
	if len(statements) != 2 {
		t.Fatalf("splitStatements() returned %d statements, want 2: %q", len(statements), statements)
	}
	if statements[0] != "CREATE TABLE a (id INTEGER)" {
		t.Errorf("statements[0] = %q", statements[0])
	}
	if statements[1] != "CREATE INDEX idx_a ON a(id)" {
		t.Errorf("statements[1] = %q", statements[1])
	}
}
