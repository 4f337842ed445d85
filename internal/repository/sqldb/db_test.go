package sqldb

import (
	"context"
	"testing"

	"github.com/sakif/bookshelf/internal/model"
)

// newTestDB opens a fresh in-memory SQLite database with the schema applied.
// Each test gets its own database; t.Cleanup closes it when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a local user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  "$2a$04$notarealhashbutlongenoughtostore",
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn         string
		wantDriver  string
		wantSource  string
		wantDialect Dialect
	}{
		{"postgres://u:p@localhost/books", "pgx", "postgres://u:p@localhost/books", DialectPostgres},
		{"postgresql://localhost/books?sslmode=disable", "pgx", "postgresql://localhost/books?sslmode=disable", DialectPostgres},
		{"sqlite://data/books.db", "sqlite", "data/books.db", DialectSQLite},
		{"file:data/books.db", "sqlite", "file:data/books.db", DialectSQLite},
		{":memory:", "sqlite", ":memory:", DialectSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			driver, source, dialect := ParseDSN(tt.dsn)
			if driver != tt.wantDriver || source != tt.wantSource || dialect != tt.wantDialect {
				t.Errorf("ParseDSN(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.dsn, driver, source, dialect, tt.wantDriver, tt.wantSource, tt.wantDialect)
			}
		})
	}
}

func TestNew_MigratesSchema(t *testing.T) {
	db := newTestDB(t)

	if db.Dialect() != DialectSQLite {
		t.Errorf("Dialect() = %q, want %q", db.Dialect(), DialectSQLite)
	}

	n, err := db.Items().CountPublic(context.Background())
	if err != nil {
		t.Fatalf("CountPublic() on fresh db error = %v", err)
	}
	if n != 0 {
		t.Errorf("CountPublic() = %d, want 0", n)
	}
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)

	// Running the provider a second time must be a no-op.
	if err := db.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}
