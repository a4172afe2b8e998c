package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/iliyamo/fernid/internal/database"
)

var dbSeq atomic.Int64

// OpenDB opens a private in-memory SQLite database with the application
// schema applied.  The database is closed via t.Cleanup.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	d, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// A single connection keeps the shared-cache database alive and
	// serializes writers.
	d.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = d.Close() })
	if err := database.Migrate(context.Background(), d, database.SQLite); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return d
}
