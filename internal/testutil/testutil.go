package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tasklane/todo-api/internal/database"
)

var dbSeq atomic.Int64

// OpenInMemoryDB opens a migrated, shared-cache in-memory SQLite database
// unique to the calling test. It is closed through t.Cleanup.
func OpenInMemoryDB(t *testing.T) *database.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1)))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
