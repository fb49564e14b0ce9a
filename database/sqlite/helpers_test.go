package sqlite_test

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	_ "modernc.org/sqlite"

	"github.com/dostvardhan/drivegate"
	"github.com/dostvardhan/drivegate/database/sqlite"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	assert.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// setupTestRepo creates a repo against a throwaway database file with a
// unique table name for test isolation.
func setupTestRepo(t *testing.T) (drivegate.TransferRepo, func()) {
	t.Helper()

	ctx := context.Background()

	tableName := fmt.Sprintf("transfers_%s", getRandomString(t))
	tables := drivegate.Tables{Transfers: tableName}

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "drivegate.db"))
	assert.NoError(t, err, "failed to open")

	err = sqlite.Migrate(ctx, db, tables)
	assert.NoError(t, err, "failed to migrate")

	repo, err := sqlite.NewRepo(db, tables)
	assert.NoError(t, err, "failed to create repo")

	cleanup := func() {
		_ = sqlite.DropTables(ctx, db, tables)
		_ = db.Close()
	}

	return repo, cleanup
}
