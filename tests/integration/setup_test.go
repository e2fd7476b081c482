package integration

import (
	"context"
	"testing"
)

// setupDB skips in short mode, starts a database and registers teardown.
func setupDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("failed to set up test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Teardown(context.Background())
	})
	return db
}
