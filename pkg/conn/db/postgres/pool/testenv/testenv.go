// Test fixtures for tests needing a real PostgreSQL (+Citus) backend.
//
// Set PLATEFAB_TEST_DATABASE to a connection string to enable such tests.
// Without it, they are skipped.
package testenv

import (
	"context"
	"os"
	"testing"

	kpool "github.com/platefab/platefab/pkg/conn/db/postgres/pool"
)

const databaseEnvvar = "PLATEFAB_TEST_DATABASE"

// PoolBroaker is an interface to get a pool against the test database.
type PoolBroaker interface {
	// GetPool returns a pool.
	//
	// The pool is closed when t finishes.
	GetPool(ctx context.Context, t *testing.T) kpool.Pool
}

type envPoolBroaker struct {
	uri string
}

func (b *envPoolBroaker) GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	t.Helper()

	pool, err := kpool.Connect(ctx, b.uri, 5)
	if err != nil {
		t.Fatalf("can not connect to test database: %s", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// NewPoolBroaker returns a PoolBroaker against the database named by
// PLATEFAB_TEST_DATABASE.
//
// When the variable is not set, the calling test is skipped.
func NewPoolBroaker(_ context.Context, t *testing.T) PoolBroaker {
	t.Helper()

	uri := os.Getenv(databaseEnvvar)
	if uri == "" {
		t.Skipf("%s is not set. skip.", databaseEnvvar)
	}
	return &envPoolBroaker{uri: uri}
}
