// Package postgres is the storage-access layer: pooled transactional
// sessions over the global schema and the per-experiment schemas,
// idempotent schema creation, get-or-create under concurrent writers,
// and deletes that reclaim filesystem state.
package postgres

import (
	"context"
	"sync"

	kpool "github.com/platefab/platefab/pkg/conn/db/postgres/pool"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
)

// Databases caches one connection pool per connection string.
//
// A process builds exactly one Databases at startup with its
// configured pool size and threads it down to whoever opens sessions.
// Cluster worker processes configure size 1 to keep their connection
// footprint minimal.
type Databases struct {
	poolSize int

	mu    sync.Mutex
	pools map[string]kpool.Pool
}

func NewDatabases(poolSize int) (*Databases, error) {
	if poolSize < 1 {
		return nil, kerr.InvalidArgument{
			Name: "poolSize", Reason: "at least one connection is required",
		}
	}
	return &Databases{poolSize: poolSize, pools: map[string]kpool.Pool{}}, nil
}

// Pool returns the pool for uri, opening it on first use.
func (d *Databases) Pool(ctx context.Context, uri string) (kpool.Pool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pools[uri]; ok {
		return p, nil
	}
	p, err := kpool.Connect(ctx, uri, d.poolSize)
	if err != nil {
		return nil, err
	}
	d.pools[uri] = p
	return p, nil
}

// Close closes every pool. The Databases is unusable afterwards.
func (d *Databases) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for uri, p := range d.pools {
		p.Close()
		delete(d.pools, uri)
	}
}
