package postgres

import (
	"context"
	"fmt"

	kpool "github.com/platefab/platefab/pkg/conn/db/postgres/pool"
	"github.com/platefab/platefab/pkg/domain"
)

// Connection is a raw, autocommit connection to the coordinator.
//
// Every statement commits on its own. Use it for DDL, shard partition
// mutation and shard-targeted bulk writes only; transactional work
// belongs to sessions. A Connection serves exactly one logical worker
// at a time.
type Connection struct {
	conn   kpool.Conn
	schema string

	shardCache map[string]int64
}

// NewMainConnection acquires a raw connection bound to the global
// schema.
func NewMainConnection(ctx context.Context, pool kpool.Pool) (*Connection, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Connection{conn: conn, shardCache: map[string]int64{}}, nil
}

// NewExperimentConnection acquires a raw connection whose search path
// is the experiment's schema.
//
// The schema must exist already; raw connections never create it.
func NewExperimentConnection(ctx context.Context, pool kpool.Pool, experimentId int64) (*Connection, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	schema := domain.SchemaName(experimentId)
	if _, err := conn.Exec(
		ctx, fmt.Sprintf(`SET search_path TO %s, public`, quoteIdent(schema)),
	); err != nil {
		conn.Release()
		return nil, err
	}
	return &Connection{conn: conn, schema: schema, shardCache: map[string]int64{}}, nil
}

// Release gives the underlying connection back to its pool.
//
// The search path is reset first, so whoever the pool hands this
// session to next does not inherit the experiment schema.
func (c *Connection) Release() {
	_, _ = c.conn.Exec(context.Background(), `SET search_path TO DEFAULT`)
	c.conn.Release()
}

// Queryer exposes the raw connection for statement execution.
func (c *Connection) Queryer() kpool.Queryer {
	return c.conn
}

func (c *Connection) sequence(model domain.Model, suffix string) string {
	name := model.Table + "_id_seq" + suffix
	if c.schema == "" {
		return quoteIdent(name)
	}
	return quoteIdent(c.schema) + "." + quoteIdent(name)
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}
