package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"

	kpool "github.com/platefab/platefab/pkg/conn/db/postgres/pool"
	"github.com/platefab/platefab/pkg/conn/db/postgres/scanner"
	"github.com/platefab/platefab/pkg/domain"
	shard "github.com/platefab/platefab/pkg/domain/shard/db/postgres"
	xe "github.com/platefab/platefab/pkg/errors"
)

// Manager opens sessions and raw connections against the cluster.
//
// One Manager per process. It remembers which experiment schemas it
// has already seen, so the lazy first-creation path runs at most once
// per experiment and process.
type Manager struct {
	db        *Databases
	masterURI string

	// workerURI is the connection string template for worker nodes,
	// with "%(host)" and "%(port)" placeholders.
	workerURI string

	logger *log.Logger

	mu      sync.Mutex
	ensured map[int64]bool
}

func NewManager(db *Databases, masterURI string, workerURI string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		db:        db,
		masterURI: masterURI,
		workerURI: workerURI,
		logger:    logger,
		ensured:   map[int64]bool{},
	}
}

// Session is one open transaction. It commits when the scoped function
// returns nil and rolls back when it returns an error; either way the
// underlying connection goes back to the pool.
//
// A Session serves exactly one logical worker; it is not safe for
// concurrent use.
type Session struct {
	tx kpool.Tx

	// schema is "" for main sessions.
	schema string
}

// Tx exposes the session's transaction for queries.
func (s *Session) Tx() kpool.Tx {
	return s.tx
}

func (m *Manager) pool(ctx context.Context) (kpool.Pool, error) {
	return m.db.Pool(ctx, m.masterURI)
}

// EnsureMain makes the global-schema tables exist. Run once at
// process startup, before any session opens.
func (m *Manager) EnsureMain(ctx context.Context) error {
	pool, err := m.pool(ctx)
	if err != nil {
		return err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()
	return EnsureMainTables(ctx, conn)
}

// WithMainSession runs fn in a transaction on the global schema.
func (m *Manager) WithMainSession(ctx context.Context, fn func(context.Context, *Session) error) error {
	pool, err := m.pool(ctx)
	if err != nil {
		return err
	}
	return inTransaction(ctx, pool, "", fn)
}

// WithExperimentSession runs fn in a transaction whose search path is
// the experiment's schema.
//
// On first entry for an experiment the schema is created, every
// experiment-scoped table is instantiated in it, and the distributed
// tables get their shard ranges. Concurrent first-time callers are
// safe: creation is guarded by a schema-exists check and loser writers
// back off to the winner's schema.
func (m *Manager) WithExperimentSession(ctx context.Context, experimentId int64, fn func(context.Context, *Session) error) error {
	if err := m.ensureSchema(ctx, experimentId); err != nil {
		return err
	}
	pool, err := m.pool(ctx)
	if err != nil {
		return err
	}
	return inTransaction(ctx, pool, domain.SchemaName(experimentId), fn)
}

func inTransaction(ctx context.Context, pool kpool.Pool, schema string, fn func(context.Context, *Session) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	if schema != "" {
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`SET LOCAL search_path TO %s, public`, quoteIdent(schema),
		)); err != nil {
			return xe.Wrap(err)
		}
	}

	if err := fn(ctx, &Session{tx: tx, schema: schema}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ensureSchema makes the experiment's schema, tables and shard ranges
// exist.
//
// Table creation completes before shard customization, which completes
// before this returns; only then may a distributed-table write be
// routed to a shard.
func (m *Manager) ensureSchema(ctx context.Context, experimentId int64) error {
	m.mu.Lock()
	done := m.ensured[experimentId]
	m.mu.Unlock()
	if done {
		return nil
	}

	pool, err := m.pool(ctx)
	if err != nil {
		return err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	schema := domain.SchemaName(experimentId)
	found, err := scanner.New[string]().QueryAll(
		ctx, conn,
		`SELECT "nspname" FROM "pg_namespace" WHERE "nspname" = $1`, schema,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if len(found) == 0 {
		if err := m.createSchema(ctx, conn, experimentId); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.ensured[experimentId] = true
	m.mu.Unlock()
	return nil
}

func (m *Manager) createSchema(ctx context.Context, conn kpool.Conn, experimentId int64) error {
	schema := domain.SchemaName(experimentId)

	if _, err := conn.Exec(ctx, fmt.Sprintf(
		`CREATE SCHEMA %s`, quoteIdent(schema),
	)); err != nil {
		pgerr := new(pgconn.PgError)
		if errors.As(err, &pgerr) && pgerr.Code == pgerrcode.DuplicateSchema {
			// a concurrent first-time caller won; it creates the
			// tables and shard ranges
			m.logger.Printf("schema %s: lost the creation race, reusing", schema)
			return nil
		}
		return xe.Wrap(err)
	}
	m.logger.Printf("schema %s: creating tables", schema)

	for _, model := range experimentModels() {
		if err := createExperimentTable(ctx, conn, schema, model); err != nil {
			return err
		}
	}

	pool, err := m.pool(ctx)
	if err != nil {
		return err
	}
	shardConn, err := shard.NewExperimentConnection(ctx, pool, experimentId)
	if err != nil {
		return err
	}
	defer shardConn.Release()
	return shardConn.CustomizeDistributedTables(ctx)
}
