package postgres

import (
	"context"
	"fmt"
	"os"

	kpool "github.com/platefab/platefab/pkg/conn/db/postgres/pool"
	"github.com/platefab/platefab/pkg/conn/db/postgres/scanner"
	"github.com/platefab/platefab/pkg/domain"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
	dberr "github.com/platefab/platefab/pkg/domain/errors/dberrors/postgres"
	shard "github.com/platefab/platefab/pkg/domain/shard/db/postgres"
	xe "github.com/platefab/platefab/pkg/errors"
	"github.com/platefab/platefab/pkg/utils"
)

// DeleteAll removes every row of model matching attrs (all rows when
// attrs is empty), and the on-disk location of each removed row.
//
// Locations are collected in the same transaction as the row delete
// and removed from disk only after that transaction commits: a failed
// row delete leaves every location intact, and a committed one cannot
// lose the location references.
//
// The tenancy root is refused here; dropping an experiment goes
// through DeleteExperiment. Distributed tables are refused too, since
// a transactional delete cannot target their shards deterministically.
func (m *Manager) DeleteAll(ctx context.Context, model domain.Model, experimentId int64, attrs Attrs) error {
	if model.TenancyRoot {
		return dberr.RequiresSchemaDrop{Model: model.Name}
	}
	if model.Distributed {
		return dberr.NotDeletable{
			Model:  model.Name,
			Reason: "distributed tables are deleted with their schema",
		}
	}

	rel := quoteIdent(model.Table)
	if model.Scope == domain.ExperimentScope {
		if err := m.ensureSchema(ctx, experimentId); err != nil {
			return err
		}
		rel = quoteIdent(domain.SchemaName(experimentId)) + "." + rel
	}

	keys := utils.SortedKeysOf(attrs)
	values := utils.Map(keys, func(k string) any { return attrs[k] })
	where := ""
	if len(keys) != 0 {
		where = " WHERE " + whereClause(keys)
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

	tx, err := conn.Begin(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	locations := []string{}
	if model.HasLocation {
		locations, err = scanner.New[string]().QueryAll(
			ctx, tx, fmt.Sprintf(`SELECT "location" FROM %s%s`, rel, where), values...,
		)
		if err != nil {
			return xe.Wrap(err)
		}
	}
	if _, err := tx.Exec(
		ctx, fmt.Sprintf(`DELETE FROM %s%s`, rel, where), values...,
	); err != nil {
		return xe.Wrap(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return xe.Wrap(err)
	}

	m.removeLocations(locations)
	return nil
}

// DeleteExperiment removes the experiment reference row, drops the
// experiment's schema with everything in it, and reclaims the
// experiment's on-disk location.
//
// This is the only path removing a tenant schema, and it drops the
// schema exactly once, after the row delete committed.
func (m *Manager) DeleteExperiment(ctx context.Context, experimentId int64) error {
	pool, err := m.pool(ctx)
	if err != nil {
		return err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	location, err := deleteExperimentRow(ctx, conn, experimentId)
	if err != nil {
		return err
	}

	// schema drop is DDL and runs on the raw autocommit connection
	if _, err := conn.Exec(ctx, fmt.Sprintf(
		`DROP SCHEMA IF EXISTS %s CASCADE`, quoteIdent(domain.SchemaName(experimentId)),
	)); err != nil {
		return xe.Wrap(err)
	}

	m.mu.Lock()
	delete(m.ensured, experimentId)
	m.mu.Unlock()

	if location != "" {
		m.removeLocations([]string{location})
	}
	return nil
}

func deleteExperimentRow(ctx context.Context, conn kpool.Conn, experimentId int64) (string, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return "", xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	locations, err := scanner.New[string]().QueryAll(
		ctx, tx,
		`SELECT "location" FROM "experiment_references" WHERE "id" = $1`, experimentId,
	)
	if err != nil {
		return "", xe.Wrap(err)
	}
	if len(locations) == 0 {
		return "", dberr.Missing{
			Table:    domain.ExperimentReference.Table,
			Identity: fmt.Sprintf("id=%d", experimentId),
		}
	}

	if _, err := tx.Exec(
		ctx, `DELETE FROM "submissions" WHERE "experiment_id" = $1`, experimentId,
	); err != nil {
		return "", xe.Wrap(err)
	}
	if _, err := tx.Exec(
		ctx, `DELETE FROM "experiment_references" WHERE "id" = $1`, experimentId,
	); err != nil {
		return "", xe.Wrap(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", xe.Wrap(err)
	}
	return locations[0], nil
}

// DropAndRecreate throws one experiment-scoped table away and
// instantiates it afresh, removing the on-disk locations of the
// dropped rows. Used by steps wiping their previous generation of
// derived data before a re-run.
func (m *Manager) DropAndRecreate(ctx context.Context, model domain.Model, experimentId int64) error {
	if model.Scope != domain.ExperimentScope {
		return kerr.InvalidArgument{
			Name: "model", Reason: fmt.Sprintf("%s is not experiment-scoped", model.Name),
		}
	}
	if err := m.ensureSchema(ctx, experimentId); err != nil {
		return err
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
	rel := quoteIdent(schema) + "." + quoteIdent(model.Table)

	locations := []string{}
	if model.HasLocation {
		locations, err = scanner.New[string]().QueryAll(
			ctx, conn, fmt.Sprintf(`SELECT "location" FROM %s`, rel),
		)
		if err != nil {
			return xe.Wrap(err)
		}
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf(
		`DROP TABLE IF EXISTS %s CASCADE`, rel,
	)); err != nil {
		return xe.Wrap(err)
	}
	if err := dropSequencesOf(ctx, conn, schema, model); err != nil {
		return err
	}

	if err := createExperimentTable(ctx, conn, schema, model); err != nil {
		return err
	}
	if model.Distributed {
		shardConn, err := shard.NewExperimentConnection(ctx, pool, experimentId)
		if err != nil {
			return err
		}
		defer shardConn.Release()
		if err := shardConn.CustomizeDistributedTable(ctx, model); err != nil {
			return err
		}
	}

	m.removeLocations(locations)
	return nil
}

// dropSequencesOf removes the table-wide and shard-scoped sequences of
// a distributed model; they do not go away with the table.
func dropSequencesOf(ctx context.Context, conn kpool.Conn, schema string, model domain.Model) error {
	if !model.Distributed {
		return nil
	}
	seqs, err := scanner.New[string]().QueryAll(
		ctx, conn,
		`SELECT "sequencename" FROM "pg_sequences"
		  WHERE "schemaname" = $1 AND "sequencename" LIKE $2`,
		schema, model.Table+"_id_seq%",
	)
	if err != nil {
		return xe.Wrap(err)
	}
	for _, seq := range seqs {
		if _, err := conn.Exec(ctx, fmt.Sprintf(
			`DROP SEQUENCE IF EXISTS %s.%s`, quoteIdent(schema), quoteIdent(seq),
		)); err != nil {
			return xe.Wrap(err)
		}
	}
	return nil
}

func (m *Manager) removeLocations(locations []string) {
	for _, loc := range utils.Filter(locations, func(l string) bool { return l != "" }) {
		if err := os.RemoveAll(loc); err != nil {
			m.logger.Printf("can not remove %s: %s", loc, err)
		}
	}
}
