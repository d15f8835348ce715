package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"

	kpool "github.com/platefab/platefab/pkg/conn/db/postgres/pool"
	"github.com/platefab/platefab/pkg/conn/db/postgres/scanner"
	"github.com/platefab/platefab/pkg/domain"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
	dberr "github.com/platefab/platefab/pkg/domain/errors/dberrors/postgres"
	xe "github.com/platefab/platefab/pkg/errors"
	"github.com/platefab/platefab/pkg/utils"
)

// Outcome tells how GetOrCreate satisfied the request.
type Outcome string

const (
	// Found: the row existed before the call.
	Found Outcome = "found"

	// Created: this call inserted the row.
	Created Outcome = "created"

	// Recovered: the insert lost a uniqueness race and the re-read
	// found the concurrent writer's row.
	Recovered Outcome = "recovered"
)

// Attrs identify a unique row by column values.
type Attrs map[string]any

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// GetOrCreate looks a unique row up by attrs, inserting it when absent.
//
// The insert commits immediately, so the row is visible to concurrent
// writers as soon as this returns. When the insert loses a uniqueness
// race, exactly one re-read recovers the winner's row; if even that
// finds nothing, the caller gets a Conflict error, not a retry loop.
//
// experimentId is ignored for main-scope models.
func (m *Manager) GetOrCreate(ctx context.Context, model domain.Model, experimentId int64, attrs Attrs) (int64, Outcome, error) {
	if model.Distributed {
		return 0, "", kerr.InvalidArgument{
			Name:   "model",
			Reason: fmt.Sprintf("%s is distributed; write it through a raw connection", model.Name),
		}
	}
	if len(attrs) == 0 {
		return 0, "", kerr.InvalidArgument{Name: "attrs", Reason: "empty"}
	}
	keys := utils.SortedKeysOf(attrs)
	for _, k := range keys {
		if !identifierPattern.MatchString(k) {
			return 0, "", kerr.InvalidArgument{
				Name: "attrs", Reason: fmt.Sprintf("%q is not a column name", k),
			}
		}
	}

	rel := quoteIdent(model.Table)
	if model.Scope == domain.ExperimentScope {
		if err := m.ensureSchema(ctx, experimentId); err != nil {
			return 0, "", err
		}
		rel = quoteIdent(domain.SchemaName(experimentId)) + "." + rel
	}

	pool, err := m.pool(ctx)
	if err != nil {
		return 0, "", err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, "", xe.Wrap(err)
	}
	defer conn.Release()

	values := utils.Map(keys, func(k string) any { return attrs[k] })

	if id, ok, err := selectByAttrs(ctx, conn, rel, keys, values); err != nil {
		return 0, "", err
	} else if ok {
		return id, Found, nil
	}

	id, err := insert(ctx, conn, rel, keys, values)
	if err == nil {
		return id, Created, nil
	}
	pgerr := new(pgconn.PgError)
	if !errors.As(err, &pgerr) || pgerr.Code != pgerrcode.UniqueViolation {
		return 0, "", xe.Wrap(err)
	}

	// a concurrent writer won the race; its committed row must be there
	if id, ok, err := selectByAttrs(ctx, conn, rel, keys, values); err != nil {
		return 0, "", err
	} else if ok {
		return id, Recovered, nil
	}
	return 0, "", dberr.Conflict{Table: model.Table, Identity: identity(keys, values)}
}

// Get looks a unique row up by attrs without creating it.
func (m *Manager) Get(ctx context.Context, model domain.Model, experimentId int64, attrs Attrs) (int64, error) {
	keys := utils.SortedKeysOf(attrs)
	for _, k := range keys {
		if !identifierPattern.MatchString(k) {
			return 0, kerr.InvalidArgument{
				Name: "attrs", Reason: fmt.Sprintf("%q is not a column name", k),
			}
		}
	}
	rel := quoteIdent(model.Table)
	if model.Scope == domain.ExperimentScope {
		if err := m.ensureSchema(ctx, experimentId); err != nil {
			return 0, err
		}
		rel = quoteIdent(domain.SchemaName(experimentId)) + "." + rel
	}

	pool, err := m.pool(ctx)
	if err != nil {
		return 0, err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	defer conn.Release()

	values := utils.Map(keys, func(k string) any { return attrs[k] })
	id, ok, err := selectByAttrs(ctx, conn, rel, keys, values)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, dberr.Missing{Table: model.Table, Identity: identity(keys, values)}
	}
	return id, nil
}

func selectByAttrs(ctx context.Context, q kpool.Queryer, rel string, keys []string, values []any) (int64, bool, error) {
	ids, err := scanner.New[int64]().QueryAll(
		ctx, q,
		fmt.Sprintf(`SELECT "id" FROM %s WHERE %s`, rel, whereClause(keys)),
		values...,
	)
	if err != nil {
		return 0, false, xe.Wrap(err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func insert(ctx context.Context, conn kpool.Conn, rel string, keys []string, values []any) (int64, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	placeholders := make([]string, len(keys))
	for nth := range keys {
		placeholders[nth] = fmt.Sprintf("$%d", nth+1)
	}
	ids, err := scanner.New[int64]().QueryAll(
		ctx, tx,
		fmt.Sprintf(
			`INSERT INTO %s (%s) VALUES (%s) RETURNING "id"`,
			rel, columnList(keys), strings.Join(placeholders, ", "),
		),
		values...,
	)
	if err != nil {
		return 0, err
	}
	if len(ids) != 1 {
		return 0, xe.Errorf("insert into %s returned %d rows", rel, len(ids))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return ids[0], nil
}

func whereClause(keys []string) string {
	conds := make([]string, len(keys))
	for nth, k := range keys {
		conds[nth] = fmt.Sprintf(`"%s" = $%d`, k, nth+1)
	}
	return strings.Join(conds, " AND ")
}

func columnList(keys []string) string {
	return strings.Join(
		utils.Map(keys, func(k string) string { return quoteIdent(k) }), ", ",
	)
}

func identity(keys []string, values []any) string {
	parts := make([]string, len(keys))
	for nth, k := range keys {
		parts[nth] = fmt.Sprintf("%s=%v", k, values[nth])
	}
	return strings.Join(parts, ", ")
}
