package postgres

import (
	"context"
	"fmt"

	kpool "github.com/platefab/platefab/pkg/conn/db/postgres/pool"
	"github.com/platefab/platefab/pkg/domain"
	xe "github.com/platefab/platefab/pkg/errors"
)

// Global-schema tables. Created idempotently at startup.
var mainTableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS "experiment_references" (
		"id" bigserial PRIMARY KEY,
		"name" text NOT NULL UNIQUE,
		"location" text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS "submissions" (
		"id" bigserial PRIMARY KEY,
		"experiment_id" bigint NOT NULL REFERENCES "experiment_references" ("id"),
		"program" text NOT NULL,
		"submitted_at" timestamp with time zone NOT NULL DEFAULT now()
	)`,
}

// Experiment-schema tables, one copy per experiment. %[1]s is the
// quoted schema name.
//
// Distributed tables get no serial id; their ids come from the table-
// wide or shard-scoped sequences, and their primary key carries the
// distribution column.
var experimentTableDefinitions = map[string]string{
	domain.Channel.Table: `CREATE TABLE %[1]s."channels" (
		"id" bigserial PRIMARY KEY,
		"name" text NOT NULL UNIQUE,
		"wavelength" text
	)`,
	domain.Site.Table: `CREATE TABLE %[1]s."sites" (
		"id" bigserial PRIMARY KEY,
		"well" text NOT NULL,
		"y" integer NOT NULL,
		"x" integer NOT NULL,
		"location" text NOT NULL,
		UNIQUE ("well", "y", "x")
	)`,
	domain.MapObject.Table: `CREATE TABLE %[1]s."mapobjects" (
		"id" bigint NOT NULL,
		"partition_key" bigint NOT NULL,
		"ref_type" text,
		PRIMARY KEY ("partition_key", "id")
	)`,
	domain.MapObjectSegmentation.Table: `CREATE TABLE %[1]s."mapobject_segmentations" (
		"id" bigint NOT NULL,
		"partition_key" bigint NOT NULL,
		"mapobject_id" bigint NOT NULL,
		"geom_polygon" bytea,
		"geom_centroid" bytea,
		"tpoint" integer,
		"zplane" integer,
		PRIMARY KEY ("partition_key", "id")
	)`,
	domain.FeatureValues.Table: `CREATE TABLE %[1]s."feature_values" (
		"id" bigint NOT NULL,
		"partition_key" bigint NOT NULL,
		"mapobject_id" bigint NOT NULL,
		"tpoint" integer,
		"values" jsonb NOT NULL,
		PRIMARY KEY ("partition_key", "id")
	)`,
	domain.LabelValues.Table: `CREATE TABLE %[1]s."label_values" (
		"id" bigint NOT NULL,
		"partition_key" bigint NOT NULL,
		"mapobject_id" bigint NOT NULL,
		"tpoint" integer,
		"values" jsonb NOT NULL,
		PRIMARY KEY ("partition_key", "id")
	)`,
}

// EnsureMainTables creates the global-schema tables if they are not
// there yet.
func EnsureMainTables(ctx context.Context, q kpool.Queryer) error {
	for _, ddl := range mainTableDefinitions {
		if _, err := q.Exec(ctx, ddl); err != nil {
			return xe.Wrap(err)
		}
	}
	return nil
}

// createExperimentTable instantiates one experiment-scoped table in
// the schema, distributing it when the model calls for it.
//
// Distribution starts as hash partitioning; shard customization
// converts it to ranges right after all tables exist.
func createExperimentTable(ctx context.Context, q kpool.Queryer, schema string, model domain.Model) error {
	ddl, ok := experimentTableDefinitions[model.Table]
	if !ok {
		return xe.Errorf("no table definition for model %s", model.Name)
	}
	quoted := quoteIdent(schema)
	if _, err := q.Exec(ctx, fmt.Sprintf(ddl, quoted)); err != nil {
		return xe.Wrap(err)
	}
	if !model.Distributed {
		return nil
	}

	if _, err := q.Exec(ctx, fmt.Sprintf(
		`CREATE SEQUENCE %s."%s_id_seq"`, quoted, model.Table,
	)); err != nil {
		return xe.Wrap(err)
	}
	if _, err := q.Exec(
		ctx,
		`SELECT create_distributed_table($1, 'partition_key', 'hash')`,
		schema+"."+model.Table,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

// experimentModels lists every experiment-scoped model, regular tables
// first so distributed ones can reference them.
func experimentModels() []domain.Model {
	return []domain.Model{
		domain.Channel, domain.Site,
		domain.MapObject, domain.MapObjectSegmentation,
		domain.FeatureValues, domain.LabelValues,
	}
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}
