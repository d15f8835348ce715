package postgres

import (
	"context"
	"fmt"

	"github.com/platefab/platefab/pkg/conn/db/postgres/scanner"
	"github.com/platefab/platefab/pkg/domain"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
	xe "github.com/platefab/platefab/pkg/errors"
)

// CustomizeDistributedTables converts every distributed table of the
// connection's experiment schema from hash- to range-partitioning and
// gives each physical shard its own id sequence.
//
// Runs exactly once per experiment schema, right after table creation
// and before any write is routed to a shard. The caller guards the
// once-ness with its schema-exists check.
func (c *Connection) CustomizeDistributedTables(ctx context.Context) error {
	if c.schema == "" {
		return kerr.InvalidArgument{
			Name: "connection", Reason: "shard customization needs an experiment connection",
		}
	}
	for _, model := range domain.DistributedModels() {
		if err := c.customize(ctx, model); err != nil {
			return xe.WrapWithNote(
				fmt.Sprintf("customizing shards of %s", c.relationName(model)), err,
			)
		}
	}
	return nil
}

// CustomizeDistributedTable converts a single freshly re-created
// distributed table, like CustomizeDistributedTables does for all of
// them at schema creation.
func (c *Connection) CustomizeDistributedTable(ctx context.Context, model domain.Model) error {
	if c.schema == "" {
		return kerr.InvalidArgument{
			Name: "connection", Reason: "shard customization needs an experiment connection",
		}
	}
	if !model.Distributed {
		return kerr.InvalidArgument{
			Name: "model", Reason: fmt.Sprintf("%s is not distributed", model.Name),
		}
	}
	return c.customize(ctx, model)
}

func (c *Connection) customize(ctx context.Context, model domain.Model) error {
	rel := c.relationName(model)

	if _, err := c.conn.Exec(
		ctx,
		`UPDATE "pg_dist_partition" SET "partmethod" = 'r' WHERE "logicalrelid" = $1::regclass`,
		rel,
	); err != nil {
		return err
	}

	shardIds, err := scanner.New[int64]().QueryAll(
		ctx, c.conn,
		`SELECT "shardid" FROM "pg_dist_shard" WHERE "logicalrelid" = $1::regclass ORDER BY "shardid"`,
		rel,
	)
	if err != nil {
		return err
	}
	if len(shardIds) == 0 {
		return kerr.NotFound{
			Path: rel, Hint: "the table has no shards. was it distributed?",
		}
	}

	ranges, err := Ranges(len(shardIds))
	if err != nil {
		return err
	}
	for nth, shardId := range shardIds {
		r := ranges[nth]

		// shardminvalue/shardmaxvalue are text columns
		if _, err := c.conn.Exec(
			ctx,
			`UPDATE "pg_dist_shard" SET "shardminvalue" = $1, "shardmaxvalue" = $2 WHERE "shardid" = $3`,
			fmt.Sprintf("%d", r.Min), fmt.Sprintf("%d", r.Max), shardId,
		); err != nil {
			return err
		}

		// the sequence yields ids inside the shard's range only
		if _, err := c.conn.Exec(ctx, fmt.Sprintf(
			`CREATE SEQUENCE %s MINVALUE %d MAXVALUE %d START WITH %d`,
			c.sequence(model, fmt.Sprintf("_%d", shardId)), r.Min, r.Max, r.Min,
		)); err != nil {
			return err
		}
	}
	return nil
}
