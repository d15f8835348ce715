package postgres

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/platefab/platefab/pkg/conn/db/postgres/scanner"
	"github.com/platefab/platefab/pkg/domain"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
	xe "github.com/platefab/platefab/pkg/errors"
)

// GetShardId picks the shard this connection writes the model into.
//
// The first call selects one shard uniformly at random; repeated calls
// for the same model stay pinned to that shard, so one logical writer
// fills one contiguous key range.
func (c *Connection) GetShardId(ctx context.Context, model domain.Model) (int64, error) {
	if !model.Distributed {
		return 0, kerr.InvalidArgument{
			Name: "model", Reason: fmt.Sprintf("%s is not distributed", model.Name),
		}
	}
	if id, ok := c.shardCache[model.Table]; ok {
		return id, nil
	}

	shardIds, err := scanner.New[int64]().QueryAll(
		ctx, c.conn,
		`SELECT "shardid" FROM "pg_dist_shard" WHERE "logicalrelid" = $1::regclass ORDER BY "shardid"`,
		c.relationName(model),
	)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	if len(shardIds) == 0 {
		return 0, kerr.NotFound{
			Path: c.relationName(model),
			Hint: "the table has no shards. was the schema customized?",
		}
	}

	id := shardIds[rand.Intn(len(shardIds))]
	c.shardCache[model.Table] = id
	return id, nil
}

// GetUniqueId draws the next value of the model's table-wide sequence.
func (c *Connection) GetUniqueId(ctx context.Context, model domain.Model) (int64, error) {
	return c.nextval(ctx, c.conn, c.sequence(model, ""))
}

// GetShardSpecificUniqueId draws the next value of the model's
// shard-scoped sequence. Ids from different shards never collide, so
// concurrent writers pinned to distinct shards insert without locking.
func (c *Connection) GetShardSpecificUniqueId(ctx context.Context, model domain.Model, shardId int64) (int64, error) {
	return c.nextval(ctx, c.conn, c.sequence(model, fmt.Sprintf("_%d", shardId)))
}

func (c *Connection) nextval(ctx context.Context, q scanner.Queryer, seq string) (int64, error) {
	ids, err := scanner.New[int64]().QueryAll(
		ctx, q, `SELECT nextval($1::regclass)`, seq,
	)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	if len(ids) != 1 {
		return 0, xe.Errorf("nextval of %s returned %d rows", seq, len(ids))
	}
	return ids[0], nil
}

// relationName is the qualified table name in unquoted regclass form.
func (c *Connection) relationName(model domain.Model) string {
	if c.schema == "" {
		return model.Table
	}
	return c.schema + "." + model.Table
}
