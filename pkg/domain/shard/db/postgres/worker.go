package postgres

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	kpool "github.com/platefab/platefab/pkg/conn/db/postgres/pool"
	"github.com/platefab/platefab/pkg/conn/db/postgres/scanner"
	"github.com/platefab/platefab/pkg/domain"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
	xe "github.com/platefab/platefab/pkg/errors"
)

type nodeAddress struct {
	Name string `sql:"nodename"`
	Port int    `sql:"nodeport"`
}

// WorkerURI builds a worker connection string from its template.
//
// "%(host)" and "%(port)" in the template are replaced with the
// node's address.
func WorkerURI(template string, host string, port int) string {
	uri := strings.ReplaceAll(template, "%(host)", host)
	return strings.ReplaceAll(uri, "%(port)", strconv.Itoa(port))
}

// WorkerConnection is a raw autocommit connection to one worker node,
// for bulk writes landing directly on that node's shards.
//
// Shard metadata and sequences live on the coordinator, so the
// WorkerConnection keeps the coordinator connection it was built from
// and restricts shard selection to shards placed on its node.
type WorkerConnection struct {
	coordinator *Connection

	pool kpool.Pool
	conn kpool.Conn
	node nodeAddress

	shardCache map[string]int64
}

// NewWorkerConnection connects to one active primary worker node,
// chosen uniformly at random, bound to the coordinator connection's
// experiment schema.
func NewWorkerConnection(ctx context.Context, coordinator *Connection, uriTemplate string) (*WorkerConnection, error) {
	if coordinator.schema == "" {
		return nil, kerr.InvalidArgument{
			Name: "coordinator", Reason: "worker connections need an experiment connection",
		}
	}

	nodes, err := scanner.New[nodeAddress]().QueryAll(
		ctx, coordinator.conn,
		`SELECT "nodename", "nodeport" FROM "pg_dist_node" WHERE "isactive" AND "noderole" = 'primary'`,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if len(nodes) == 0 {
		return nil, kerr.NotFound{
			Path: "pg_dist_node", Hint: "the cluster has no active worker node",
		}
	}
	node := nodes[rand.Intn(len(nodes))]

	// worker processes keep a single connection to the node
	pool, err := kpool.Connect(ctx, WorkerURI(uriTemplate, node.Name, node.Port), 1)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, xe.Wrap(err)
	}
	if _, err := conn.Exec(
		ctx, fmt.Sprintf(`SET search_path TO %s, public`, quoteIdent(coordinator.schema)),
	); err != nil {
		conn.Release()
		pool.Close()
		return nil, xe.Wrap(err)
	}

	return &WorkerConnection{
		coordinator: coordinator,
		pool:        pool,
		conn:        conn,
		node:        node,
		shardCache:  map[string]int64{},
	}, nil
}

// Release closes the worker connection. The coordinator connection it
// was built from stays open and is the caller's to release.
func (w *WorkerConnection) Release() {
	w.conn.Release()
	w.pool.Close()
}

// Queryer exposes the worker-side connection for bulk writes.
func (w *WorkerConnection) Queryer() kpool.Queryer {
	return w.conn
}

// GetShardId picks a shard among those physically placed on this
// worker, pinned per model like Connection.GetShardId.
func (w *WorkerConnection) GetShardId(ctx context.Context, model domain.Model) (int64, error) {
	if !model.Distributed {
		return 0, kerr.InvalidArgument{
			Name: "model", Reason: fmt.Sprintf("%s is not distributed", model.Name),
		}
	}
	if id, ok := w.shardCache[model.Table]; ok {
		return id, nil
	}

	shardIds, err := scanner.New[int64]().QueryAll(
		ctx, w.coordinator.conn,
		`SELECT "s"."shardid"
		   FROM "pg_dist_shard" AS "s"
		        INNER JOIN "pg_dist_shard_placement" AS "p" ON "s"."shardid" = "p"."shardid"
		  WHERE "s"."logicalrelid" = $1::regclass
		    AND "p"."nodename" = $2 AND "p"."nodeport" = $3
		  ORDER BY "s"."shardid"`,
		w.coordinator.relationName(model), w.node.Name, w.node.Port,
	)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	if len(shardIds) == 0 {
		return 0, kerr.NotFound{
			Path: w.coordinator.relationName(model),
			Hint: fmt.Sprintf("no shard is placed on %s:%d", w.node.Name, w.node.Port),
		}
	}

	id := shardIds[rand.Intn(len(shardIds))]
	w.shardCache[model.Table] = id
	return id, nil
}

// GetShardSpecificUniqueId draws from the shard-scoped sequence on the
// coordinator.
func (w *WorkerConnection) GetShardSpecificUniqueId(ctx context.Context, model domain.Model, shardId int64) (int64, error) {
	return w.coordinator.GetShardSpecificUniqueId(ctx, model, shardId)
}
