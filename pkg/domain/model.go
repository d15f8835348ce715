package domain

import "fmt"

// Scope tells which tenancy tier a model's table lives in.
type Scope string

const (
	// MainScope models live in the global schema, shared by all tenants.
	MainScope Scope = "main"

	// ExperimentScope models have one table copy per experiment schema.
	ExperimentScope Scope = "experiment"
)

// Model describes one database model.
//
// Repositories operate on Model values instead of per-table code:
// the descriptor carries everything the generic paths (get-or-create,
// cascading delete, shard selection) need to know.
type Model struct {
	// Name of the model, for error messages.
	Name string

	// Table is the SQL table name.
	Table string

	Scope Scope

	// Distributed tables are hash/range partitioned across worker nodes.
	//
	// They cannot be written through ordinary transactional sessions
	// targeting a single shard, nor deleted through the generic delete.
	Distributed bool

	// HasLocation models own a directory or file on disk,
	// referenced by their "location" column.
	HasLocation bool

	// TenancyRoot marks the model owning a per-tenant schema.
	// Deleting it requires the dedicated schema-drop path.
	TenancyRoot bool
}

// Tenancy-root and global models.
var (
	ExperimentReference = Model{
		Name:        "ExperimentReference",
		Table:       "experiment_references",
		Scope:       MainScope,
		HasLocation: true,
		TenancyRoot: true,
	}
	Submission = Model{
		Name:  "Submission",
		Table: "submissions",
		Scope: MainScope,
	}
)

// Experiment-scoped models.
var (
	Channel = Model{
		Name:  "Channel",
		Table: "channels",
		Scope: ExperimentScope,
	}
	Site = Model{
		Name:        "Site",
		Table:       "sites",
		Scope:       ExperimentScope,
		HasLocation: true,
	}
	MapObject = Model{
		Name:        "MapObject",
		Table:       "mapobjects",
		Scope:       ExperimentScope,
		Distributed: true,
	}
	MapObjectSegmentation = Model{
		Name:        "MapObjectSegmentation",
		Table:       "mapobject_segmentations",
		Scope:       ExperimentScope,
		Distributed: true,
	}
	FeatureValues = Model{
		Name:        "FeatureValues",
		Table:       "feature_values",
		Scope:       ExperimentScope,
		Distributed: true,
	}
	LabelValues = Model{
		Name:        "LabelValues",
		Table:       "label_values",
		Scope:       ExperimentScope,
		Distributed: true,
	}
)

// DistributedModels lists every model whose table is partitioned across
// worker nodes. Shard-range customization applies to exactly these.
func DistributedModels() []Model {
	return []Model{MapObject, MapObjectSegmentation, FeatureValues, LabelValues}
}

// SchemaName derives the schema of an experiment's private tables.
func SchemaName(experimentId int64) string {
	return fmt.Sprintf("experiment_%d", experimentId)
}
