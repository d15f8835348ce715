package store

// Configuration for platform storage and workflow layout.
//
// To get a `Config` instance, use `TrySeal` on a `ConfigMarshall`.
type Config struct {
	database      *DatabaseConfig
	workflowRoot  string
	stepVerbosity int
	localPoolSize int
}

// Database access configuration.
func (c *Config) Database() *DatabaseConfig {
	return c.database
}

// Root directory under which all workflow data of all experiments live.
//
// Paths inside batch files are stored relative to this directory.
func (c *Config) WorkflowRoot() string {
	return c.workflowRoot
}

// Verbosity level propagated into job command lines as repeated "-v".
func (c *Config) StepVerbosity() int {
	return c.stepVerbosity
}

// Number of run batches executed concurrently by the local executor.
func (c *Config) LocalPoolSize() int {
	return c.localPoolSize
}

type DatabaseConfig struct {
	master   string
	worker   string
	poolSize int
}

// Connection string for the coordinator ("main") database.
func (d *DatabaseConfig) Master() string {
	return d.master
}

// Connection string template for worker nodes.
//
// "%(host)" and "%(port)" are replaced with a shard placement's
// node name and port.
func (d *DatabaseConfig) Worker() string {
	return d.worker
}

// Connection pool size per process.
//
// Cluster worker processes set this to 1 to keep the number of
// simultaneous connections to the backing store minimal.
func (d *DatabaseConfig) PoolSize() int {
	return d.poolSize
}
