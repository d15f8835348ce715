package store

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and seals a config file.
//
// args:
//   - filepath: path to a YAML config file.
//
// returns *Config, error:
//
//	On success, returns `(*Config, nil)`. Otherwise `(nil, error)`.
func Load(filepath string) (*Config, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (out *Config, err error) {
	var marshalled *ConfigMarshall
	if err := yaml.Unmarshal(conf, &marshalled); err != nil {
		return nil, err
	}
	return TrySeal(marshalled)
}

// Mutable marshalling counterpart of Config.
type ConfigMarshall struct {
	Database      *DatabaseConfigMarshall `yaml:"database"`
	WorkflowRoot  string                  `yaml:"workflowRoot"`
	StepVerbosity int                     `yaml:"stepVerbosity,omitempty"`
	LocalPoolSize int                     `yaml:"localPoolSize,omitempty"`
}

type DatabaseConfigMarshall struct {
	Master   string `yaml:"master"`
	Worker   string `yaml:"worker,omitempty"`
	PoolSize *int   `yaml:"poolSize,omitempty"`
}

const defaultPoolSize = 5

// TrySeal verifies configuration values and creates the readonly version.
func TrySeal(conf *ConfigMarshall) (*Config, error) {
	if conf == nil {
		return nil, MisconfigurationError{Path: "(root)", Reason: "empty config"}
	}
	db, err := conf.Database.trySeal("(root).database")
	if err != nil {
		return nil, err
	}

	workflowRoot := strings.TrimSpace(conf.WorkflowRoot)
	if workflowRoot == "" {
		return nil, MisconfigurationError{
			Path: "(root).workflowRoot", Reason: "is required",
		}
	}

	localPoolSize := conf.LocalPoolSize
	if localPoolSize <= 0 {
		localPoolSize = 1
	}

	return &Config{
		database:      db,
		workflowRoot:  workflowRoot,
		stepVerbosity: conf.StepVerbosity,
		localPoolSize: localPoolSize,
	}, nil
}

func (d *DatabaseConfigMarshall) trySeal(path string) (*DatabaseConfig, error) {
	if d == nil {
		return nil, MisconfigurationError{Path: path, Reason: "is required"}
	}
	if d.Master == "" {
		return nil, MisconfigurationError{Path: path + ".master", Reason: "is required"}
	}

	poolSize := defaultPoolSize
	if d.PoolSize != nil {
		poolSize = *d.PoolSize
	}
	if poolSize < 1 {
		return nil, MisconfigurationError{
			Path: path + ".poolSize", Reason: "must be a positive integer",
		}
	}

	return &DatabaseConfig{
		master:   d.Master,
		worker:   d.Worker,
		poolSize: poolSize,
	}, nil
}

type MisconfigurationError struct {
	Path   string
	Reason string
}

var _ error = MisconfigurationError{}

func (m MisconfigurationError) Error() string {
	return m.Path + " " + m.Reason
}
