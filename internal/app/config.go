package app

import "fmt"

// Config holds everything an App instance needs to run.
type Config struct {
	// ScenarioPath is the scenario file to execute.
	ScenarioPath string

	// Strict turns extension shadowing and malformed bundles into fatal
	// errors instead of warnings.
	Strict bool

	// AllowExpr enables the restricted expression tag in documents.
	AllowExpr bool

	// PrintSchema prints the document interchange schema and exits
	// instead of running a scenario.
	PrintSchema bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates a configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ScenarioPath == "" && !cfg.PrintSchema {
		return nil, fmt.Errorf("a scenario path is required unless printing the schema")
	}
	return &cfg, nil
}
