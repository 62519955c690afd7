package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/scenargo/internal/ctxlog"
	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/jsonschema"
	"github.com/vk/scenargo/internal/plan"
)

// Run executes the configured action: schema export, or parsing and
// running every plan of the scenario file. The first failing plan aborts
// the run and its error is returned as-is, so callers can distinguish
// failed expectations from execution errors.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.PrintSchema {
		return a.printSchema()
	}

	plans, err := plan.Load(a.parser, a.config.ScenarioPath)
	if err != nil {
		return err
	}
	a.logger.Info("Scenario loaded.", "file", a.config.ScenarioPath, "plans", len(plans))

	for i, p := range plans {
		a.logger.Info("Running plan.", "plan", i+1, "of", len(plans), "title", p.Title(), "params", p.Params)
		if _, err := p.Run(ctx); err != nil {
			var failed *dslerr.CheckFailed
			if errors.As(err, &failed) {
				a.logger.Error("Expectation failed.", "plan", i+1, "title", p.Title())
			} else {
				a.logger.Error("Plan execution failed.", "plan", i+1, "title", p.Title())
			}
			return err
		}
	}
	a.logger.Info("All plans passed.", "count", len(plans))
	return nil
}

func (a *App) printSchema() error {
	m, err := a.parser.Model()
	if err != nil {
		return err
	}
	data, err := jsonschema.Generate(m)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}
	fmt.Fprintln(a.outW, string(data))
	return nil
}
