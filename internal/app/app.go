// Package app wires the scenario runner together: logger, registry with
// built-ins and external bundles, document parser, and plan execution.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/scenargo/internal/builtins"
	"github.com/vk/scenargo/internal/ctxlog"
	"github.com/vk/scenargo/internal/document"
	"github.com/vk/scenargo/internal/extension"
	"github.com/vk/scenargo/internal/registry"
)

// App encapsulates the runner's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	registry *registry.Registry
	parser   *document.Parser
}

// New builds a fully initialized App with its own isolated logger and
// registry. Built-ins register first; the supplied bundles may shadow them
// subject to the strictness policy.
func New(outW io.Writer, cfg *Config, bundles ...extension.Bundle) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New(cfg.Strict)
	if err := builtins.Register(ctx, reg); err != nil {
		return nil, fmt.Errorf("failed to register built-ins: %w", err)
	}
	for _, bundle := range bundles {
		if err := reg.AddBundle(ctx, bundle); err != nil {
			return nil, fmt.Errorf("failed to load bundle %q: %w", bundle.Name, err)
		}
	}
	logger.Debug("Extension registry populated.", "bundles", len(bundles))

	parser := document.New(reg, cfg.AllowExpr)
	if _, err := parser.Model(); err != nil {
		return nil, fmt.Errorf("failed to build document model: %w", err)
	}
	logger.Debug("Document model compiled.")

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		parser:   parser,
	}, nil
}

// Registry returns the application's registry. This is primarily for
// testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Parser returns the application's document parser. This is primarily for
// testing.
func (a *App) Parser() *document.Parser {
	return a.parser
}
