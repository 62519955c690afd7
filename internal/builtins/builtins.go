// Package builtins ships the extension descriptors every registry starts
// with: placeholder and debugging actions, the comparison and regex
// checkers, and the structured content types. Built-ins register without a
// namespace and enjoy no shadowing protection — a bundle may replace any of
// them in lenient mode.
package builtins

import (
	"context"

	"github.com/vk/scenargo/internal/registry"
)

// Register installs all built-in descriptors into the registry.
func Register(ctx context.Context, reg *registry.Registry) error {
	for _, actor := range actors() {
		if err := reg.AddActor(ctx, actor, ""); err != nil {
			return err
		}
	}
	for _, checker := range checkers() {
		if err := reg.AddChecker(ctx, checker, ""); err != nil {
			return err
		}
	}
	for _, ct := range contentTypes() {
		if err := reg.AddContentType(ctx, ct, ""); err != nil {
			return err
		}
	}
	return nil
}
