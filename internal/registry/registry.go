// Package registry is the central glue of the extension system. It holds
// the name-to-variant tables for actions, checks, content encoders, content
// decoders, and document instructions, and applies the shadowing policy:
// re-registering an existing name is fatal in strict mode and a non-fatal
// warning (last writer wins) otherwise. Built-ins get no special
// protection.
package registry

import (
	"context"

	"github.com/vk/scenargo/internal/ctxlog"
	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/extension"
)

// Registry holds all registered extension variants for one application
// instance. It is mutable during startup and treated as immutable once the
// model has been built.
type Registry struct {
	strict bool

	actions      map[string]*extension.StepType
	checks       map[string]*extension.CheckType
	encoders     map[string]*extension.ContentOp
	decoders     map[string][]*extension.ContentOp
	instructions map[string]*extension.TagType

	// Insertion order per table; a shadowing registration keeps the
	// original position so that model builds stay deterministic.
	actionOrder      []string
	checkOrder       []string
	encoderOrder     []string
	decoderOrder     []string
	instructionOrder []string
}

// New creates an empty registry. In strict mode every shadowing or
// malformed-bundle event aborts loading instead of logging a warning.
func New(strict bool) *Registry {
	return &Registry{
		strict:       strict,
		actions:      make(map[string]*extension.StepType),
		checks:       make(map[string]*extension.CheckType),
		encoders:     make(map[string]*extension.ContentOp),
		decoders:     make(map[string][]*extension.ContentOp),
		instructions: make(map[string]*extension.TagType),
	}
}

// Strict reports whether the registry operates in strict mode.
func (r *Registry) Strict() bool { return r.strict }

// shadow applies the conflict policy for an existing name. It returns the
// error to raise (strict) or nil after logging a warning (lenient).
func (r *Registry) shadow(ctx context.Context, kind, name, bundle string) error {
	conflict := &dslerr.ConflictError{Kind: kind, Name: name, Bundle: bundle}
	if r.strict {
		return conflict
	}
	ctxlog.FromContext(ctx).Warn("Extension shadowing detected, newer registration wins.",
		"kind", kind, "name", name, "bundle", bundle)
	return nil
}

// AddActor compiles and registers an action. Bundle actors pass their
// bundle name as namespace; built-ins pass "".
func (r *Registry) AddActor(ctx context.Context, actor extension.Actor, namespace string) error {
	step, err := actor.Compile(namespace)
	if err != nil {
		return &dslerr.BuildError{Msg: "invalid actor definition", Err: err}
	}
	if _, exists := r.actions[step.Action]; exists {
		if err := r.shadow(ctx, "actor", step.Action, namespace); err != nil {
			return err
		}
	} else {
		r.actionOrder = append(r.actionOrder, step.Action)
	}
	ctxlog.FromContext(ctx).Debug("Registering actor.", "action", step.Action)
	r.actions[step.Action] = step
	return nil
}

// AddChecker compiles and registers a check.
func (r *Registry) AddChecker(ctx context.Context, checker extension.Checker, bundle string) error {
	check, err := checker.Compile()
	if err != nil {
		return &dslerr.BuildError{Msg: "invalid checker definition", Err: err}
	}
	if _, exists := r.checks[check.Name]; exists {
		if err := r.shadow(ctx, "checker", check.Name, bundle); err != nil {
			return err
		}
	} else {
		r.checkOrder = append(r.checkOrder, check.Name)
	}
	ctxlog.FromContext(ctx).Debug("Registering checker.", "name", check.Name)
	r.checks[check.Name] = check
	return nil
}

// AddContentType compiles and registers a content type's encoder and
// decoder (either may be absent).
func (r *Registry) AddContentType(ctx context.Context, ct extension.ContentType, bundle string) error {
	encoder, err := ct.CompileEncoder()
	if err != nil {
		return &dslerr.BuildError{Msg: "invalid content encoder definition", Err: err}
	}
	if encoder != nil {
		if _, exists := r.encoders[encoder.Format]; exists {
			if err := r.shadow(ctx, "encoder", encoder.Format, bundle); err != nil {
				return err
			}
		} else {
			r.encoderOrder = append(r.encoderOrder, encoder.Format)
		}
		ctxlog.FromContext(ctx).Debug("Registering content encoder.", "format", encoder.Format)
		r.encoders[encoder.Format] = encoder
	}

	decoder, err := ct.CompileDecoder()
	if err != nil {
		return &dslerr.BuildError{Msg: "invalid content decoder definition", Err: err}
	}
	if decoder != nil {
		if _, exists := r.decoders[ct.Name]; exists {
			if err := r.shadow(ctx, "decoder", ct.Name, bundle); err != nil {
				return err
			}
		} else {
			r.decoderOrder = append(r.decoderOrder, ct.Name)
		}
		ctxlog.FromContext(ctx).Debug("Registering content decoder.", "format", ct.Name, "variants", len(decoder))
		r.decoders[ct.Name] = decoder
	}
	return nil
}

// AddInstruction compiles and registers a document tag.
func (r *Registry) AddInstruction(ctx context.Context, instr extension.Instruction, bundle string) error {
	tag, err := instr.Compile()
	if err != nil {
		return &dslerr.BuildError{Msg: "invalid instruction definition", Err: err}
	}
	if _, exists := r.instructions[tag.Name]; exists {
		if err := r.shadow(ctx, "instruction", tag.Name, bundle); err != nil {
			return err
		}
	} else {
		r.instructionOrder = append(r.instructionOrder, tag.Name)
	}
	ctxlog.FromContext(ctx).Debug("Registering instruction.", "tag", tag.Name)
	r.instructions[tag.Name] = tag
	return nil
}

// AddBundle registers every descriptor of an extension bundle. A malformed
// bundle is skipped with a warning in lenient mode and aborts loading in
// strict mode.
func (r *Registry) AddBundle(ctx context.Context, bundle extension.Bundle) error {
	logger := ctxlog.FromContext(ctx)
	if err := bundle.Validate(); err != nil {
		if r.strict {
			return &dslerr.ConflictError{Kind: "bundle", Name: bundle.Name}
		}
		logger.Warn("Skipping malformed extension bundle.", "bundle", bundle.Name, "error", err)
		return nil
	}

	for _, actor := range bundle.Actors {
		if err := r.AddActor(ctx, actor, bundle.Name); err != nil {
			return err
		}
	}
	for _, checker := range bundle.Checkers {
		if err := r.AddChecker(ctx, checker, bundle.Name); err != nil {
			return err
		}
	}
	for _, ct := range bundle.ContentTypes {
		if err := r.AddContentType(ctx, ct, bundle.Name); err != nil {
			return err
		}
	}
	for _, instr := range bundle.Instructions {
		if err := r.AddInstruction(ctx, instr, bundle.Name); err != nil {
			return err
		}
	}
	logger.Info("Extension bundle loaded.", "bundle", bundle.Name,
		"actors", len(bundle.Actors), "checkers", len(bundle.Checkers),
		"content_types", len(bundle.ContentTypes), "instructions", len(bundle.Instructions))
	return nil
}

// Actions returns the registered step variants in registration order.
func (r *Registry) Actions() []*extension.StepType {
	out := make([]*extension.StepType, 0, len(r.actionOrder))
	for _, name := range r.actionOrder {
		out = append(out, r.actions[name])
	}
	return out
}

// Checks returns the registered check variants in registration order.
func (r *Registry) Checks() []*extension.CheckType {
	out := make([]*extension.CheckType, 0, len(r.checkOrder))
	for _, name := range r.checkOrder {
		out = append(out, r.checks[name])
	}
	return out
}

// Encoders returns the registered encoder variants in registration order.
func (r *Registry) Encoders() []*extension.ContentOp {
	out := make([]*extension.ContentOp, 0, len(r.encoderOrder))
	for _, name := range r.encoderOrder {
		out = append(out, r.encoders[name])
	}
	return out
}

// Decoders returns the registered decoder variant chains (base operation
// plus transformer variants) in registration order.
func (r *Registry) Decoders() [][]*extension.ContentOp {
	out := make([][]*extension.ContentOp, 0, len(r.decoderOrder))
	for _, name := range r.decoderOrder {
		out = append(out, r.decoders[name])
	}
	return out
}

// Instructions returns the registered tags in registration order.
func (r *Registry) Instructions() []*extension.TagType {
	out := make([]*extension.TagType, 0, len(r.instructionOrder))
	for _, name := range r.instructionOrder {
		out = append(out, r.instructions[name])
	}
	return out
}
