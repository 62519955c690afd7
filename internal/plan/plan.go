// Package plan executes parsed scenarios.
//
// A Plan is one runnable combination: an optional header, the ordered
// steps, and a concrete parameter assignment. Execution is strictly
// sequential — header phase first, then each step against a private copy of
// the global context, with exports as the only channel back into it.
package plan

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/vk/scenargo/internal/ctxlog"
	"github.com/vk/scenargo/internal/document"
	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/model"
	"github.com/vk/scenargo/internal/value"
)

// Plan is one executable scenario instance.
type Plan struct {
	// Header is the case or template header, or nil for a headerless
	// stream.
	Header model.Document

	// Steps run in document order.
	Steps []*model.Step

	// Params is the concrete parameter assignment: one cell of a case's
	// parameter matrix, or the include step's resolved variables for a
	// template sub-plan.
	Params map[string]any

	parser *document.Parser
	file   string
}

// Load parses a scenario file and expands its case parameter matrix into
// independent plans. A template file cannot run on its own; it is only
// reachable through an include step.
func Load(parser *document.Parser, path string) ([]*Plan, error) {
	header, steps, err := split(parser, path)
	if err != nil {
		return nil, err
	}

	switch h := header.(type) {
	case *model.Template:
		schemaErr := dslerr.NewSchema("template files cannot run directly, include them from a case")
		schemaErr.Loc = dslerr.At(path, 0, 0)
		return nil, schemaErr
	case *model.Case:
		plans := make([]*Plan, 0, 1)
		for _, assignment := range h.Matrix() {
			plans = append(plans, &Plan{
				Header: h,
				Steps:  steps,
				Params: assignment,
				parser: parser,
				file:   path,
			})
		}
		return plans, nil
	default:
		return []*Plan{{
			Steps:  steps,
			Params: map[string]any{},
			parser: parser,
			file:   path,
		}}, nil
	}
}

// LoadTemplate parses an included template file into a sub-plan bound to
// the given parameters.
func LoadTemplate(parser *document.Parser, path string, params map[string]any) (*Plan, error) {
	header, steps, err := split(parser, path)
	if err != nil {
		return nil, err
	}
	template, ok := header.(*model.Template)
	if !ok {
		schemaErr := dslerr.NewSchema("included file must start with a template header")
		schemaErr.Loc = dslerr.At(path, 0, 0)
		return nil, schemaErr
	}
	return &Plan{
		Header: template,
		Steps:  steps,
		Params: params,
		parser: parser,
		file:   path,
	}, nil
}

// split parses a stream into its optional header and the step documents.
func split(parser *document.Parser, path string) (model.Document, []*model.Step, error) {
	docs, err := parser.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	if len(docs) == 0 {
		schemaErr := dslerr.NewSchema("scenario file contains no documents")
		schemaErr.Loc = dslerr.At(path, 0, 0)
		return nil, nil, schemaErr
	}

	var header model.Document
	rest := docs
	switch docs[0].(type) {
	case *model.Case, *model.Template:
		header = docs[0]
		rest = docs[1:]
	}

	steps := make([]*model.Step, 0, len(rest))
	for _, doc := range rest {
		step, ok := doc.(*model.Step)
		if !ok {
			// The parser rejects headers past position zero, so this is
			// unreachable; keep the guard for new document kinds.
			schemaErr := dslerr.NewSchema("unexpected document kind %T", doc)
			schemaErr.Loc = dslerr.At(path, 0, 0)
			return nil, nil, schemaErr
		}
		steps = append(steps, step)
	}
	return header, steps, nil
}

// Title names the plan for logging: the header title when present, the file
// name otherwise.
func (p *Plan) Title() string {
	switch h := p.Header.(type) {
	case *model.Case:
		if h.Title != "" {
			return h.Title
		}
	case *model.Template:
		if h.Title != "" {
			return h.Title
		}
	}
	return filepath.Base(p.file)
}

// File returns the scenario file backing this plan.
func (p *Plan) File() string { return p.file }

// Run executes the plan and returns the final global context. The supplied
// context reaches every behavior function for host-level cancellation; the
// engine itself never retries or parallelizes.
func (p *Plan) Run(ctx context.Context) (value.Context, error) {
	logger := ctxlog.FromContext(ctx)

	globals, err := p.runHeader()
	if err != nil {
		return nil, err
	}

	// Step coordinates are document positions in the stream, so a header at
	// position zero shifts every step by one.
	offset := 0
	if p.Header != nil {
		offset = 1
	}

	for i, step := range p.Steps {
		pos := i + offset
		logger.Debug("Running step.", "step", pos, "action", step.Action, "title", step.Title)

		locals := globals.Clone()

		result, err := p.runStep(ctx, step, locals)
		if err != nil {
			return nil, p.wrap(err, step.Raw, locals, pos, -1)
		}
		locals[step.Output] = result

		var exports map[string]any
		if len(step.Export) > 0 {
			resolved, err := locals.Resolve(step.Export)
			if err != nil {
				return nil, p.wrap(err, step.Raw, locals, pos, -1)
			}
			exports = resolved.(map[string]any)
			locals.Merge(exports)
		}

		for j, check := range step.Checks {
			if err := p.runCheck(check, locals, pos, j); err != nil {
				return nil, err
			}
		}

		globals.Merge(exports)
	}
	return globals, nil
}

// runHeader resolves the header's variables against the seed context of
// parameters, metadata, and environment values. The seed keys win over
// variables on collision, and the merged result becomes the initial global
// context. Header failures carry step index zero.
func (p *Plan) runHeader() (value.Context, error) {
	if p.Header == nil {
		return value.Context{}, nil
	}

	var seed value.Context
	var vars map[string]any
	var raw map[string]any

	switch h := p.Header.(type) {
	case *model.Case:
		envs, err := h.Environment()
		if err != nil {
			return nil, p.wrap(err, h.Raw, nil, 0, -1)
		}
		seed = value.Context{"params": p.Params, "meta": h.Meta, "envs": envs}
		vars, raw = h.Vars, h.Raw
	case *model.Template:
		bound, err := h.BindParams(p.Params)
		if err != nil {
			return nil, p.wrap(err, h.Raw, nil, 0, -1)
		}
		envs, err := h.Environment()
		if err != nil {
			return nil, p.wrap(err, h.Raw, nil, 0, -1)
		}
		seed = value.Context{"params": bound, "envs": envs}
		vars, raw = h.Vars, h.Raw
	}

	globals := value.Context{}
	if len(vars) > 0 {
		resolved, err := seed.Resolve(vars)
		if err != nil {
			return nil, p.wrap(err, raw, seed, 0, -1)
		}
		globals.Merge(resolved.(map[string]any))
	}
	globals.Merge(seed)
	return globals, nil
}

// runStep executes one step against its local view and returns the value
// stored under the step's output name. Step variables resolve into a
// private view used only for the step's own field resolution; they never
// reach the surrounding local context.
func (p *Plan) runStep(ctx context.Context, step *model.Step, locals value.Context) (any, error) {
	if step.Include {
		return p.runInclude(ctx, step, locals)
	}

	view := locals
	if len(step.Vars) > 0 {
		resolved, err := locals.Resolve(step.Vars)
		if err != nil {
			return nil, err
		}
		view = locals.Clone().Merge(resolved.(map[string]any))
	}

	resolved, err := view.Resolve(step.Fields)
	if err != nil {
		return nil, err
	}
	params := resolved.(map[string]any)

	result, err := step.Type.Run(ctx, params)
	if err != nil {
		return nil, err
	}
	// Normalize runner output into the canonical value shapes.
	return locals.Resolve(result)
}

// runInclude executes the referenced template as a nested sub-plan. The
// include's variables resolve against the local view but form the entire
// parameter set of the sub-plan: nothing else is inherited.
func (p *Plan) runInclude(ctx context.Context, step *model.Step, locals value.Context) (any, error) {
	params := map[string]any{}
	if len(step.Vars) > 0 {
		resolved, err := locals.Resolve(step.Vars)
		if err != nil {
			return nil, err
		}
		params = resolved.(map[string]any)
	}

	fields, err := locals.Resolve(step.Fields)
	if err != nil {
		return nil, err
	}
	file, _ := fields.(map[string]any)["file"].(string)
	if file == "" {
		return nil, dslerr.NewRuntime("include step resolved to an empty file path")
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(filepath.Dir(p.file), file)
	}

	sub, err := LoadTemplate(p.parser, file, params)
	if err != nil {
		return nil, err
	}
	out, err := sub.Run(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any(out), nil
}

// runCheck resolves and evaluates one expectation against the local view.
// A false result fails the check; an error from resolution or the check
// function is a runtime error, not a failed expectation.
func (p *Plan) runCheck(check *model.Check, locals value.Context, step, index int) error {
	target, err := locals.Resolve(check.Target)
	if err != nil {
		return p.wrap(err, check.Raw, locals, step, index)
	}

	resolved, err := locals.Resolve(check.Fields)
	if err != nil {
		return p.wrap(err, check.Raw, locals, step, index)
	}
	params := resolved.(map[string]any)

	expected, err := locals.Resolve(check.Value)
	if err != nil {
		return p.wrap(err, check.Raw, locals, step, index)
	}
	params[check.Type.Name] = expected

	ok, err := check.Type.Run(target, params)
	if err != nil {
		return p.wrap(err, check.Raw, locals, step, index)
	}
	if !ok {
		return &dslerr.CheckFailed{
			Title:   check.Title,
			Loc:     dslerr.Location{File: p.file, Step: step, Check: index},
			Element: check.Raw,
			Context: locals,
		}
	}
	return nil
}

// wrap upgrades an error crossing a step boundary with coordinates, the
// implicated element, and a context snapshot. Failed expectations pass
// through untouched, and errors that already carry coordinates (from a
// nested sub-plan) are not re-wrapped.
func (p *Plan) wrap(err error, elem any, locals value.Context, step, check int) error {
	var failed *dslerr.CheckFailed
	if errors.As(err, &failed) {
		return err
	}

	msg := err.Error()
	var runtimeErr *dslerr.RuntimeError
	if errors.As(err, &runtimeErr) {
		if runtimeErr.Loc.Step >= 0 {
			return err
		}
		msg = runtimeErr.Msg
	}
	var schemaErr *dslerr.SchemaError
	if errors.As(err, &schemaErr) {
		if schemaErr.Loc.Step >= 0 || schemaErr.Loc.Line > 0 {
			return err
		}
		msg = schemaErr.Msg
	}

	return &dslerr.RuntimeError{
		Msg:     msg,
		Loc:     dslerr.Location{File: p.file, Step: step, Check: check},
		Element: elem,
		Context: locals,
		Err:     err,
	}
}
