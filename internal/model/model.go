// Package model composes the registered extension variants into the
// document model: the step union (one variant per action plus the built-in
// include variant), the check union keyed by discriminator field, and the
// content operation unions keyed by format. It also validates raw parsed
// documents into typed headers and step instances.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/extension"
	"github.com/vk/scenargo/internal/registry"
	"github.com/vk/scenargo/internal/schema"
)

// IncludeAction is the discriminator of the built-in include step variant.
// Its behavior lives in the execution engine, not in a runner function.
const IncludeAction = "include"

// DefaultOutput is the context key a step's result is stored under when the
// document does not override it.
const DefaultOutput = "result"

// Model is the compiled document model for one registry snapshot. It is
// immutable after Build.
type Model struct {
	steps     map[string]*extension.StepType
	stepOrder []string

	// checks maps every discriminator name and alias to its variant.
	checks     map[string]*extension.CheckType
	checkOrder []string

	encoders     map[string]*extension.ContentOp
	encoderOrder []string

	decoders     map[string][]*extension.ContentOp
	decoderOrder []string
}

// Build composes the model from the registry's current contents. A registry
// without a single action cannot express any scenario and is rejected.
func Build(reg *registry.Registry) (*Model, error) {
	actions := reg.Actions()
	if len(actions) == 0 {
		return nil, &dslerr.BuildError{Msg: "no actions are registered, the step union is empty"}
	}

	m := &Model{
		steps:    make(map[string]*extension.StepType, len(actions)+1),
		checks:   make(map[string]*extension.CheckType),
		encoders: make(map[string]*extension.ContentOp),
		decoders: make(map[string][]*extension.ContentOp),
	}

	include, err := includeVariant()
	if err != nil {
		return nil, err
	}
	m.steps[include.Action] = include
	m.stepOrder = append(m.stepOrder, include.Action)

	for _, step := range actions {
		// The registry enforces uniqueness; a collision here means an actor
		// named itself after the built-in include variant.
		if _, taken := m.steps[step.Action]; taken {
			return nil, &dslerr.BuildError{Msg: fmt.Sprintf("action %q collides with an existing step variant", step.Action)}
		}
		m.steps[step.Action] = step
		m.stepOrder = append(m.stepOrder, step.Action)
	}

	for _, check := range reg.Checks() {
		for _, name := range check.Value.Names() {
			if _, taken := m.checks[name]; taken {
				return nil, &dslerr.BuildError{Msg: fmt.Sprintf("check discriminator %q is claimed by two checkers", name)}
			}
			m.checks[name] = check
		}
		m.checkOrder = append(m.checkOrder, check.Name)
	}

	for _, enc := range reg.Encoders() {
		m.encoders[enc.Format] = enc
		m.encoderOrder = append(m.encoderOrder, enc.Format)
	}
	for _, variants := range reg.Decoders() {
		format := variants[0].Format
		m.decoders[format] = variants
		m.decoderOrder = append(m.decoderOrder, format)
	}

	return m, nil
}

// includeVariant builds the built-in include step type. Its runner is never
// invoked; the execution engine intercepts the action and runs the included
// template as a sub-plan.
func includeVariant() (*extension.StepType, error) {
	actor := extension.Actor{
		Name: IncludeAction,
		Params: schema.Schema{
			{Name: "file", Attr: schema.Attribute{
				Type:        schema.String,
				Required:    true,
				Title:       "Template file",
				Description: "Path of the template to run, relative to the including document.",
			}},
		},
		Run: func(context.Context, map[string]any) (any, error) {
			return nil, dslerr.NewRuntime("include steps are handled by the execution engine")
		},
	}
	step, err := actor.Compile("")
	if err != nil {
		return nil, &dslerr.BuildError{Msg: "include variant", Err: err}
	}
	return step, nil
}

// StepType returns the step variant for an action discriminator, or nil.
func (m *Model) StepType(action string) *extension.StepType {
	return m.steps[action]
}

// CheckType returns the check variant claiming a discriminator name or
// alias, or nil.
func (m *Model) CheckType(name string) *extension.CheckType {
	return m.checks[name]
}

// HasChecks reports whether any checker is registered. When none is, the
// expect field is rejected on every step.
func (m *Model) HasChecks() bool { return len(m.checkOrder) > 0 }

// EncodeOp returns the encoder for a format.
func (m *Model) EncodeOp(format string) (*extension.ContentOp, error) {
	op := m.encoders[format]
	if op == nil {
		return nil, dslerr.NewSchema("no encoder is registered for format %q", format)
	}
	return op, nil
}

// DecodeOp selects the decoder variant for a format based on which
// transformer discriminator, if any, the raw entry carries. No transformer
// field selects the base operation; more than one is ambiguous.
func (m *Model) DecodeOp(format string, raw map[string]any) (*extension.ContentOp, error) {
	variants := m.decoders[format]
	if variants == nil {
		return nil, dslerr.NewSchema("no decoder is registered for format %q", format)
	}

	var selected *extension.ContentOp
	for _, variant := range variants[1:] {
		for _, name := range variant.Selector.Names() {
			if _, present := raw[name]; !present {
				continue
			}
			if selected != nil {
				return nil, dslerr.NewSchema("decode entry for format %q selects more than one transformer", format)
			}
			selected = variant
		}
	}
	if selected == nil {
		selected = variants[0]
	}
	return selected, nil
}

// BindContent validates a raw decode/encode entry against a content
// operation and returns its parameters under canonical names. The format
// and source keys are bookkeeping and excluded from binding.
func (m *Model) BindContent(op *extension.ContentOp, raw map[string]any) (map[string]any, error) {
	skip := map[string]struct{}{"format": {}, "source": {}}
	params, err := bindFields(raw, skip, op.Fields, op.Field)
	if err != nil {
		return nil, element(err, raw)
	}
	return params, nil
}

// Steps returns the step variants in a stable order, include first.
func (m *Model) Steps() []*extension.StepType {
	out := make([]*extension.StepType, 0, len(m.stepOrder))
	for _, name := range m.stepOrder {
		out = append(out, m.steps[name])
	}
	return out
}

// Checks returns the check variants in registration order.
func (m *Model) Checks() []*extension.CheckType {
	out := make([]*extension.CheckType, 0, len(m.checkOrder))
	for _, name := range m.checkOrder {
		out = append(out, m.checks[name])
	}
	return out
}

// Encoders returns the encoder operations in registration order.
func (m *Model) Encoders() []*extension.ContentOp {
	out := make([]*extension.ContentOp, 0, len(m.encoderOrder))
	for _, name := range m.encoderOrder {
		out = append(out, m.encoders[name])
	}
	return out
}

// Decoders returns the decoder variant chains in registration order.
func (m *Model) Decoders() [][]*extension.ContentOp {
	out := make([][]*extension.ContentOp, 0, len(m.decoderOrder))
	for _, name := range m.decoderOrder {
		out = append(out, m.decoders[name])
	}
	return out
}

// Document is a validated top-level document: a Case or Template header, or
// a Step.
type Document interface {
	document()
}

func (*Case) document()     {}
func (*Template) document() {}
func (*Step) document()     {}

// BuildDocument validates one raw parsed document. A mapping carrying a
// spec key is a header; one carrying an action key is a step; anything else
// is malformed.
func (m *Model) BuildDocument(raw any) (Document, error) {
	mapping, ok := raw.(map[string]any)
	if !ok {
		err := dslerr.NewSchema("document must be a mapping, got %T", raw)
		err.Element = raw
		return nil, err
	}
	if _, isHeader := mapping["spec"]; isHeader {
		return m.buildHeader(mapping)
	}
	if _, isStep := mapping["action"]; isStep {
		return m.buildStep(mapping)
	}
	err := dslerr.NewSchema("document is neither a header (spec) nor a step (action)")
	err.Element = mapping
	return nil, err
}

// Builder memoizes one model per registry snapshot so that repeated parser
// constructions and include sub-plans share the compiled unions.
type Builder struct {
	reg   *registry.Registry
	once  sync.Once
	model *Model
	err   error
}

// NewBuilder wraps a registry for lazy model composition.
func NewBuilder(reg *registry.Registry) *Builder {
	return &Builder{reg: reg}
}

// Model returns the composed model, building it on first use.
func (b *Builder) Model() (*Model, error) {
	b.once.Do(func() {
		b.model, b.err = Build(b.reg)
	})
	return b.model, b.err
}

// bindFields matches the non-reserved keys of a raw document entry against
// a variant's field specs: unknown keys are rejected, alias duplication is
// rejected, values are kind-checked, and defaults fill absent optional
// fields. The result maps canonical names to raw (possibly deferred)
// values.
func bindFields(raw map[string]any, skip map[string]struct{}, specs []*schema.FieldSpec, field func(string) *schema.FieldSpec) (map[string]any, error) {
	out := make(map[string]any, len(specs))
	seen := make(map[string]string, len(specs))

	for key, item := range raw {
		if _, reserved := skip[key]; reserved {
			continue
		}
		spec := field(key)
		if spec == nil {
			return nil, dslerr.NewSchema("unknown field %q", key)
		}
		if prev, dup := seen[spec.Name]; dup {
			return nil, dslerr.NewSchema("fields %q and %q name the same attribute %q", prev, key, spec.Name)
		}
		seen[spec.Name] = key
		if err := spec.Validate(item); err != nil {
			return nil, &dslerr.SchemaError{Msg: err.Error(), Loc: dslerr.NoLocation(), Err: err}
		}
		out[spec.Name] = item
	}

	for _, spec := range specs {
		if _, present := out[spec.Name]; present {
			continue
		}
		if spec.Required {
			return nil, dslerr.NewSchema("required field %q is missing", spec.Name)
		}
		if spec.Default != nil {
			out[spec.Name] = spec.Default
		}
	}
	return out, nil
}

// element attaches the failing raw element to a SchemaError that does not
// already carry one.
func element(err error, elem any) error {
	if schemaErr, ok := err.(*dslerr.SchemaError); ok && schemaErr.Element == nil {
		schemaErr.Element = elem
	}
	return err
}

// optionalString reads an optional string field from a raw mapping.
func optionalString(raw map[string]any, key string) (string, error) {
	v, present := raw[key]
	if !present || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", dslerr.NewSchema("field %q expects string, got %T", key, v)
	}
	return s, nil
}

// optionalMapping reads an optional mapping field from a raw mapping.
func optionalMapping(raw map[string]any, key string) (map[string]any, error) {
	v, present := raw[key]
	if !present || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, dslerr.NewSchema("field %q expects mapping, got %T", key, v)
	}
	return m, nil
}
