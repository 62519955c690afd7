package model

import (
	"os"
	"strconv"

	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/schema"
	"github.com/vk/scenargo/internal/value"
)

// Header is the part shared by case and template documents.
type Header struct {
	Title       string
	Description string

	// Vars are raw (possibly deferred) definitions resolved against the
	// seed context during the header phase.
	Vars map[string]any

	// Envs declare values read from the process environment.
	Envs []Input

	// Raw is the original document entry, kept for error snapshots.
	Raw map[string]any
}

// Case is a runnable scenario header. Params span a combinatorial matrix;
// each combination expands into an independent plan.
type Case struct {
	Header
	Meta   map[string]any
	Params []Parameter
}

// Template is an includable scenario header. Inputs form the parameter
// contract an including step must satisfy.
type Template struct {
	Header
	Inputs []Input
}

// Parameter is one axis of a case's parameter matrix.
type Parameter struct {
	Name   string
	Values []any
}

// Input declares a named external value: a template parameter or an
// environment variable. Required and a non-nil default are mutually
// exclusive; secret inputs must be strings so they can be wrapped.
type Input struct {
	Name        string
	Type        schema.Kind
	Required    bool
	Default     any
	Secret      bool
	Description string
}

var kindNames = map[string]schema.Kind{
	"any":      schema.Any,
	"str":      schema.String,
	"string":   schema.String,
	"bytes":    schema.Bytes,
	"bool":     schema.Bool,
	"int":      schema.Int,
	"float":    schema.Float,
	"time":     schema.Time,
	"duration": schema.Duration,
	"list":     schema.List,
	"object":   schema.Map,
	"map":      schema.Map,
}

func (m *Model) buildHeader(raw map[string]any) (Document, error) {
	kind, err := optionalString(raw, "spec")
	if err != nil {
		return nil, element(err, raw)
	}
	switch kind {
	case "case":
		return buildCase(raw)
	case "template":
		return buildTemplate(raw)
	default:
		return nil, element(dslerr.NewSchema("header spec must be \"case\" or \"template\", got %q", kind), raw)
	}
}

func buildBase(raw map[string]any, known map[string]struct{}) (Header, error) {
	header := Header{Raw: raw}

	for key := range raw {
		if _, ok := known[key]; !ok {
			return header, dslerr.NewSchema("unknown header field %q", key)
		}
	}

	var err error
	if header.Title, err = optionalString(raw, "title"); err != nil {
		return header, err
	}
	if header.Description, err = optionalString(raw, "description"); err != nil {
		return header, err
	}
	if header.Vars, err = optionalMapping(raw, "vars"); err != nil {
		return header, err
	}
	if header.Envs, err = parseInputs(raw, "envs"); err != nil {
		return header, err
	}
	return header, nil
}

func buildCase(raw map[string]any) (*Case, error) {
	known := map[string]struct{}{
		"spec": {}, "title": {}, "description": {}, "vars": {},
		"envs": {}, "metadata": {}, "params": {},
	}
	header, err := buildBase(raw, known)
	if err != nil {
		return nil, element(err, raw)
	}

	c := &Case{Header: header}
	if c.Meta, err = optionalMapping(raw, "metadata"); err != nil {
		return nil, element(err, raw)
	}

	entries, present := raw["params"]
	if present && entries != nil {
		list, ok := entries.([]any)
		if !ok {
			return nil, element(dslerr.NewSchema("field \"params\" expects a sequence, got %T", entries), raw)
		}
		names := make(map[string]struct{}, len(list))
		for _, entry := range list {
			param, err := parseParameter(entry)
			if err != nil {
				return nil, element(err, raw)
			}
			if _, dup := names[param.Name]; dup {
				return nil, element(dslerr.NewSchema("parameter %q is declared twice", param.Name), raw)
			}
			names[param.Name] = struct{}{}
			c.Params = append(c.Params, param)
		}
	}
	return c, nil
}

func buildTemplate(raw map[string]any) (*Template, error) {
	known := map[string]struct{}{
		"spec": {}, "title": {}, "description": {}, "vars": {},
		"envs": {}, "params": {},
	}
	header, err := buildBase(raw, known)
	if err != nil {
		return nil, element(err, raw)
	}

	t := &Template{Header: header}
	if t.Inputs, err = parseInputs(raw, "params"); err != nil {
		return nil, element(err, raw)
	}
	return t, nil
}

func parseParameter(entry any) (Parameter, error) {
	raw, ok := entry.(map[string]any)
	if !ok {
		return Parameter{}, dslerr.NewSchema("parameter must be a mapping, got %T", entry)
	}
	for key := range raw {
		if key != "name" && key != "values" {
			return Parameter{}, dslerr.NewSchema("unknown parameter field %q", key)
		}
	}
	name, err := optionalString(raw, "name")
	if err != nil {
		return Parameter{}, err
	}
	if name == "" {
		return Parameter{}, dslerr.NewSchema("parameter has no name")
	}
	values, ok := raw["values"].([]any)
	if !ok || len(values) == 0 {
		return Parameter{}, dslerr.NewSchema("parameter %q needs a non-empty values sequence", name)
	}
	return Parameter{Name: name, Values: values}, nil
}

// parseInputs reads a sequence of input declarations, enforcing unique
// names within the list.
func parseInputs(raw map[string]any, key string) ([]Input, error) {
	entries, present := raw[key]
	if !present || entries == nil {
		return nil, nil
	}
	list, ok := entries.([]any)
	if !ok {
		return nil, dslerr.NewSchema("field %q expects a sequence, got %T", key, entries)
	}

	inputs := make([]Input, 0, len(list))
	names := make(map[string]struct{}, len(list))
	for _, entry := range list {
		input, err := parseInput(entry)
		if err != nil {
			return nil, err
		}
		if _, dup := names[input.Name]; dup {
			return nil, dslerr.NewSchema("input %q is declared twice", input.Name)
		}
		names[input.Name] = struct{}{}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

func parseInput(entry any) (Input, error) {
	raw, ok := entry.(map[string]any)
	if !ok {
		return Input{}, dslerr.NewSchema("input must be a mapping, got %T", entry)
	}

	known := map[string]struct{}{
		"name": {}, "type": {}, "required": {}, "default": {},
		"secret": {}, "description": {},
	}
	for key := range raw {
		if _, ok := known[key]; !ok {
			return Input{}, dslerr.NewSchema("unknown input field %q", key)
		}
	}

	input := Input{Type: schema.String}
	var err error
	if input.Name, err = optionalString(raw, "name"); err != nil {
		return Input{}, err
	}
	if input.Name == "" {
		return Input{}, dslerr.NewSchema("input has no name")
	}
	if input.Description, err = optionalString(raw, "description"); err != nil {
		return Input{}, err
	}

	if kind, present := raw["type"]; present && kind != nil {
		name, ok := kind.(string)
		if !ok {
			return Input{}, dslerr.NewSchema("input %q: field \"type\" expects string, got %T", input.Name, kind)
		}
		input.Type, ok = kindNames[name]
		if !ok {
			return Input{}, dslerr.NewSchema("input %q has unknown type %q", input.Name, name)
		}
	}
	if required, present := raw["required"]; present && required != nil {
		flag, ok := required.(bool)
		if !ok {
			return Input{}, dslerr.NewSchema("input %q: field \"required\" expects bool, got %T", input.Name, required)
		}
		input.Required = flag
	}
	if secret, present := raw["secret"]; present && secret != nil {
		flag, ok := secret.(bool)
		if !ok {
			return Input{}, dslerr.NewSchema("input %q: field \"secret\" expects bool, got %T", input.Name, secret)
		}
		input.Secret = flag
	}
	input.Default = raw["default"]

	if input.Required && input.Default != nil {
		return Input{}, dslerr.NewSchema("input %q declares both a default value and a required constraint", input.Name)
	}
	if input.Secret && input.Type != schema.String {
		return Input{}, dslerr.NewSchema("secret input %q must have type string", input.Name)
	}
	return input, nil
}

// spec compiles the input into a field specification for value validation.
func (in Input) spec() (*schema.FieldSpec, error) {
	attr := schema.Attribute{Type: in.Type, Required: in.Required, Default: in.Default}
	return attr.Compile(in.Name)
}

// Environment reads the header's declared environment variables from the
// process environment. Missing variables fall back to their default;
// missing required variables abort the run. Values convert to the declared
// type, and secret values are wrapped so they never leak into logs or
// snapshots.
func (h Header) Environment() (map[string]any, error) {
	if len(h.Envs) == 0 {
		return map[string]any{}, nil
	}
	envs := make(map[string]any, len(h.Envs))
	for _, input := range h.Envs {
		raw, present := os.LookupEnv(input.Name)
		if !present {
			if input.Required {
				return nil, dslerr.NewRuntime("required environment variable %q is not set", input.Name)
			}
			envs[input.Name] = input.Default
			continue
		}
		converted, err := convertEnv(input, raw)
		if err != nil {
			return nil, err
		}
		envs[input.Name] = converted
	}
	return envs, nil
}

func convertEnv(input Input, raw string) (any, error) {
	if input.Secret {
		return value.NewSecret(raw), nil
	}
	switch input.Type {
	case schema.Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, dslerr.NewRuntime("environment variable %q is not an int: %v", input.Name, err)
		}
		return n, nil
	case schema.Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, dslerr.NewRuntime("environment variable %q is not a float: %v", input.Name, err)
		}
		return f, nil
	case schema.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, dslerr.NewRuntime("environment variable %q is not a bool: %v", input.Name, err)
		}
		return b, nil
	case schema.Bytes:
		return []byte(raw), nil
	default:
		return raw, nil
	}
}

// Matrix expands the case's parameter axes into every combination,
// preserving declaration order: the last axis varies fastest. A case
// without parameters yields one empty assignment.
func (c *Case) Matrix() []map[string]any {
	combinations := []map[string]any{{}}
	for _, param := range c.Params {
		next := make([]map[string]any, 0, len(combinations)*len(param.Values))
		for _, combination := range combinations {
			for _, v := range param.Values {
				assignment := make(map[string]any, len(combination)+1)
				for key, item := range combination {
					assignment[key] = item
				}
				assignment[param.Name] = v
				next = append(next, assignment)
			}
		}
		combinations = next
	}
	return combinations
}

// BindParams validates supplied parameters against the template's input
// contract: unknown names are rejected, absent required inputs abort,
// defaults fill the gaps, and secret string inputs are wrapped.
func (t *Template) BindParams(params map[string]any) (map[string]any, error) {
	byName := make(map[string]Input, len(t.Inputs))
	for _, input := range t.Inputs {
		byName[input.Name] = input
	}
	for name := range params {
		if _, ok := byName[name]; !ok {
			return nil, dslerr.NewSchema("template does not declare parameter %q", name)
		}
	}

	bound := make(map[string]any, len(t.Inputs))
	for _, input := range t.Inputs {
		supplied, present := params[input.Name]
		if !present {
			if input.Required {
				return nil, dslerr.NewSchema("required template parameter %q is missing", input.Name)
			}
			bound[input.Name] = input.Default
			continue
		}
		spec, err := input.spec()
		if err != nil {
			return nil, dslerr.NewSchema("template parameter %q: %v", input.Name, err)
		}
		if err := spec.Validate(supplied); err != nil {
			return nil, &dslerr.SchemaError{Msg: err.Error(), Loc: dslerr.NoLocation(), Err: err}
		}
		if input.Secret {
			if s, ok := supplied.(string); ok {
				supplied = value.NewSecret(s)
			}
		}
		bound[input.Name] = supplied
	}
	return bound, nil
}
