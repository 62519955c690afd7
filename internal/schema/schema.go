// Package schema provides declarative field descriptors that compile into
// concrete, alias-aware field specifications. Extension descriptors declare
// their accepted parameters as a Schema; compilation enforces the global
// name/alias uniqueness that keeps independently authored extensions from
// producing an ambiguous document shape.
package schema

import (
	"fmt"
	"time"

	"github.com/vk/scenargo/internal/value"
)

// Kind is the base type tag of an attribute. Every compiled field also
// accepts a deferred value and nil regardless of its declared kind; the
// kind constrains concrete values only.
type Kind int

const (
	Any Kind = iota
	String
	Bytes
	Bool
	Int
	Float
	Time
	Duration
	List
	Map
)

// String returns the kind's name as used in schema exports.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case Time:
		return "time"
	case Duration:
		return "duration"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return "any"
	}
}

// Attribute is a declarative field descriptor: a base type tag, a required
// flag or a default (mutually exclusive), alternate names, and
// documentation metadata.
type Attribute struct {
	Type        Kind
	Required    bool
	Default     any
	Aliases     []string
	Title       string
	Description string
	Examples    []any
}

// Compile turns the attribute into a concrete field specification under the
// given canonical name. Declaring both required and a non-nil default is
// rejected: a default only makes sense for an optional field.
func (a Attribute) Compile(name string) (*FieldSpec, error) {
	if a.Required && a.Default != nil {
		return nil, fmt.Errorf("attribute %q declares both a default value and a required constraint", name)
	}
	return &FieldSpec{
		Name:        name,
		Kind:        a.Type,
		Aliases:     append([]string(nil), a.Aliases...),
		Required:    a.Required,
		Default:     a.Default,
		Title:       a.Title,
		Description: a.Description,
		Examples:    append([]any(nil), a.Examples...),
	}, nil
}

// FieldSpec is a compiled field: the structural contract one attribute
// contributes to a variant type.
type FieldSpec struct {
	Name        string
	Kind        Kind
	Aliases     []string
	Required    bool
	Default     any
	Title       string
	Description string
	Examples    []any
}

// Names returns the canonical name followed by all aliases.
func (f *FieldSpec) Names() []string {
	return append([]string{f.Name}, f.Aliases...)
}

// Validate checks a raw parsed value against the field's kind. Deferred
// values and nil are always accepted; their concrete shape is only knowable
// at resolution time.
func (f *FieldSpec) Validate(v any) error {
	if v == nil || f.Kind == Any {
		return nil
	}
	switch v.(type) {
	case value.Deferred, func(value.Context) (any, error):
		return nil
	}

	ok := false
	switch f.Kind {
	case String:
		_, ok = v.(string)
	case Bytes:
		_, ok = v.([]byte)
	case Bool:
		_, ok = v.(bool)
	case Int:
		_, ok = v.(int64)
	case Float:
		switch v.(type) {
		case float64, int64:
			ok = true
		}
	case Time:
		_, ok = v.(time.Time)
	case Duration:
		_, ok = v.(time.Duration)
	case List:
		_, ok = v.([]any)
	case Map:
		_, ok = v.(map[string]any)
	}
	if !ok {
		return fmt.Errorf("field %q expects %s, got %T", f.Name, f.Kind, v)
	}
	return nil
}

// Field pairs a canonical name with its attribute. Schemas are ordered, so
// they are declared as slices rather than maps.
type Field struct {
	Name string
	Attr Attribute
}

// Schema is an ordered set of named attributes.
type Schema []Field

// Compile builds field specifications for every attribute, verifying that
// no name or alias collides with the exclusion set or with a previously
// compiled attribute. The exclusion set grows as compilation proceeds, so
// the caller's reserved names and every compiled name/alias form one
// namespace. This uniqueness check is the load-bearing correctness
// guarantee of the extension system.
func (s Schema) Compile(exclude map[string]struct{}) ([]*FieldSpec, error) {
	if exclude == nil {
		exclude = make(map[string]struct{})
	}

	specs := make([]*FieldSpec, 0, len(s))
	for _, field := range s {
		if _, taken := exclude[field.Name]; taken {
			return nil, fmt.Errorf("attribute %q is not unique in schema", field.Name)
		}
		for _, alias := range field.Attr.Aliases {
			if _, taken := exclude[alias]; taken {
				return nil, fmt.Errorf("alias %q of attribute %q is not unique in schema", alias, field.Name)
			}
		}

		exclude[field.Name] = struct{}{}
		for _, alias := range field.Attr.Aliases {
			exclude[alias] = struct{}{}
		}

		spec, err := field.Attr.Compile(field.Name)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
