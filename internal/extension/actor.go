package extension

import (
	"fmt"

	"github.com/vk/scenargo/internal/schema"
)

// Actor is the declarative definition of an executable action. It is not
// executed directly; it compiles into a StepType variant used by the model
// builder and the execution engine.
type Actor struct {
	// Name is the action discriminator. Bundle-provided actors are
	// registered namespace-prefixed ("bundle.name").
	Name string

	// Params declares the parameters the action accepts beyond the base
	// step fields.
	Params schema.Schema

	// Run implements the action.
	Run ActionFunc
}

// StepType is a compiled action variant: the discriminator value, the
// compiled parameter fields, and the bound behavior function.
type StepType struct {
	Action string
	Fields []*schema.FieldSpec
	Run    ActionFunc

	fieldIndex map[string]*schema.FieldSpec
}

// Compile builds the concrete step variant, optionally prefixing the
// discriminator with a namespace. Parameter names must not collide with the
// reserved step fields or with each other.
func (a Actor) Compile(namespace string) (*StepType, error) {
	if !namePattern.MatchString(a.Name) {
		return nil, fmt.Errorf("invalid action name %q", a.Name)
	}
	if a.Run == nil {
		return nil, fmt.Errorf("action %q has no behavior function", a.Name)
	}

	exclude := stepReserved()
	exclude[a.Name] = struct{}{}

	fields, err := a.Params.Compile(exclude)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", a.Name, err)
	}

	action := a.Name
	if namespace != "" {
		action = namespace + "." + a.Name
	}

	return &StepType{
		Action:     action,
		Fields:     fields,
		Run:        a.Run,
		fieldIndex: indexFields(fields),
	}, nil
}

// Field returns the field spec matching a canonical name or alias, or nil.
func (t *StepType) Field(name string) *schema.FieldSpec {
	return t.fieldIndex[name]
}

// indexFields maps every canonical name and alias to its spec.
func indexFields(fields []*schema.FieldSpec) map[string]*schema.FieldSpec {
	index := make(map[string]*schema.FieldSpec)
	for _, field := range fields {
		for _, name := range field.Names() {
			index[name] = field
		}
	}
	return index
}
