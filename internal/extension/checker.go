package extension

import (
	"fmt"

	"github.com/vk/scenargo/internal/schema"
)

// Checker is the declarative definition of a reusable value check. The
// discriminator field both selects the checker and carries the expected
// value: a document entry `less_than: 5` picks the less_than check with 5
// as its bound. The checked target comes from the reserved value field.
type Checker struct {
	// Name is the discriminator field name of the generated check variant.
	Name string

	// Field describes the discriminator field: its type, aliases, and
	// documentation. It holds the value the target is checked against.
	Field schema.Attribute

	// Params declares additional parameters influencing check behavior.
	Params schema.Schema

	// Run implements the check.
	Run CheckFunc
}

// CheckType is a compiled check variant.
type CheckType struct {
	// Name is the discriminator field's canonical name.
	Name string

	// Value is the discriminator field spec. It is required by
	// construction and holds the expected value, which reaches the check
	// function through the params mapping under the canonical name.
	Value *schema.FieldSpec

	// Fields are the compiled parameter fields.
	Fields []*schema.FieldSpec

	Run CheckFunc

	fieldIndex map[string]*schema.FieldSpec
}

// Compile builds the concrete check variant.
func (c Checker) Compile() (*CheckType, error) {
	if !namePattern.MatchString(c.Name) {
		return nil, fmt.Errorf("invalid checker name %q", c.Name)
	}
	if c.Run == nil {
		return nil, fmt.Errorf("checker %q has no behavior function", c.Name)
	}

	// The discriminator's presence selects the checker, so the field is
	// required by construction and cannot carry a default.
	attr := c.Field
	attr.Required = true
	valueSpec, err := attr.Compile(c.Name)
	if err != nil {
		return nil, fmt.Errorf("checker %q: %w", c.Name, err)
	}

	// The discriminator and its aliases share the document namespace with
	// the reserved check fields; a checker named "value" would make the
	// target and the expected value indistinguishable.
	exclude := checkReserved()
	for _, name := range valueSpec.Names() {
		if _, taken := exclude[name]; taken {
			return nil, fmt.Errorf("checker %q: name %q collides with a reserved check field", c.Name, name)
		}
		exclude[name] = struct{}{}
	}

	fields, err := c.Params.Compile(exclude)
	if err != nil {
		return nil, fmt.Errorf("checker %q: %w", c.Name, err)
	}

	return &CheckType{
		Name:       c.Name,
		Value:      valueSpec,
		Fields:     fields,
		Run:        c.Run,
		fieldIndex: indexFields(fields),
	}, nil
}

// Field returns the parameter field spec matching a name or alias, or nil.
func (t *CheckType) Field(name string) *schema.FieldSpec {
	return t.fieldIndex[name]
}
