package extension

import "fmt"

// Instruction is the declarative definition of a custom document tag. The
// constructor converts a document node into a runtime value — typically a
// deferred lookup — during parsing, before validation.
type Instruction struct {
	// Name is the tag's symbolic name; the document form is "!<name>".
	Name string

	// Node restricts the node shape the tag accepts.
	Node NodeKind

	// Construct converts the tagged node into a runtime value.
	Construct TagFunc
}

// TagType is a compiled instruction.
type TagType struct {
	Name      string
	Node      NodeKind
	Construct TagFunc
}

// Compile validates and freezes the instruction.
func (i Instruction) Compile() (*TagType, error) {
	if !namePattern.MatchString(i.Name) {
		return nil, fmt.Errorf("invalid instruction name %q", i.Name)
	}
	if i.Construct == nil {
		return nil, fmt.Errorf("instruction %q has no constructor", i.Name)
	}
	return &TagType{Name: i.Name, Node: i.Node, Construct: i.Construct}, nil
}
