// Package extension defines the declarative extension points of the
// scenario DSL — actions, checks, content codecs, and document tags — and
// compiles them into concrete, discriminator-tagged variant types.
//
// A descriptor pairs a name, a parameter schema, and a bound behavior
// function. Descriptors are declared statically by built-ins or supplied by
// an extension bundle at process start, compiled once, and never mutated
// after registration.
package extension

import (
	"context"
	"regexp"

	"gopkg.in/yaml.v3"
)

// namePattern validates extension discriminator names: a letter followed by
// letters, digits, or underscores.
var namePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ActionFunc implements an action. It receives the step's resolved
// parameters and returns the produced value, which the engine stores under
// the step's output name.
type ActionFunc func(ctx context.Context, params map[string]any) (any, error)

// CheckFunc implements a check. It receives the resolved target value and
// the resolved check parameters, and reports whether the expectation holds.
type CheckFunc func(target any, params map[string]any) (bool, error)

// ContentFunc implements a content operation. It receives the resolved
// source value and resolved parameters, and returns the transformed value.
type ContentFunc func(source any, params map[string]any) (any, error)

// TagFunc constructs a runtime value (possibly deferred) from a document
// node at parse time.
type TagFunc func(node *yaml.Node) (any, error)

// NodeKind restricts what shape of document node a tag accepts.
type NodeKind int

const (
	ScalarNode NodeKind = iota
	MappingNode
)

// Reserved bookkeeping fields of every step variant. Extension parameter
// schemas must not collide with them.
func stepReserved() map[string]struct{} {
	return map[string]struct{}{
		"action":      {},
		"title":       {},
		"description": {},
		"vars":        {},
		"expect":      {},
		"output":      {},
		"export":      {},
	}
}

// Reserved bookkeeping fields of every check variant. The value field
// carries the target the check runs against.
func checkReserved() map[string]struct{} {
	return map[string]struct{}{
		"title":       {},
		"description": {},
		"value":       {},
	}
}

// Reserved bookkeeping fields of every content operation.
func contentReserved() map[string]struct{} {
	return map[string]struct{}{
		"format": {},
		"source": {},
	}
}
