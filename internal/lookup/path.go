// Package lookup provides the primitives that produce a value from an
// execution context: dotted-path traversal, secret unwrapping, and a gated
// restricted-expression evaluator.
package lookup

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/value"
)

// identPattern is the base pattern for DSL identifiers: a letter followed
// by letters, digits, or underscores. ASCII only.
var identPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Lookup produces a value from an execution context.
type Lookup interface {
	Resolve(ctx value.Context) (any, error)
}

// Defer adapts a Lookup into a deferred value for embedding in parsed
// documents.
func Defer(l Lookup) value.Deferred {
	return l.Resolve
}

// Path resolves values from nested structures using dot-separated path
// notation. Traversal is intentionally total: a missing key, an invalid
// index, or a type mismatch yields nil instead of an error, so unresolved
// variables fail gracefully at the point of use.
type Path struct {
	segments []string
}

// NewPath parses a dotted path. The first segment must be a valid
// identifier; everything after that is free-form (numeric segments index
// into sequences).
func NewPath(path string) (*Path, error) {
	segments := strings.Split(strings.TrimSpace(path), ".")
	if !identPattern.MatchString(segments[0]) {
		return nil, dslerr.NewSchema("invalid variable path %q", path)
	}
	return &Path{segments: segments}, nil
}

// Resolve traverses the context along the path. It never returns an error:
// the error return exists to satisfy the Deferred contract.
func (p *Path) Resolve(ctx value.Context) (any, error) {
	return p.traverse(map[string]any(ctx)), nil
}

func (p *Path) traverse(current any) any {
	for _, segment := range p.segments {
		if current == nil {
			return nil
		}
		if segment == "" {
			return nil
		}
		switch container := current.(type) {
		case map[string]any:
			current = container[segment]
		case value.Context:
			current = map[string]any(container)[segment]
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(container) {
				return nil
			}
			current = container[index]
		default:
			return nil
		}
	}
	return current
}
