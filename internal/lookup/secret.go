package lookup

import (
	"github.com/vk/scenargo/internal/value"
)

// SecretPath is a path lookup that unwraps secret values. Any resolved
// value that is not secret material is suppressed to nil: fail-closed, so
// this lookup can never be used to read a plain value into a place that
// expects (and might log) a secret.
type SecretPath struct {
	path *Path
}

// NewSecret parses a dotted path for secret extraction.
func NewSecret(path string) (*SecretPath, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	return &SecretPath{path: p}, nil
}

// Resolve traverses the context and unwraps the result if it is a secret.
func (s *SecretPath) Resolve(ctx value.Context) (any, error) {
	resolved, _ := s.path.Resolve(ctx)
	if secret, ok := resolved.(value.Secret); ok {
		return secret.Unwrap(), nil
	}
	return nil, nil
}
