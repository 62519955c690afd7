package value

// Masked is the placeholder rendered instead of secret material in logs,
// error snippets, and serialized snapshots.
const Masked = "******"

// Secret wraps sensitive string material. It is a fully resolved scalar:
// formatting, logging, and YAML serialization all yield a mask, and the
// underlying value is only reachable through Unwrap.
type Secret struct {
	inner string
}

// NewSecret wraps s as secret material.
func NewSecret(s string) Secret {
	return Secret{inner: s}
}

// Unwrap returns the underlying secret string.
func (s Secret) Unwrap() string {
	return s.inner
}

// String implements fmt.Stringer with a mask.
func (s Secret) String() string {
	return Masked
}

// MarshalYAML masks the secret when serialized into error snippets.
func (s Secret) MarshalYAML() (any, error) {
	return Masked, nil
}

// GoString masks the secret in %#v output.
func (s Secret) GoString() string {
	return Masked
}
