package dslerr

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vk/scenargo/internal/value"
)

const (
	indent        = "    "
	snippetIndent = indent + indent

	// replacer stands in for values that cannot be serialized safely:
	// deferred functions, behavior pointers, and anything else that is not
	// a plain DSL value.
	replacer = "<runtime value>"
)

// writeSnippet renders a YAML illustration of the failing element and, when
// available, the local context at failure time. Both are sanitized first:
// secrets are masked and non-value objects replaced with a placeholder.
func writeSnippet(b *strings.Builder, element any, context map[string]any) {
	if element == nil && context == nil {
		return
	}
	b.WriteString(snippetIndent + " ...\n")
	if context != nil {
		writeYAML(b, map[string]any{"context": Sanitize(context)})
		b.WriteString(snippetIndent + " ---\n")
	}
	if element != nil {
		writeYAML(b, Sanitize(element))
	}
}

func writeYAML(b *strings.Builder, v any) {
	out, err := yaml.Marshal(v)
	if err != nil {
		b.WriteString(snippetIndent + replacer + "\n")
		return
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(snippetIndent + line + "\n")
	}
}

// Sanitize recursively replaces anything that is not a plain resolved value
// with a placeholder and masks secrets, producing a structure that is safe
// to serialize into an error message.
func Sanitize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int64, float64, int, time.Duration:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case []byte:
		return string(t)
	case value.Secret:
		return value.Masked
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, item := range t {
			out[key] = Sanitize(item)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, Sanitize(item))
		}
		return out
	default:
		return replacer
	}
}
