package document

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/extension"
	"github.com/vk/scenargo/internal/lookup"
	"github.com/vk/scenargo/internal/value"
)

// nodeWalker converts one YAML document tree into the raw value shape the
// model validates. Custom tags construct deferred values in place; plain
// nodes decode to the canonical scalar and container types.
type nodeWalker struct {
	parser *Parser
	model  modelOps
	file   string
	dir    string
}

// modelOps is the slice of the model the walker needs for content tags.
type modelOps interface {
	EncodeOp(format string) (*extension.ContentOp, error)
	DecodeOp(format string, raw map[string]any) (*extension.ContentOp, error)
	BindContent(op *extension.ContentOp, raw map[string]any) (map[string]any, error)
}

func (w *nodeWalker) decode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return w.decode(node.Content[0])
	case yaml.AliasNode:
		return w.decode(node.Alias)
	}

	if isCustomTag(node.Tag) {
		return w.custom(node)
	}

	switch node.Kind {
	case yaml.ScalarNode:
		return w.scalar(node)
	case yaml.SequenceNode:
		return w.sequence(node)
	case yaml.MappingNode:
		return w.mapping(node)
	}
	return nil, tagError(node, "unsupported YAML node kind %d", node.Kind)
}

func isCustomTag(tag string) bool {
	return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!")
}

func (w *nodeWalker) scalar(node *yaml.Node) (any, error) {
	switch node.Tag {
	case "!!null", "":
		return nil, nil
	case "!!str":
		return node.Value, nil
	case "!!bool":
		var v bool
		if err := node.Decode(&v); err != nil {
			return nil, tagError(node, "invalid bool literal %q", node.Value)
		}
		return v, nil
	case "!!int":
		var v int64
		if err := node.Decode(&v); err != nil {
			return nil, tagError(node, "invalid int literal %q", node.Value)
		}
		return v, nil
	case "!!float":
		var v float64
		if err := node.Decode(&v); err != nil {
			return nil, tagError(node, "invalid float literal %q", node.Value)
		}
		return v, nil
	case "!!timestamp":
		var v time.Time
		if err := node.Decode(&v); err != nil {
			return nil, tagError(node, "invalid timestamp literal %q", node.Value)
		}
		return v, nil
	case "!!binary":
		// yaml.v3 refuses to decode !!binary directly into []byte; it
		// exposes the decoded base64 payload as a string.
		var v string
		if err := node.Decode(&v); err != nil {
			return nil, tagError(node, "invalid binary literal")
		}
		return []byte(v), nil
	default:
		return nil, tagError(node, "unsupported YAML tag %q", node.Tag)
	}
}

func (w *nodeWalker) sequence(node *yaml.Node) ([]any, error) {
	items := make([]any, 0, len(node.Content))
	for _, child := range node.Content {
		item, err := w.decode(child)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (w *nodeWalker) mapping(node *yaml.Node) (map[string]any, error) {
	out := make(map[string]any, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode || keyNode.Tag != "!!str" {
			return nil, tagError(keyNode, "mapping keys must be plain strings, got %q", keyNode.Tag)
		}
		key := keyNode.Value
		if _, dup := out[key]; dup {
			return nil, tagError(keyNode, "duplicate mapping key %q", key)
		}
		item, err := w.decode(valueNode)
		if err != nil {
			return nil, err
		}
		out[key] = item
	}
	return out, nil
}

// custom dispatches the DSL tag table, then the registered instruction
// tags.
func (w *nodeWalker) custom(node *yaml.Node) (any, error) {
	name := strings.TrimPrefix(node.Tag, "!")

	switch name {
	case "var":
		path, err := w.scalarValue(node)
		if err != nil {
			return nil, err
		}
		p, err := lookup.NewPath(path)
		if err != nil {
			return nil, locate(err, w.file, node)
		}
		return lookup.Defer(p), nil

	case "secret":
		path, err := w.scalarValue(node)
		if err != nil {
			return nil, err
		}
		s, err := lookup.NewSecret(path)
		if err != nil {
			return nil, locate(err, w.file, node)
		}
		return lookup.Defer(s), nil

	case "expr":
		if !w.parser.allowExpr {
			return nil, tagError(node, "expression tags are disabled")
		}
		source, err := w.scalarValue(node)
		if err != nil {
			return nil, err
		}
		expr, err := lookup.NewExpr(source)
		if err != nil {
			return nil, locate(err, w.file, node)
		}
		return lookup.Defer(expr), nil

	case "date":
		return w.scalarTag(node, parseDate)
	case "datetime":
		return w.scalarTag(node, parseDateTime)
	case "timedelta":
		return w.scalarTag(node, parseSeconds)
	case "duration":
		return w.scalarTag(node, parseDuration)
	case "base64":
		return w.scalarTag(node, parseBase64)
	case "binaryHex":
		return w.scalarTag(node, parseHex)

	case "textFile":
		data, err := w.readFile(node)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case "binaryFile":
		return w.readFile(node)

	case "decode":
		return w.contentOp(node, false)
	case "encode":
		return w.contentOp(node, true)
	}

	if tag := w.parser.tags[name]; tag != nil {
		return w.instruction(node, tag)
	}
	return nil, tagError(node, "unknown tag %q", node.Tag)
}

// scalarValue enforces the scalar shape common to most custom tags.
func (w *nodeWalker) scalarValue(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", tagError(node, "tag %q expects a scalar node", node.Tag)
	}
	return node.Value, nil
}

// scalarTag applies a literal converter to a scalar node.
func (w *nodeWalker) scalarTag(node *yaml.Node, convert func(string) (any, error)) (any, error) {
	raw, err := w.scalarValue(node)
	if err != nil {
		return nil, err
	}
	v, err := convert(raw)
	if err != nil {
		return nil, tagError(node, "tag %q: %v", node.Tag, err)
	}
	return v, nil
}

func (w *nodeWalker) instruction(node *yaml.Node, tag *extension.TagType) (any, error) {
	switch tag.Node {
	case extension.ScalarNode:
		if node.Kind != yaml.ScalarNode {
			return nil, tagError(node, "tag %q expects a scalar node", node.Tag)
		}
	case extension.MappingNode:
		if node.Kind != yaml.MappingNode {
			return nil, tagError(node, "tag %q expects a mapping node", node.Tag)
		}
	}
	v, err := tag.Construct(node)
	if err != nil {
		return nil, locate(tagError(node, "tag %q: %v", node.Tag, err), w.file, node)
	}
	return v, nil
}

// contentOp builds a deferred content operation from a !decode or !encode
// mapping. The format discriminator must be concrete at parse time; the
// source and the parameters may stay deferred until the step resolves.
func (w *nodeWalker) contentOp(node *yaml.Node, encode bool) (any, error) {
	if node.Kind != yaml.MappingNode {
		return nil, tagError(node, "tag %q expects a mapping node", node.Tag)
	}
	raw, err := w.mapping(node)
	if err != nil {
		return nil, err
	}

	format, ok := raw["format"].(string)
	if !ok || format == "" {
		return nil, tagError(node, "tag %q needs a concrete string format", node.Tag)
	}
	source, present := raw["source"]
	if !present {
		return nil, tagError(node, "tag %q needs a source", node.Tag)
	}

	var op *extension.ContentOp
	if encode {
		op, err = w.model.EncodeOp(format)
	} else {
		op, err = w.model.DecodeOp(format, raw)
	}
	if err != nil {
		return nil, locate(err, w.file, node)
	}
	params, err := w.model.BindContent(op, raw)
	if err != nil {
		return nil, locate(err, w.file, node)
	}

	deferred := func(ctx value.Context) (any, error) {
		resolvedSource, err := ctx.Resolve(source)
		if err != nil {
			return nil, err
		}
		resolvedParams, err := ctx.Resolve(params)
		if err != nil {
			return nil, err
		}
		opParams, _ := resolvedParams.(map[string]any)
		out, err := op.Run(resolvedSource, opParams)
		if err != nil {
			return nil, &dslerr.RuntimeError{
				Msg: fmt.Sprintf("content operation failed for format %q: %v", format, err),
				Loc: dslerr.NoLocation(),
				Err: err,
			}
		}
		return out, nil
	}
	return value.Deferred(deferred), nil
}
