// Package jsonschema exports the compiled document model as a JSON Schema
// (draft 2020-12) document. The export is deterministic for a fixed
// registry: definition names derive from discriminators, arrays follow
// registration order, and object keys are emitted sorted.
package jsonschema

import (
	"encoding/json"
	"strings"

	"github.com/vk/scenargo/internal/extension"
	"github.com/vk/scenargo/internal/model"
	"github.com/vk/scenargo/internal/schema"
)

const dialect = "https://json-schema.org/draft/2020-12/schema"

// runtimeValue is the permissive fragment standing in for deferred values,
// which have no fixed static type.
func runtimeValue() map[string]any {
	return map[string]any{"description": "Runtime value"}
}

// Generate renders the interchange schema for the model's document union.
func Generate(m *model.Model) ([]byte, error) {
	defs := map[string]any{
		"Input":     inputSchema(),
		"Parameter": parameterSchema(),
		"Case":      caseSchema(),
		"Template":  templateSchema(),
	}

	stepRefs := make([]any, 0, len(m.Steps()))
	for _, step := range m.Steps() {
		name := "Step_" + defName(step.Action)
		defs[name] = stepSchema(step, m.HasChecks())
		stepRefs = append(stepRefs, ref(name))
	}
	defs["Step"] = map[string]any{"oneOf": stepRefs}

	if m.HasChecks() {
		checkRefs := make([]any, 0, len(m.Checks()))
		for _, check := range m.Checks() {
			name := "Check_" + defName(check.Name)
			defs[name] = checkSchema(check)
			checkRefs = append(checkRefs, ref(name))
		}
		defs["Check"] = map[string]any{"oneOf": checkRefs}
	}

	if encoders := m.Encoders(); len(encoders) > 0 {
		encodeRefs := make([]any, 0, len(encoders))
		for _, op := range encoders {
			name := "Encode_" + defName(op.Format)
			defs[name] = contentSchema(op)
			encodeRefs = append(encodeRefs, ref(name))
		}
		defs["Encode"] = map[string]any{"oneOf": encodeRefs}
	}
	if decoders := m.Decoders(); len(decoders) > 0 {
		decodeRefs := make([]any, 0)
		for _, variants := range decoders {
			for _, op := range variants {
				name := "Decode_" + defName(op.Format)
				if op.Selector != nil {
					name += "_" + defName(op.Selector.Name)
				}
				defs[name] = contentSchema(op)
				decodeRefs = append(decodeRefs, ref(name))
			}
		}
		defs["Decode"] = map[string]any{"oneOf": decodeRefs}
	}

	root := map[string]any{
		"$schema":     dialect,
		"title":       "scenargo",
		"description": "JSON Schema for scenargo scenario documents",
		"oneOf": []any{
			ref("Case"),
			ref("Template"),
			ref("Step"),
		},
		"$defs": defs,
	}
	return json.MarshalIndent(root, "", "    ")
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/$defs/" + name}
}

func defName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// kindSchema maps an attribute kind to its JSON Schema fragment.
func kindSchema(k schema.Kind) map[string]any {
	switch k {
	case schema.String:
		return map[string]any{"type": "string"}
	case schema.Bytes:
		return map[string]any{"type": "string", "contentEncoding": "base64"}
	case schema.Bool:
		return map[string]any{"type": "boolean"}
	case schema.Int:
		return map[string]any{"type": "integer"}
	case schema.Float:
		return map[string]any{"type": "number"}
	case schema.Time:
		return map[string]any{"type": "string", "format": "date-time"}
	case schema.Duration:
		return map[string]any{"type": "string"}
	case schema.List:
		return map[string]any{"type": "array"}
	case schema.Map:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{}
	}
}

// fieldSchema renders one compiled field. Every field also accepts a
// deferred value, so the kind constraint is advisory for tagged nodes.
func fieldSchema(spec *schema.FieldSpec) map[string]any {
	out := kindSchema(spec.Kind)
	if spec.Title != "" {
		out["title"] = spec.Title
	}
	if spec.Description != "" {
		out["description"] = spec.Description
	}
	if spec.Default != nil {
		out["default"] = spec.Default
	}
	if len(spec.Examples) > 0 {
		out["examples"] = spec.Examples
	}
	return out
}

// addFields writes a field and its aliases into a properties table and
// returns the requirement clause for required fields: a plain name when
// there are no aliases, a oneOf over the alternative names otherwise.
func addFields(properties map[string]any, specs []*schema.FieldSpec) []any {
	var requirements []any
	for _, spec := range specs {
		rendered := fieldSchema(spec)
		for _, name := range spec.Names() {
			properties[name] = rendered
		}
		if !spec.Required {
			continue
		}
		if len(spec.Aliases) == 0 {
			requirements = append(requirements, map[string]any{"required": []any{spec.Name}})
			continue
		}
		alternatives := make([]any, 0, len(spec.Aliases)+1)
		for _, name := range spec.Names() {
			alternatives = append(alternatives, map[string]any{"required": []any{name}})
		}
		requirements = append(requirements, map[string]any{"oneOf": alternatives})
	}
	return requirements
}

func stepSchema(step *extension.StepType, hasChecks bool) map[string]any {
	properties := map[string]any{
		"action":      map[string]any{"const": step.Action},
		"title":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"vars":        map[string]any{"type": "object"},
		"output":      map[string]any{"type": "string", "default": model.DefaultOutput},
		"export":      map[string]any{"type": "object"},
	}
	if hasChecks {
		properties["expect"] = map[string]any{
			"type":  "array",
			"items": ref("Check"),
		}
	}

	requirements := addFields(properties, step.Fields)

	out := map[string]any{
		"type":                 "object",
		"title":                step.Action,
		"properties":           properties,
		"required":             []any{"action"},
		"additionalProperties": false,
	}
	if len(requirements) > 0 {
		out["allOf"] = requirements
	}
	return out
}

func checkSchema(check *extension.CheckType) map[string]any {
	properties := map[string]any{
		"title":       map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"value":       runtimeValue(),
	}

	discriminator := fieldSchema(check.Value)
	for _, name := range check.Value.Names() {
		properties[name] = discriminator
	}

	requirements := addFields(properties, check.Fields)
	alternatives := make([]any, 0, len(check.Value.Aliases)+1)
	for _, name := range check.Value.Names() {
		alternatives = append(alternatives, map[string]any{"required": []any{name}})
	}
	requirements = append([]any{map[string]any{"oneOf": alternatives}}, requirements...)

	return map[string]any{
		"type":                 "object",
		"title":                check.Name,
		"properties":           properties,
		"required":             []any{"value"},
		"allOf":                requirements,
		"additionalProperties": false,
	}
}

func contentSchema(op *extension.ContentOp) map[string]any {
	properties := map[string]any{
		"format": map[string]any{"const": op.Format},
		"source": runtimeValue(),
	}
	requirements := addFields(properties, op.Fields)

	out := map[string]any{
		"type":                 "object",
		"title":                op.Format,
		"properties":           properties,
		"required":             []any{"format", "source"},
		"additionalProperties": false,
	}
	if len(requirements) > 0 {
		out["allOf"] = requirements
	}
	return out
}

func inputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":        map[string]any{"type": "string"},
			"type":        map[string]any{"type": "string"},
			"default":     map[string]any{},
			"required":    map[string]any{"type": "boolean", "default": false},
			"secret":      map[string]any{"type": "boolean", "default": false},
			"description": map[string]any{"type": "string"},
		},
		"required":             []any{"name"},
		"additionalProperties": false,
	}
}

func parameterSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":   map[string]any{"type": "string"},
			"values": map[string]any{"type": "array", "minItems": 1},
		},
		"required":             []any{"name", "values"},
		"additionalProperties": false,
	}
}

func caseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"spec":        map[string]any{"const": "case"},
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"vars":        map[string]any{"type": "object"},
			"envs":        map[string]any{"type": "array", "items": ref("Input")},
			"metadata":    map[string]any{"type": "object"},
			"params":      map[string]any{"type": "array", "items": ref("Parameter")},
		},
		"required":             []any{"spec"},
		"additionalProperties": false,
	}
}

func templateSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"spec":        map[string]any{"const": "template"},
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"vars":        map[string]any{"type": "object"},
			"envs":        map[string]any{"type": "array", "items": ref("Input")},
			"params":      map[string]any{"type": "array", "items": ref("Input")},
		},
		"required":             []any{"spec"},
		"additionalProperties": false,
	}
}
