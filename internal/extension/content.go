package extension

import (
	"fmt"

	"github.com/vk/scenargo/internal/schema"
)

// ContentEncoder describes how a value is serialized into an external
// representation.
type ContentEncoder struct {
	Params schema.Schema
	Run    ContentFunc
}

// ContentDecoder describes how encoded data is deserialized, with an
// optional set of transformers applied after decoding.
type ContentDecoder struct {
	Params       schema.Schema
	Run          ContentFunc
	Transformers []ContentTransformer
}

// ContentTransformer wraps a base decoder with an additional transformation
// step. Transformers always chain onto a base operation; they never replace
// it. Like checks, the discriminator field doubles as the transformer's
// primary input.
type ContentTransformer struct {
	Name   string
	Field  schema.Attribute
	Params schema.Schema
	Run    ContentFunc
}

// ContentType groups encoder and decoder definitions under one format name.
type ContentType struct {
	Name    string
	Encoder *ContentEncoder
	Decoder *ContentDecoder
}

// ContentOp is a compiled content operation variant: a format
// discriminator, compiled fields, and the bound (possibly composed)
// behavior function. Decoder variants produced from transformers carry the
// transformer's discriminator in Selector.
type ContentOp struct {
	Format string

	// Selector is the transformer discriminator field, or nil for the base
	// operation. A document entry selects a transformer variant by carrying
	// this field alongside format.
	Selector *schema.FieldSpec

	Fields []*schema.FieldSpec
	Run    ContentFunc

	fieldIndex map[string]*schema.FieldSpec
}

// Field returns the parameter field spec matching a name or alias, or nil.
func (op *ContentOp) Field(name string) *schema.FieldSpec {
	return op.fieldIndex[name]
}

// CompileEncoder builds the encoder variant for this content type, or nil
// when no encoder is declared.
func (ct ContentType) CompileEncoder() (*ContentOp, error) {
	if ct.Encoder == nil {
		return nil, nil
	}
	if !namePattern.MatchString(ct.Name) {
		return nil, fmt.Errorf("invalid content type name %q", ct.Name)
	}
	if ct.Encoder.Run == nil {
		return nil, fmt.Errorf("encoder %q has no behavior function", ct.Name)
	}

	fields, err := ct.Encoder.Params.Compile(contentReserved())
	if err != nil {
		return nil, fmt.Errorf("encoder %q: %w", ct.Name, err)
	}

	return &ContentOp{
		Format:     ct.Name,
		Fields:     fields,
		Run:        ct.Encoder.Run,
		fieldIndex: indexFields(fields),
	}, nil
}

// CompileDecoder builds the decoder variants for this content type: the
// base operation first, then one chained variant per transformer. It
// returns nil when no decoder is declared.
func (ct ContentType) CompileDecoder() ([]*ContentOp, error) {
	if ct.Decoder == nil {
		return nil, nil
	}
	if !namePattern.MatchString(ct.Name) {
		return nil, fmt.Errorf("invalid content type name %q", ct.Name)
	}
	if ct.Decoder.Run == nil {
		return nil, fmt.Errorf("decoder %q has no behavior function", ct.Name)
	}

	baseFields, err := ct.Decoder.Params.Compile(contentReserved())
	if err != nil {
		return nil, fmt.Errorf("decoder %q: %w", ct.Name, err)
	}

	base := &ContentOp{
		Format:     ct.Name,
		Fields:     baseFields,
		Run:        ct.Decoder.Run,
		fieldIndex: indexFields(baseFields),
	}
	variants := []*ContentOp{base}

	// Transformer discriminators share one namespace across the decoder.
	taken := make(map[string]struct{})
	for _, tr := range ct.Decoder.Transformers {
		variant, err := tr.compile(ct.Name, base, taken)
		if err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

// compile builds a chained variant wrapping the base decoder. The composed
// behavior partitions incoming resolved parameters into transformer-owned
// (its discriminator plus its own parameter names) versus base-owned,
// invokes the base operation first, then feeds the result plus the
// transformer-owned parameters into the transformer function.
func (tr ContentTransformer) compile(format string, base *ContentOp, taken map[string]struct{}) (*ContentOp, error) {
	if !namePattern.MatchString(tr.Name) {
		return nil, fmt.Errorf("invalid transformer name %q for decoder %q", tr.Name, format)
	}
	if tr.Run == nil {
		return nil, fmt.Errorf("transformer %q.%q has no behavior function", format, tr.Name)
	}

	if _, exists := taken[tr.Name]; exists {
		return nil, fmt.Errorf("transformer %q.%q is not unique in schema", format, tr.Name)
	}
	for _, alias := range tr.Field.Aliases {
		if _, exists := taken[alias]; exists {
			return nil, fmt.Errorf("alias %q of transformer %q.%q is not unique in schema", alias, format, tr.Name)
		}
	}
	taken[tr.Name] = struct{}{}
	for _, alias := range tr.Field.Aliases {
		taken[alias] = struct{}{}
	}

	// Presence of the discriminator selects the variant, so it is required
	// by construction.
	attr := tr.Field
	attr.Required = true
	selector, err := attr.Compile(tr.Name)
	if err != nil {
		return nil, fmt.Errorf("transformer %q.%q: %w", format, tr.Name, err)
	}

	exclude := contentReserved()
	for _, field := range base.Fields {
		for _, name := range field.Names() {
			exclude[name] = struct{}{}
		}
	}
	for _, name := range selector.Names() {
		exclude[name] = struct{}{}
	}

	ownFields, err := tr.Params.Compile(exclude)
	if err != nil {
		return nil, fmt.Errorf("transformer %q.%q: %w", format, tr.Name, err)
	}

	owned := map[string]struct{}{tr.Name: {}}
	for _, field := range ownFields {
		owned[field.Name] = struct{}{}
	}

	run := func(source any, params map[string]any) (any, error) {
		trParams := make(map[string]any)
		baseParams := make(map[string]any)
		for key, item := range params {
			if _, mine := owned[key]; mine {
				trParams[key] = item
			} else {
				baseParams[key] = item
			}
		}
		decoded, err := base.Run(source, baseParams)
		if err != nil {
			return nil, err
		}
		return tr.Run(decoded, trParams)
	}

	fields := append([]*schema.FieldSpec{selector}, append(append([]*schema.FieldSpec(nil), base.Fields...), ownFields...)...)

	return &ContentOp{
		Format:     format,
		Selector:   selector,
		Fields:     fields,
		Run:        run,
		fieldIndex: indexFields(fields),
	}, nil
}
