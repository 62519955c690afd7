package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vk/scenargo/internal/schema"
)

func passAction(context.Context, map[string]any) (any, error) { return nil, nil }
func passCheck(any, map[string]any) (bool, error)             { return true, nil }
func passContent(source any, _ map[string]any) (any, error)   { return source, nil }

func TestActorCompile(t *testing.T) {
	t.Run("compiles with namespace prefix", func(t *testing.T) {
		actor := Actor{
			Name: "request",
			Params: schema.Schema{
				{Name: "url", Attr: schema.Attribute{Type: schema.String, Required: true, Aliases: []string{"endpoint"}}},
			},
			Run: passAction,
		}
		step, err := actor.Compile("http")
		require.NoError(t, err)
		assert.Equal(t, "http.request", step.Action)
		assert.Same(t, step.Field("url"), step.Field("endpoint"))
		assert.Nil(t, step.Field("unknown"))
	})

	t.Run("empty namespace keeps the bare name", func(t *testing.T) {
		step, err := Actor{Name: "empty", Run: passAction}.Compile("")
		require.NoError(t, err)
		assert.Equal(t, "empty", step.Action)
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		_, err := Actor{Name: "1bad", Run: passAction}.Compile("")
		assert.ErrorContains(t, err, "invalid action name")
	})

	t.Run("rejects missing behavior", func(t *testing.T) {
		_, err := Actor{Name: "hollow"}.Compile("")
		assert.ErrorContains(t, err, "no behavior function")
	})

	t.Run("rejects parameters shadowing reserved step fields", func(t *testing.T) {
		actor := Actor{
			Name:   "clash",
			Params: schema.Schema{{Name: "output", Attr: schema.Attribute{}}},
			Run:    passAction,
		}
		_, err := actor.Compile("")
		assert.ErrorContains(t, err, "not unique")
	})

	t.Run("rejects parameters shadowing the action name", func(t *testing.T) {
		actor := Actor{
			Name:   "clash",
			Params: schema.Schema{{Name: "clash", Attr: schema.Attribute{}}},
			Run:    passAction,
		}
		_, err := actor.Compile("")
		assert.Error(t, err)
	})
}

func TestCheckerCompile(t *testing.T) {
	t.Run("discriminator is required by construction", func(t *testing.T) {
		check, err := Checker{
			Name:  "match",
			Field: schema.Attribute{Aliases: []string{"eq"}},
			Run:   passCheck,
		}.Compile()
		require.NoError(t, err)
		assert.Equal(t, "match", check.Name)
		assert.True(t, check.Value.Required)
		assert.Equal(t, []string{"match", "eq"}, check.Value.Names())
	})

	t.Run("discriminator with a default is rejected", func(t *testing.T) {
		_, err := Checker{
			Name:  "match",
			Field: schema.Attribute{Default: "x"},
			Run:   passCheck,
		}.Compile()
		assert.Error(t, err)
	})

	t.Run("discriminator must not take a reserved field name", func(t *testing.T) {
		_, err := Checker{Name: "value", Run: passCheck}.Compile()
		assert.ErrorContains(t, err, `name "value" collides with a reserved check field`)

		_, err = Checker{
			Name:  "match",
			Field: schema.Attribute{Aliases: []string{"title"}},
			Run:   passCheck,
		}.Compile()
		assert.ErrorContains(t, err, `name "title" collides with a reserved check field`)
	})

	t.Run("parameters must not shadow the discriminator or reserved fields", func(t *testing.T) {
		_, err := Checker{
			Name:   "match",
			Field:  schema.Attribute{Aliases: []string{"eq"}},
			Params: schema.Schema{{Name: "eq", Attr: schema.Attribute{}}},
			Run:    passCheck,
		}.Compile()
		assert.Error(t, err)

		_, err = Checker{
			Name:   "match",
			Params: schema.Schema{{Name: "value", Attr: schema.Attribute{}}},
			Run:    passCheck,
		}.Compile()
		assert.Error(t, err)
	})
}

func TestContentTypeCompile(t *testing.T) {
	t.Run("absent operations compile to nil", func(t *testing.T) {
		enc, err := ContentType{Name: "raw"}.CompileEncoder()
		require.NoError(t, err)
		assert.Nil(t, enc)
		dec, err := ContentType{Name: "raw"}.CompileDecoder()
		require.NoError(t, err)
		assert.Nil(t, dec)
	})

	t.Run("decoder compiles base plus transformer variants", func(t *testing.T) {
		ct := ContentType{
			Name: "text",
			Decoder: &ContentDecoder{
				Run: passContent,
				Transformers: []ContentTransformer{
					{Name: "lines", Field: schema.Attribute{Type: schema.Bool}, Run: passContent},
				},
			},
		}
		variants, err := ct.CompileDecoder()
		require.NoError(t, err)
		require.Len(t, variants, 2)
		assert.Nil(t, variants[0].Selector)
		require.NotNil(t, variants[1].Selector)
		assert.Equal(t, "lines", variants[1].Selector.Name)
		assert.True(t, variants[1].Selector.Required)
	})

	t.Run("transformer variant partitions parameters", func(t *testing.T) {
		var baseSaw, trSaw map[string]any
		ct := ContentType{
			Name: "split",
			Decoder: &ContentDecoder{
				Params: schema.Schema{{Name: "base_opt", Attr: schema.Attribute{}}},
				Run: func(source any, params map[string]any) (any, error) {
					baseSaw = params
					return "decoded", nil
				},
				Transformers: []ContentTransformer{{
					Name:   "shape",
					Field:  schema.Attribute{Type: schema.String},
					Params: schema.Schema{{Name: "tr_opt", Attr: schema.Attribute{}}},
					Run: func(source any, params map[string]any) (any, error) {
						trSaw = params
						return source, nil
					},
				}},
			},
		}
		variants, err := ct.CompileDecoder()
		require.NoError(t, err)
		require.Len(t, variants, 2)

		out, err := variants[1].Run("src", map[string]any{
			"base_opt": "b", "shape": "wide", "tr_opt": "t",
		})
		require.NoError(t, err)
		assert.Equal(t, "decoded", out)
		assert.Equal(t, map[string]any{"base_opt": "b"}, baseSaw)
		assert.Equal(t, map[string]any{"shape": "wide", "tr_opt": "t"}, trSaw)
	})

	t.Run("duplicate transformer discriminators are rejected", func(t *testing.T) {
		ct := ContentType{
			Name: "text",
			Decoder: &ContentDecoder{
				Run: passContent,
				Transformers: []ContentTransformer{
					{Name: "lines", Field: schema.Attribute{}, Run: passContent},
					{Name: "lines", Field: schema.Attribute{}, Run: passContent},
				},
			},
		}
		_, err := ct.CompileDecoder()
		assert.ErrorContains(t, err, "not unique")
	})
}

func TestInstructionCompile(t *testing.T) {
	t.Run("valid instruction", func(t *testing.T) {
		tag, err := Instruction{Name: "uuid", Construct: func(*yaml.Node) (any, error) { return nil, nil }}.Compile()
		require.NoError(t, err)
		assert.Equal(t, "uuid", tag.Name)
	})

	t.Run("missing constructor", func(t *testing.T) {
		_, err := Instruction{Name: "uuid"}.Compile()
		assert.ErrorContains(t, err, "no constructor")
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := Instruction{Name: "!bad"}.Compile()
		assert.ErrorContains(t, err, "invalid instruction name")
	})
}

func TestBundleValidate(t *testing.T) {
	t.Run("valid bundle", func(t *testing.T) {
		assert.NoError(t, Bundle{Name: "custom", Version: BundleVersion}.Validate())
	})
	t.Run("invalid name", func(t *testing.T) {
		assert.Error(t, Bundle{Name: "", Version: BundleVersion}.Validate())
	})
	t.Run("wrong contract version", func(t *testing.T) {
		assert.ErrorContains(t, Bundle{Name: "custom", Version: 99}.Validate(), "unsupported contract version")
	})
}
