package builtins

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/extension"
	"github.com/vk/scenargo/internal/schema"
)

func contentTypes() []extension.ContentType {
	return []extension.ContentType{
		jsonContent, yamlContent, cborContent, textContent, binaryContent,
	}
}

// sourceBytes accepts both text and binary sources for decoders.
func sourceBytes(source any) ([]byte, error) {
	switch s := source.(type) {
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	default:
		return nil, dslerr.NewRuntime("content source must be string or bytes, got %T", source)
	}
}

type jsonEncodeParams struct {
	Indent int64 `mapstructure:"indent"`
}

var jsonContent = extension.ContentType{
	Name: "json",
	Encoder: &extension.ContentEncoder{
		Params: schema.Schema{
			{Name: "indent", Attr: schema.Attribute{
				Type:        schema.Int,
				Title:       "Indentation width",
				Description: "Number of spaces per nesting level; zero emits compact output.",
			}},
		},
		Run: func(source any, params map[string]any) (any, error) {
			var p jsonEncodeParams
			if err := mapstructure.Decode(params, &p); err != nil {
				return nil, dslerr.NewRuntime("invalid json parameters: %v", err)
			}
			var data []byte
			var err error
			if p.Indent > 0 {
				data, err = json.MarshalIndent(source, "", strings.Repeat(" ", int(p.Indent)))
			} else {
				data, err = json.Marshal(source)
			}
			if err != nil {
				return nil, dslerr.NewRuntime("json encoding failed: %v", err)
			}
			return string(data), nil
		},
	},
	Decoder: &extension.ContentDecoder{
		Run: func(source any, _ map[string]any) (any, error) {
			data, err := sourceBytes(source)
			if err != nil {
				return nil, err
			}
			var out any
			if err := json.Unmarshal(data, &out); err != nil {
				return nil, dslerr.NewRuntime("json decoding failed: %v", err)
			}
			return out, nil
		},
	},
}

var yamlContent = extension.ContentType{
	Name: "yaml",
	Encoder: &extension.ContentEncoder{
		Run: func(source any, _ map[string]any) (any, error) {
			data, err := yaml.Marshal(source)
			if err != nil {
				return nil, dslerr.NewRuntime("yaml encoding failed: %v", err)
			}
			return string(data), nil
		},
	},
	Decoder: &extension.ContentDecoder{
		Run: func(source any, _ map[string]any) (any, error) {
			data, err := sourceBytes(source)
			if err != nil {
				return nil, err
			}
			var out any
			if err := yaml.Unmarshal(data, &out); err != nil {
				return nil, dslerr.NewRuntime("yaml decoding failed: %v", err)
			}
			return out, nil
		},
	},
}

var cborContent = extension.ContentType{
	Name: "cbor",
	Encoder: &extension.ContentEncoder{
		Run: func(source any, _ map[string]any) (any, error) {
			data, err := cbor.Marshal(source)
			if err != nil {
				return nil, dslerr.NewRuntime("cbor encoding failed: %v", err)
			}
			return data, nil
		},
	},
	Decoder: &extension.ContentDecoder{
		Run: func(source any, _ map[string]any) (any, error) {
			data, err := sourceBytes(source)
			if err != nil {
				return nil, err
			}
			var out any
			if err := cbor.Unmarshal(data, &out); err != nil {
				return nil, dslerr.NewRuntime("cbor decoding failed: %v", err)
			}
			return out, nil
		},
	},
}

// textContent turns raw bytes into a string; the lines transformer splits
// the decoded text into a sequence.
var textContent = extension.ContentType{
	Name: "text",
	Decoder: &extension.ContentDecoder{
		Run: func(source any, _ map[string]any) (any, error) {
			data, err := sourceBytes(source)
			if err != nil {
				return nil, err
			}
			return string(data), nil
		},
		Transformers: []extension.ContentTransformer{
			{
				Name: "lines",
				Field: schema.Attribute{
					Type:        schema.Bool,
					Title:       "Line splitting",
					Description: "If true, the decoded text is split into a sequence of lines.",
				},
				Run: func(source any, params map[string]any) (any, error) {
					if enabled, _ := params["lines"].(bool); !enabled {
						return source, nil
					}
					text, ok := source.(string)
					if !ok {
						return nil, dslerr.NewRuntime("lines transformer expects text, got %T", source)
					}
					split := strings.Split(strings.TrimRight(text, "\n"), "\n")
					out := make([]any, len(split))
					for i, line := range split {
						out[i] = line
					}
					return out, nil
				},
			},
		},
	},
}

// binaryContent passes raw bytes through; the gunzip transformer
// decompresses them.
var binaryContent = extension.ContentType{
	Name: "binary",
	Decoder: &extension.ContentDecoder{
		Run: func(source any, _ map[string]any) (any, error) {
			return sourceBytes(source)
		},
		Transformers: []extension.ContentTransformer{
			{
				Name: "gunzip",
				Field: schema.Attribute{
					Type:        schema.Bool,
					Title:       "Gzip decompression",
					Description: "If true, the decoded bytes are gunzipped.",
				},
				Run: func(source any, params map[string]any) (any, error) {
					if enabled, _ := params["gunzip"].(bool); !enabled {
						return source, nil
					}
					data, ok := source.([]byte)
					if !ok {
						return nil, dslerr.NewRuntime("gunzip transformer expects bytes, got %T", source)
					}
					reader, err := gzip.NewReader(bytes.NewReader(data))
					if err != nil {
						return nil, dslerr.NewRuntime("gunzip failed: %v", err)
					}
					defer reader.Close()
					out, err := io.ReadAll(reader)
					if err != nil {
						return nil, dslerr.NewRuntime("gunzip failed: %v", err)
					}
					return out, nil
				},
			},
		},
	},
}
