package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scenargo/internal/value"
)

func TestAttributeCompile(t *testing.T) {
	t.Run("carries metadata through", func(t *testing.T) {
		attr := Attribute{
			Type:        Int,
			Aliases:     []string{"alias"},
			Default:     int64(5),
			Title:       "Count",
			Description: "How many.",
			Examples:    []any{int64(1)},
		}
		spec, err := attr.Compile("count")
		require.NoError(t, err)
		assert.Equal(t, "count", spec.Name)
		assert.Equal(t, Int, spec.Kind)
		assert.Equal(t, []string{"count", "alias"}, spec.Names())
		assert.Equal(t, int64(5), spec.Default)
		assert.Equal(t, "Count", spec.Title)
	})

	t.Run("required and default are mutually exclusive", func(t *testing.T) {
		_, err := Attribute{Required: true, Default: "x"}.Compile("broken")
		assert.ErrorContains(t, err, "declares both a default value and a required constraint")
	})
}

func TestFieldSpecValidate(t *testing.T) {
	deferred := value.Deferred(func(value.Context) (any, error) { return nil, nil })

	cases := []struct {
		name  string
		kind  Kind
		value any
		ok    bool
	}{
		{"any accepts everything", Any, struct{}{}, true},
		{"nil is always accepted", String, nil, true},
		{"deferred is always accepted", Int, deferred, true},
		{"string accepts string", String, "x", true},
		{"string rejects int", String, int64(1), false},
		{"bytes accepts bytes", Bytes, []byte{1}, true},
		{"bool accepts bool", Bool, true, true},
		{"int accepts int64", Int, int64(1), true},
		{"int rejects float", Int, 1.5, false},
		{"float accepts float64", Float, 1.5, true},
		{"float accepts int64", Float, int64(1), true},
		{"time accepts time", Time, time.Now(), true},
		{"duration accepts duration", Duration, time.Second, true},
		{"list accepts sequence", List, []any{}, true},
		{"map accepts mapping", Map, map[string]any{}, true},
		{"map rejects sequence", Map, []any{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := Attribute{Type: tc.kind}.Compile("field")
			require.NoError(t, err)
			err = spec.Validate(tc.value)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSchemaCompile(t *testing.T) {
	t.Run("compiles in declaration order", func(t *testing.T) {
		s := Schema{
			{Name: "first", Attr: Attribute{Type: String}},
			{Name: "second", Attr: Attribute{Type: Int}},
		}
		specs, err := s.Compile(nil)
		require.NoError(t, err)
		require.Len(t, specs, 2)
		assert.Equal(t, "first", specs[0].Name)
		assert.Equal(t, "second", specs[1].Name)
	})

	t.Run("rejects reserved name collisions", func(t *testing.T) {
		s := Schema{{Name: "action", Attr: Attribute{}}}
		_, err := s.Compile(map[string]struct{}{"action": {}})
		assert.ErrorContains(t, err, `attribute "action" is not unique`)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		s := Schema{
			{Name: "field", Attr: Attribute{}},
			{Name: "field", Attr: Attribute{}},
		}
		_, err := s.Compile(nil)
		assert.Error(t, err)
	})

	t.Run("rejects alias colliding with earlier name", func(t *testing.T) {
		s := Schema{
			{Name: "field", Attr: Attribute{}},
			{Name: "other", Attr: Attribute{Aliases: []string{"field"}}},
		}
		_, err := s.Compile(nil)
		assert.ErrorContains(t, err, `alias "field"`)
	})

	t.Run("rejects name colliding with earlier alias", func(t *testing.T) {
		s := Schema{
			{Name: "field", Attr: Attribute{Aliases: []string{"other"}}},
			{Name: "other", Attr: Attribute{}},
		}
		_, err := s.Compile(nil)
		assert.Error(t, err)
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "any", Any.String())
	assert.Equal(t, "string", String.String())
	assert.Equal(t, "duration", Duration.String())
	assert.Equal(t, "map", Map.String())
}
