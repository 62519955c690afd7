package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/extension"
	"github.com/vk/scenargo/internal/schema"
)

func testActor(name string) extension.Actor {
	return extension.Actor{
		Name: name,
		Run:  func(context.Context, map[string]any) (any, error) { return name, nil },
	}
}

func testChecker(name string) extension.Checker {
	return extension.Checker{
		Name:  name,
		Field: schema.Attribute{},
		Run:   func(any, map[string]any) (bool, error) { return true, nil },
	}
}

func TestAddActor(t *testing.T) {
	ctx := context.Background()

	t.Run("registers under the namespaced discriminator", func(t *testing.T) {
		reg := New(false)
		require.NoError(t, reg.AddActor(ctx, testActor("request"), "http"))
		actions := reg.Actions()
		require.Len(t, actions, 1)
		assert.Equal(t, "http.request", actions[0].Action)
	})

	t.Run("compile failures become build errors", func(t *testing.T) {
		reg := New(false)
		err := reg.AddActor(ctx, extension.Actor{Name: "hollow"}, "")
		var buildErr *dslerr.BuildError
		assert.ErrorAs(t, err, &buildErr)
	})
}

func TestShadowing(t *testing.T) {
	ctx := context.Background()

	t.Run("strict mode rejects shadowing", func(t *testing.T) {
		reg := New(true)
		require.NoError(t, reg.AddActor(ctx, testActor("empty"), ""))
		err := reg.AddActor(ctx, testActor("empty"), "")
		var conflict *dslerr.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "actor", conflict.Kind)
		assert.Equal(t, "empty", conflict.Name)
	})

	t.Run("lenient mode lets the newer registration win", func(t *testing.T) {
		reg := New(false)
		first := testActor("empty")
		require.NoError(t, reg.AddActor(ctx, first, ""))
		second := extension.Actor{
			Name: "empty",
			Run:  func(context.Context, map[string]any) (any, error) { return "replaced", nil },
		}
		require.NoError(t, reg.AddActor(ctx, second, ""))

		actions := reg.Actions()
		require.Len(t, actions, 1)
		out, err := actions[0].Run(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "replaced", out)
	})

	t.Run("shadowing keeps the original ordering position", func(t *testing.T) {
		reg := New(false)
		require.NoError(t, reg.AddActor(ctx, testActor("first"), ""))
		require.NoError(t, reg.AddActor(ctx, testActor("second"), ""))
		require.NoError(t, reg.AddActor(ctx, testActor("first"), ""))

		actions := reg.Actions()
		require.Len(t, actions, 2)
		assert.Equal(t, "first", actions[0].Action)
		assert.Equal(t, "second", actions[1].Action)
	})
}

func TestAddChecker(t *testing.T) {
	ctx := context.Background()
	reg := New(false)
	require.NoError(t, reg.AddChecker(ctx, testChecker("match"), ""))
	require.NoError(t, reg.AddChecker(ctx, testChecker("regex"), ""))

	checks := reg.Checks()
	require.Len(t, checks, 2)
	assert.Equal(t, "match", checks[0].Name)
	assert.Equal(t, "regex", checks[1].Name)
}

func TestAddContentType(t *testing.T) {
	ctx := context.Background()
	passthrough := func(source any, _ map[string]any) (any, error) { return source, nil }

	reg := New(false)
	require.NoError(t, reg.AddContentType(ctx, extension.ContentType{
		Name:    "text",
		Encoder: &extension.ContentEncoder{Run: passthrough},
		Decoder: &extension.ContentDecoder{
			Run: passthrough,
			Transformers: []extension.ContentTransformer{
				{Name: "lines", Field: schema.Attribute{Type: schema.Bool}, Run: passthrough},
			},
		},
	}, ""))

	encoders := reg.Encoders()
	require.Len(t, encoders, 1)
	assert.Equal(t, "text", encoders[0].Format)

	decoders := reg.Decoders()
	require.Len(t, decoders, 1)
	assert.Len(t, decoders[0], 2)
}

func TestAddBundle(t *testing.T) {
	ctx := context.Background()

	valid := extension.Bundle{
		Name:     "custom",
		Version:  extension.BundleVersion,
		Actors:   []extension.Actor{testActor("probe")},
		Checkers: []extension.Checker{testChecker("within")},
	}

	t.Run("loads every descriptor under the bundle namespace", func(t *testing.T) {
		reg := New(false)
		require.NoError(t, reg.AddBundle(ctx, valid))

		actions := reg.Actions()
		require.Len(t, actions, 1)
		assert.Equal(t, "custom.probe", actions[0].Action)
		assert.Len(t, reg.Checks(), 1)
	})

	t.Run("lenient mode skips malformed bundles", func(t *testing.T) {
		reg := New(false)
		require.NoError(t, reg.AddBundle(ctx, extension.Bundle{Name: "custom", Version: 99}))
		assert.Empty(t, reg.Actions())
	})

	t.Run("strict mode rejects malformed bundles", func(t *testing.T) {
		reg := New(true)
		err := reg.AddBundle(ctx, extension.Bundle{Name: "custom", Version: 99})
		var conflict *dslerr.ConflictError
		assert.ErrorAs(t, err, &conflict)
	})
}
