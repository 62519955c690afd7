package value

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScalars(t *testing.T) {
	ctx := Context{}

	t.Run("resolved scalars pass through", func(t *testing.T) {
		now := time.Now()
		for _, v := range []any{nil, "text", true, []byte("raw"), int64(7), 3.14, now, time.Second, NewSecret("s")} {
			out, err := ctx.Resolve(v)
			require.NoError(t, err)
			assert.Equal(t, v, out)
		}
	})

	t.Run("integer kinds widen to int64", func(t *testing.T) {
		for _, v := range []any{int(7), int8(7), int16(7), int32(7), uint(7), uint16(7), uint32(7), uint64(7)} {
			out, err := ctx.Resolve(v)
			require.NoError(t, err)
			assert.Equal(t, int64(7), out)
		}
	})

	t.Run("float kinds widen to float64", func(t *testing.T) {
		out, err := ctx.Resolve(float32(2))
		require.NoError(t, err)
		assert.Equal(t, float64(2), out)
	})
}

func TestResolveDeferred(t *testing.T) {
	t.Run("deferred evaluates against the context", func(t *testing.T) {
		ctx := Context{"name": "world"}
		d := Deferred(func(c Context) (any, error) {
			return c["name"], nil
		})
		out, err := ctx.Resolve(d)
		require.NoError(t, err)
		assert.Equal(t, "world", out)
	})

	t.Run("resolution is deep and repeated", func(t *testing.T) {
		inner := Deferred(func(Context) (any, error) { return 5, nil })
		outer := Deferred(func(Context) (any, error) {
			return map[string]any{"nested": inner}, nil
		})
		out, err := Context{}.Resolve(outer)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"nested": int64(5)}, out)
	})

	t.Run("resolving a resolved value is a no-op", func(t *testing.T) {
		ctx := Context{"n": int64(3)}
		in := map[string]any{
			"direct": Deferred(func(c Context) (any, error) { return c["n"], nil }),
			"nested": []any{Deferred(func(Context) (any, error) { return "leaf", nil })},
			"plain":  int64(1),
		}
		once, err := ctx.Resolve(in)
		require.NoError(t, err)
		twice, err := ctx.Resolve(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})

	t.Run("deferred errors propagate", func(t *testing.T) {
		boom := errors.New("boom")
		d := Deferred(func(Context) (any, error) { return nil, boom })
		_, err := Context{}.Resolve([]any{"ok", d})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("bare function type is adapted", func(t *testing.T) {
		f := func(Context) (any, error) { return "adapted", nil }
		out, err := Context{}.Resolve(f)
		require.NoError(t, err)
		assert.Equal(t, "adapted", out)
	})
}

func TestResolveContainers(t *testing.T) {
	t.Run("containers resolve recursively", func(t *testing.T) {
		ctx := Context{"n": int64(1)}
		in := map[string]any{
			"list": []any{1, Deferred(func(c Context) (any, error) { return c["n"], nil })},
		}
		out, err := ctx.Resolve(in)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"list": []any{int64(1), int64(1)}}, out)
	})

	t.Run("typed containers fold into canonical shapes", func(t *testing.T) {
		out, err := Context{}.Resolve(map[string]string{"a": "b"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": "b"}, out)

		out, err = Context{}.Resolve([]int{1, 2})
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), int64(2)}, out)
	})

	t.Run("non-string mapping keys are rejected", func(t *testing.T) {
		_, err := Context{}.Resolve(map[int]any{1: "x"})
		var keyErr *KeyError
		require.ErrorAs(t, err, &keyErr)
		assert.Equal(t, 1, keyErr.Key)
	})

	t.Run("unsupported types are rejected", func(t *testing.T) {
		_, err := Context{}.Resolve(struct{}{})
		var typeErr *UnsupportedTypeError
		assert.ErrorAs(t, err, &typeErr)
	})
}

func TestClone(t *testing.T) {
	original := Context{
		"mapping": map[string]any{"inner": []any{int64(1)}},
		"scalar":  "kept",
	}
	clone := original.Clone()

	clone["scalar"] = "changed"
	clone["mapping"].(map[string]any)["inner"].([]any)[0] = int64(99)

	assert.Equal(t, "kept", original["scalar"])
	assert.Equal(t, int64(1), original["mapping"].(map[string]any)["inner"].([]any)[0])
}

func TestMerge(t *testing.T) {
	ctx := Context{"a": int64(1), "b": int64(2)}
	ctx.Merge(map[string]any{"b": int64(20), "c": int64(3)})
	assert.Equal(t, Context{"a": int64(1), "b": int64(20), "c": int64(3)}, ctx)
}

func TestIsScalar(t *testing.T) {
	assert.True(t, IsScalar(nil))
	assert.True(t, IsScalar("s"))
	assert.True(t, IsScalar(int64(1)))
	assert.True(t, IsScalar(NewSecret("x")))
	assert.False(t, IsScalar([]any{}))
	assert.False(t, IsScalar(map[string]any{}))
	assert.False(t, IsScalar(Deferred(func(Context) (any, error) { return nil, nil })))
}

func TestSecretMasking(t *testing.T) {
	s := NewSecret("hunter2")
	assert.Equal(t, "hunter2", s.Unwrap())
	assert.Equal(t, Masked, s.String())
	assert.Equal(t, Masked, s.GoString())

	masked, err := s.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, Masked, masked)
}
