package dslerr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scenargo/internal/value"
)

func TestSchemaError(t *testing.T) {
	t.Run("formats message and location", func(t *testing.T) {
		err := &SchemaError{
			Msg: `unknown field "bogus"`,
			Loc: At("case.yaml", 12, 3),
		}
		msg := err.Error()
		assert.Contains(t, msg, `unknown field "bogus"`)
		assert.Contains(t, msg, `in "case.yaml", line 12, column 3`)
	})

	t.Run("missing file renders as stream", func(t *testing.T) {
		err := NewSchema("broken")
		assert.Contains(t, err.Error(), `in "<stream>"`)
	})

	t.Run("unwraps the cause", func(t *testing.T) {
		cause := errors.New("cause")
		err := &SchemaError{Msg: "outer", Loc: NoLocation(), Err: cause}
		assert.ErrorIs(t, err, cause)
	})
}

func TestRuntimeError(t *testing.T) {
	t.Run("formats coordinates and snapshots", func(t *testing.T) {
		err := &RuntimeError{
			Msg:     "deliberate failure",
			Loc:     AtStep("case.yaml", 2, -1),
			Element: map[string]any{"action": "explode"},
			Context: map[string]any{"count": int64(3)},
		}
		msg := err.Error()
		assert.Contains(t, msg, "runtime error")
		assert.Contains(t, msg, "deliberate failure")
		assert.Contains(t, msg, "on step 2")
		assert.NotContains(t, msg, "check")
		assert.Contains(t, msg, "action: explode")
		assert.Contains(t, msg, "count: 3")
	})

	t.Run("secrets stay masked in snapshots", func(t *testing.T) {
		err := &RuntimeError{
			Msg:     "boom",
			Loc:     AtStep("case.yaml", 1, -1),
			Context: map[string]any{"token": value.NewSecret("hunter2")},
		}
		msg := err.Error()
		assert.NotContains(t, msg, "hunter2")
		assert.Contains(t, msg, value.Masked)
	})
}

func TestCheckFailed(t *testing.T) {
	err := &CheckFailed{
		Title:   "status is ok",
		Loc:     Location{File: "case.yaml", Step: 1, Check: 0},
		Element: map[string]any{"match": int64(200)},
	}
	msg := err.Error()
	assert.Contains(t, msg, "expectation failed: status is ok")
	assert.Contains(t, msg, "on step 1, check 0")
}

func TestConflictError(t *testing.T) {
	withBundle := &ConflictError{Kind: "actor", Name: "empty", Bundle: "custom"}
	assert.Contains(t, withBundle.Error(), `actor "empty" from bundle "custom"`)

	bare := &ConflictError{Kind: "checker", Name: "match"}
	assert.Contains(t, bare.Error(), `checker "match" is shadowing`)
}

func TestBuildError(t *testing.T) {
	cause := errors.New("cause")
	err := &BuildError{Msg: "invalid actor definition", Err: cause}
	assert.Contains(t, err.Error(), "model build failed: invalid actor definition")
	assert.ErrorIs(t, err, cause)
}

func TestSanitize(t *testing.T) {
	deferred := value.Deferred(func(value.Context) (any, error) { return nil, nil })
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	out := Sanitize(map[string]any{
		"text":     "plain",
		"secret":   value.NewSecret("hunter2"),
		"deferred": deferred,
		"when":     now,
		"raw":      []byte("bytes"),
		"nested":   []any{int64(1), value.NewSecret("x")},
	})

	require.IsType(t, map[string]any{}, out)
	m := out.(map[string]any)
	assert.Equal(t, "plain", m["text"])
	assert.Equal(t, value.Masked, m["secret"])
	assert.Equal(t, replacer, m["deferred"])
	assert.Equal(t, "2026-08-23T10:00:00Z", m["when"])
	assert.Equal(t, "bytes", m["raw"])
	assert.Equal(t, []any{int64(1), value.Masked}, m["nested"])
}
