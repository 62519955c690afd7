package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/extension"
)

func testConfig(path string) *Config {
	return &Config{
		ScenarioPath: path,
		LogFormat:    "text",
		LogLevel:     "error",
	}
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "case.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewConfig(t *testing.T) {
	t.Run("scenario path is required", func(t *testing.T) {
		_, err := NewConfig(Config{})
		assert.ErrorContains(t, err, "a scenario path is required")
	})

	t.Run("schema printing needs no path", func(t *testing.T) {
		config, err := NewConfig(Config{PrintSchema: true})
		require.NoError(t, err)
		assert.True(t, config.PrintSchema)
	})
}

func TestNew(t *testing.T) {
	t.Run("wires registry and parser", func(t *testing.T) {
		var out bytes.Buffer
		a, err := New(&out, testConfig("case.yaml"))
		require.NoError(t, err)
		assert.NotEmpty(t, a.Registry().Actions())
		assert.NotNil(t, a.Parser())
	})

	t.Run("loads extension bundles", func(t *testing.T) {
		var out bytes.Buffer
		bundle := extension.Bundle{
			Name:    "custom",
			Version: extension.BundleVersion,
			Actors: []extension.Actor{{
				Name: "probe",
				Run:  func(context.Context, map[string]any) (any, error) { return "ok", nil },
			}},
		}
		a, err := New(&out, testConfig("case.yaml"), bundle)
		require.NoError(t, err)

		var found bool
		for _, step := range a.Registry().Actions() {
			if step.Action == "custom.probe" {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("strict mode rejects malformed bundles", func(t *testing.T) {
		var out bytes.Buffer
		cfg := testConfig("case.yaml")
		cfg.Strict = true
		_, err := New(&out, cfg, extension.Bundle{Name: "custom", Version: 99})
		assert.ErrorContains(t, err, "failed to load bundle")
	})
}

func TestRunSchema(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig("")
	cfg.PrintSchema = true
	a, err := New(&out, cfg)
	require.NoError(t, err)

	require.NoError(t, a.Run(context.Background()))

	var root map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &root))
	assert.Contains(t, root, "$defs")
}

func TestRunScenario(t *testing.T) {
	t.Run("passing scenario", func(t *testing.T) {
		path := writeScenario(t, `
spec: case
vars:
  payload: hello
---
action: debug
data: !var payload
expect:
  - value: !var result
    match: hello
`)
		var out bytes.Buffer
		a, err := New(&out, testConfig(path))
		require.NoError(t, err)
		assert.NoError(t, a.Run(context.Background()))
	})

	t.Run("failed expectation surfaces as CheckFailed", func(t *testing.T) {
		path := writeScenario(t, `
action: debug
data: hello
expect:
  - value: !var result
    match: goodbye
`)
		var out bytes.Buffer
		a, err := New(&out, testConfig(path))
		require.NoError(t, err)

		err = a.Run(context.Background())
		var failed *dslerr.CheckFailed
		assert.ErrorAs(t, err, &failed)
	})

	t.Run("every matrix combination runs", func(t *testing.T) {
		path := writeScenario(t, `
spec: case
params:
  - name: word
    values: [a, b, c]
---
action: debug
data: !var params.word
expect:
  - value: !var result
    regex: "^[abc]$"
`)
		var out bytes.Buffer
		a, err := New(&out, testConfig(path))
		require.NoError(t, err)
		assert.NoError(t, a.Run(context.Background()))
	})

	t.Run("missing scenario file", func(t *testing.T) {
		var out bytes.Buffer
		a, err := New(&out, testConfig(filepath.Join(t.TempDir(), "absent.yaml")))
		require.NoError(t, err)
		assert.Error(t, a.Run(context.Background()))
	})
}
