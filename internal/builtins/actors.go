package builtins

import (
	"context"

	"github.com/vk/scenargo/internal/ctxlog"
	"github.com/vk/scenargo/internal/extension"
	"github.com/vk/scenargo/internal/schema"
)

func actors() []extension.Actor {
	return []extension.Actor{noop, debug}
}

// noop is a logic-neutral placeholder step: it performs no processing and
// always produces nil. Useful for intermediate variable shuffling where the
// syntax requires an action, or as a stand-in for future logic.
var noop = extension.Actor{
	Name: "empty",
	Run: func(context.Context, map[string]any) (any, error) {
		return nil, nil
	},
}

// debug logs its resolved data parameter and passes it through as the step
// result, so scenarios can inspect intermediate values without changing
// control flow.
var debug = extension.Actor{
	Name: "debug",
	Params: schema.Schema{
		{Name: "data", Attr: schema.Attribute{
			Type:        schema.Any,
			Title:       "Debug payload",
			Description: "Value to log and pass through as the step result.",
		}},
	},
	Run: func(ctx context.Context, params map[string]any) (any, error) {
		data := params["data"]
		ctxlog.FromContext(ctx).Info("Debug step.", "data", data)
		return data, nil
	},
}
