package model

import (
	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/extension"
)

// stepReserved are the bookkeeping keys of every step entry; everything
// else must match the variant's parameter fields.
var stepReserved = map[string]struct{}{
	"action":      {},
	"title":       {},
	"description": {},
	"vars":        {},
	"expect":      {},
	"output":      {},
	"export":      {},
}

// Step is a validated step instance: the selected variant, its raw
// (possibly deferred) parameter values under canonical names, and the
// bookkeeping the engine needs to run it.
type Step struct {
	Type *extension.StepType

	Action      string
	Title       string
	Description string

	// Vars are step-local definitions resolved into a private view before
	// the step's own fields resolve.
	Vars map[string]any

	// Fields maps canonical parameter names to raw values.
	Fields map[string]any

	// Output is the context key the step result is stored under.
	Output string

	// Export maps global context keys to raw values resolved against the
	// step's locals after the result merge.
	Export map[string]any

	Checks []*Check

	// Include marks the built-in include variant; the engine runs the
	// referenced template as a sub-plan instead of calling Type.Run.
	Include bool

	// Raw is the original document entry, kept for error snapshots.
	Raw map[string]any
}

func (m *Model) buildStep(raw map[string]any) (*Step, error) {
	action, err := optionalString(raw, "action")
	if err != nil {
		return nil, element(err, raw)
	}
	if action == "" {
		return nil, element(dslerr.NewSchema("step has no action"), raw)
	}

	stepType := m.StepType(action)
	if stepType == nil {
		return nil, element(dslerr.NewSchema("unknown action %q", action), raw)
	}

	step := &Step{
		Type:    stepType,
		Action:  action,
		Output:  DefaultOutput,
		Include: action == IncludeAction,
		Raw:     raw,
	}

	if step.Title, err = optionalString(raw, "title"); err != nil {
		return nil, element(err, raw)
	}
	if step.Description, err = optionalString(raw, "description"); err != nil {
		return nil, element(err, raw)
	}
	if step.Vars, err = optionalMapping(raw, "vars"); err != nil {
		return nil, element(err, raw)
	}
	if step.Export, err = optionalMapping(raw, "export"); err != nil {
		return nil, element(err, raw)
	}

	if output, present := raw["output"]; present {
		name, ok := output.(string)
		if !ok || name == "" {
			return nil, element(dslerr.NewSchema("field \"output\" expects a non-empty string, got %v", output), raw)
		}
		step.Output = name
	}

	if expect, present := raw["expect"]; present {
		if !m.HasChecks() {
			return nil, element(dslerr.NewSchema("step declares expectations but no checks are registered"), raw)
		}
		entries, ok := expect.([]any)
		if !ok {
			return nil, element(dslerr.NewSchema("field \"expect\" expects a sequence, got %T", expect), raw)
		}
		for _, entry := range entries {
			check, err := m.buildCheck(entry)
			if err != nil {
				return nil, err
			}
			step.Checks = append(step.Checks, check)
		}
	}

	step.Fields, err = bindFields(raw, stepReserved, stepType.Fields, stepType.Field)
	if err != nil {
		return nil, element(err, raw)
	}
	return step, nil
}
