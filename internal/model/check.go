package model

import (
	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/extension"
)

// Check is a validated expectation instance. The discriminator field that
// selected the checker carries the expected value; the reserved value field
// carries the target the check runs against.
type Check struct {
	Type *extension.CheckType

	Title       string
	Description string

	// Target is the raw (usually deferred) value under check.
	Target any

	// Value is the raw (possibly deferred) discriminator field value, the
	// expectation the target is compared with.
	Value any

	// Fields maps canonical parameter names to raw values.
	Fields map[string]any

	// Raw is the original expectation entry, kept for error snapshots.
	Raw map[string]any
}

func (m *Model) buildCheck(entry any) (*Check, error) {
	raw, ok := entry.(map[string]any)
	if !ok {
		err := dslerr.NewSchema("expectation must be a mapping, got %T", entry)
		err.Element = entry
		return nil, err
	}

	// Exactly one key may match a check discriminator. Two matches are
	// ambiguous even when they are aliases of the same checker.
	var checkType *extension.CheckType
	var discriminator string
	for key := range raw {
		t := m.CheckType(key)
		if t == nil {
			continue
		}
		if checkType != nil {
			return nil, element(dslerr.NewSchema("expectation selects more than one check (%q and %q)", discriminator, key), raw)
		}
		checkType, discriminator = t, key
	}
	if checkType == nil {
		return nil, element(dslerr.NewSchema("expectation does not match any registered check"), raw)
	}

	target, present := raw["value"]
	if !present {
		return nil, element(dslerr.NewSchema("expectation has no value to check"), raw)
	}

	check := &Check{
		Type:   checkType,
		Target: target,
		Value:  raw[discriminator],
		Raw:    raw,
	}

	var err error
	if check.Title, err = optionalString(raw, "title"); err != nil {
		return nil, element(err, raw)
	}
	if check.Description, err = optionalString(raw, "description"); err != nil {
		return nil, element(err, raw)
	}
	if err := checkType.Value.Validate(check.Value); err != nil {
		return nil, element(&dslerr.SchemaError{Msg: err.Error(), Loc: dslerr.NoLocation(), Err: err}, raw)
	}

	skip := map[string]struct{}{"title": {}, "description": {}, "value": {}}
	for _, name := range checkType.Value.Names() {
		skip[name] = struct{}{}
	}
	if check.Fields, err = bindFields(raw, skip, checkType.Fields, checkType.Field); err != nil {
		return nil, element(err, raw)
	}
	return check, nil
}
