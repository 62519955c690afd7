package builtins

import (
	"reflect"
	"regexp"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/extension"
	"github.com/vk/scenargo/internal/schema"
)

func checkers() []extension.Checker {
	return []extension.Checker{
		matchChecker, notMatchChecker,
		ltChecker, lteChecker, gtChecker, gteChecker,
		regexChecker,
	}
}

// partialMatchParam is shared by the equality checkers.
var partialMatchParam = schema.Field{
	Name: "partial_match",
	Attr: schema.Attribute{
		Type:    schema.Bool,
		Aliases: []string{"partialMatch"},
		Default: false,
		Title:   "Partial comparison mode",
		Description: "If true, performs recursive partial matching " +
			"instead of strict equality comparison.",
	},
}

var matchChecker = extension.Checker{
	Name: "match",
	Field: schema.Attribute{
		Aliases:     []string{"eq", "equal"},
		Title:       "Expected value",
		Description: "Value that must match the actual result.",
	},
	Params: schema.Schema{partialMatchParam},
	Run: func(target any, params map[string]any) (bool, error) {
		if isPartial(params) {
			return partialMatch(target, params["match"]), nil
		}
		return exactMatch(target, params["match"]), nil
	},
}

var notMatchChecker = extension.Checker{
	Name: "not_match",
	Field: schema.Attribute{
		Aliases:     []string{"notMatch", "ne", "notEqual"},
		Title:       "Forbidden value",
		Description: "Value that must not match the actual result.",
	},
	Params: schema.Schema{partialMatchParam},
	Run: func(target any, params map[string]any) (bool, error) {
		if isPartial(params) {
			return !partialMatch(target, params["not_match"]), nil
		}
		return !exactMatch(target, params["not_match"]), nil
	},
}

var ltChecker = extension.Checker{
	Name: "less_than",
	Field: schema.Attribute{
		Aliases:     []string{"lt", "lessThan"},
		Title:       "Upper bound",
		Description: "Actual value must be less than this value.",
	},
	Run: func(target any, params map[string]any) (bool, error) {
		return compare(target, params["less_than"], false, false)
	},
}

var lteChecker = extension.Checker{
	Name: "less_than_or_equal",
	Field: schema.Attribute{
		Aliases:     []string{"lte", "lessThanOrEqual"},
		Title:       "Upper bound (inclusive)",
		Description: "Actual value must be less than or equal to this value.",
	},
	Run: func(target any, params map[string]any) (bool, error) {
		return compare(target, params["less_than_or_equal"], false, true)
	},
}

var gtChecker = extension.Checker{
	Name: "greater_than",
	Field: schema.Attribute{
		Aliases:     []string{"gt", "greaterThan"},
		Title:       "Lower bound",
		Description: "Actual value must be greater than this value.",
	},
	Run: func(target any, params map[string]any) (bool, error) {
		return compare(target, params["greater_than"], true, false)
	},
}

var gteChecker = extension.Checker{
	Name: "greater_than_or_equal",
	Field: schema.Attribute{
		Aliases:     []string{"gte", "greaterThanOrEqual"},
		Title:       "Lower bound (inclusive)",
		Description: "Actual value must be greater than or equal to this value.",
	},
	Run: func(target any, params map[string]any) (bool, error) {
		return compare(target, params["greater_than_or_equal"], true, true)
	},
}

// regexParams is decoded from the resolved check parameters.
type regexParams struct {
	Pattern    string `mapstructure:"regex"`
	IgnoreCase bool   `mapstructure:"ignore_case"`
	Multiline  bool   `mapstructure:"multiline"`
}

var regexChecker = extension.Checker{
	Name: "regex",
	Field: schema.Attribute{
		Type:        schema.String,
		Aliases:     []string{"reMatch", "regexMatch"},
		Title:       "Regex pattern",
		Description: "Actual value must match this pattern.",
	},
	Params: schema.Schema{
		{Name: "ignore_case", Attr: schema.Attribute{
			Type:        schema.Bool,
			Aliases:     []string{"ignoreCase"},
			Default:     false,
			Title:       "Ignore case mode",
			Description: "If true, performs case-insensitive matching.",
		}},
		{Name: "multiline", Attr: schema.Attribute{
			Type:        schema.Bool,
			Default:     false,
			Title:       "Multiline mode",
			Description: "If true, ^ and $ also match at line breaks.",
		}},
	},
	Run: func(target any, params map[string]any) (bool, error) {
		var p regexParams
		if err := mapstructure.Decode(params, &p); err != nil {
			return false, dslerr.NewRuntime("invalid regex parameters: %v", err)
		}
		if p.Pattern == "" {
			return false, nil
		}
		text, ok := target.(string)
		if !ok {
			return false, dslerr.NewRuntime("regex check expects a string target, got %T", target)
		}

		pattern := p.Pattern
		if p.IgnoreCase {
			pattern = "(?i)" + pattern
		}
		if p.Multiline {
			pattern = "(?m)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, dslerr.NewRuntime("invalid regex pattern %q: %v", p.Pattern, err)
		}
		return re.MatchString(text), nil
	},
}

func isPartial(params map[string]any) bool {
	partial, _ := params["partial_match"].(bool)
	return partial
}

// exactMatch requires identical runtime type and deep equality.
// Equal-looking values of different types never match.
func exactMatch(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if reflect.TypeOf(actual) != reflect.TypeOf(expected) {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// partialMatch relaxes equality on containers: a sequence matches when
// every expected element matches at least one actual element, a mapping
// matches when every expected key exists with a recursively matching
// value. Scalars fall back to exact matching.
func partialMatch(actual, expected any) bool {
	switch exp := expected.(type) {
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return false
		}
		for _, expItem := range exp {
			matched := false
			for _, actItem := range act {
				if partialMatch(actItem, expItem) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
		return true
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for key, expItem := range exp {
			actItem, present := act[key]
			if !present || !partialMatch(actItem, expItem) {
				return false
			}
		}
		return true
	default:
		return exactMatch(actual, expected)
	}
}

// compare implements the ordering checks. Nil is comparable only to nil
// and satisfies only the inclusive variants; mismatched types never
// compare; unordered types are a runtime error.
func compare(actual, expected any, swap, inclusive bool) (bool, error) {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil && inclusive, nil
	}
	if swap {
		actual, expected = expected, actual
	}

	switch a := actual.(type) {
	case int64:
		b, ok := expected.(int64)
		if !ok {
			return false, nil
		}
		return a < b || (inclusive && a == b), nil
	case float64:
		b, ok := expected.(float64)
		if !ok {
			return false, nil
		}
		return a < b || (inclusive && a == b), nil
	case string:
		b, ok := expected.(string)
		if !ok {
			return false, nil
		}
		return a < b || (inclusive && a == b), nil
	case time.Duration:
		b, ok := expected.(time.Duration)
		if !ok {
			return false, nil
		}
		return a < b || (inclusive && a == b), nil
	case time.Time:
		b, ok := expected.(time.Time)
		if !ok {
			return false, nil
		}
		return a.Before(b) || (inclusive && a.Equal(b)), nil
	}
	return false, dslerr.NewRuntime("values of type %T cannot be ordered", actual)
}
