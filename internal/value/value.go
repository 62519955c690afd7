// Package value defines the runtime value model of the scenario DSL.
//
// A resolved value is one of: nil, string, []byte, bool, int64, float64,
// time.Time, time.Duration, Secret, []any of resolved values, or a
// map[string]any of resolved values. A deferred value additionally allows
// Deferred functions anywhere inside the structure; they are evaluated
// against a Context by Resolve before the value is consumed.
package value

import (
	"fmt"
	"reflect"
	"time"
)

// Context is the name-to-value environment deferred values resolve against.
// A nil Context behaves as an empty one. Contexts are treated as
// immutable-by-convention: per-step views are created with Clone rather
// than mutated in place.
type Context map[string]any

// Deferred is a value that requires evaluation against a context before
// use. Resolution is eager and deep: the returned value is resolved again,
// so a Deferred may itself return further deferred structures.
type Deferred func(ctx Context) (any, error)

// UnsupportedTypeError reports a value that cannot be represented in the
// DSL value model.
type UnsupportedTypeError struct {
	Value any
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("value of type %T is not a supported scenario value", e.Value)
}

// KeyError reports a mapping whose key is not a string.
type KeyError struct {
	Key any
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("cannot use %v (%T) as a mapping key", e.Key, e.Key)
}

// Resolve recursively normalizes v into a fully resolved value, evaluating
// any Deferred functions against c. Integer kinds widen to int64 and float
// kinds to float64 so that downstream comparisons see one canonical
// representation.
func (c Context) Resolve(v any) (any, error) {
	return resolve(v, c)
}

// Resolve normalizes v against ctx. A nil context is treated as empty.
func Resolve(v any, ctx Context) (any, error) {
	return resolve(v, ctx)
}

func resolve(v any, ctx Context) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string, bool, []byte, time.Time, time.Duration, Secret:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	case Deferred:
		out, err := t(ctx)
		if err != nil {
			return nil, err
		}
		return resolve(out, ctx)
	case func(Context) (any, error):
		return resolve(Deferred(t), ctx)
	case map[string]any:
		result := make(map[string]any, len(t))
		for key, item := range t {
			resolved, err := resolve(item, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = resolved
		}
		return result, nil
	case []any:
		result := make([]any, 0, len(t))
		for _, item := range t {
			resolved, err := resolve(item, ctx)
			if err != nil {
				return nil, err
			}
			result = append(result, resolved)
		}
		return result, nil
	}

	// Runner results may carry concrete container types such as
	// map[string]string or []int. Fold them into the canonical
	// map[string]any / []any shapes via reflection.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		result := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, ok := iter.Key().Interface().(string)
			if !ok {
				return nil, &KeyError{Key: iter.Key().Interface()}
			}
			resolved, err := resolve(iter.Value().Interface(), ctx)
			if err != nil {
				return nil, err
			}
			result[key] = resolved
		}
		return result, nil
	case reflect.Slice, reflect.Array:
		result := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			resolved, err := resolve(rv.Index(i).Interface(), ctx)
			if err != nil {
				return nil, err
			}
			result = append(result, resolved)
		}
		return result, nil
	case reflect.Func:
		return nil, &UnsupportedTypeError{Value: v}
	}

	return nil, &UnsupportedTypeError{Value: v}
}

// Clone deep-copies the context into an independent map. Scalar values are
// shared (they are immutable); containers are copied recursively so that a
// per-step local view never aliases the global accumulator.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for key, item := range c {
		out[key] = deepCopy(item)
	}
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, item := range t {
			out[key] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// Merge copies every entry of src into the context, overwriting existing
// keys. It returns the receiver for chaining.
func (c Context) Merge(src map[string]any) Context {
	for key, item := range src {
		c[key] = item
	}
	return c
}

// IsScalar reports whether v is a fully resolved atomic value (including
// nil). Containers and deferred functions are not scalars.
func IsScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, []byte, int64, float64, time.Time, time.Duration, Secret:
		return true
	}
	return false
}
