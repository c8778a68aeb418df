// Package context reads the deployment context: the nested key/value document
// describing which pipelines to declare and how.
package context

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Context is a loosely typed configuration bag.
// Nested documents are Context values as well.
type Context map[string]any

// Entry is a named nested context.
type Entry struct {
	ID      string
	Context Context
}

// Sub returns the nested context stored under key.
func (c Context) Sub(key string) (Context, error) {
	v, ok := c[key]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' not found", ErrInvalidKey, key)
	}

	sub, ok := asContext(v)
	if !ok {
		return nil, NewErrInvalidValue(key, "table", v)
	}

	return sub, nil
}

// Lookup returns the nested context stored under key and whether the key is set.
func (c Context) Lookup(key string) (Context, bool, error) {
	if _, ok := c[key]; !ok {
		return nil, false, nil
	}
	sub, err := c.Sub(key)
	if err != nil {
		return nil, true, err
	}
	return sub, true, nil
}

// Entries returns the nested contexts of the table stored under key, sorted by id.
// A missing key has no entries.
func (c Context) Entries(key string) ([]Entry, error) {
	v, ok := c[key]
	if !ok {
		return nil, nil
	}

	table, ok := asContext(v)
	if !ok {
		return nil, NewErrInvalidValue(key, "table", v)
	}

	entries := make([]Entry, 0, len(table))
	for id, raw := range table {
		sub, ok := asContext(raw)
		if !ok {
			return nil, NewErrInvalidValue(key+"."+id, "table", raw)
		}
		entries = append(entries, Entry{ID: id, Context: sub})
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return entries, nil
}

// Get returns the value at a dotted path.
func (c Context) Get(path string) (any, bool) {
	keys := strings.Split(path, ".")
	cur := c
	for i, k := range keys {
		v, ok := cur[k]
		if !ok {
			return nil, false
		}
		if i == len(keys)-1 {
			return v, true
		}
		if cur, ok = asContext(v); !ok {
			return nil, false
		}
	}
	return nil, false
}

// Set stores raw at a dotted path, e.g. SitePipeline.enableTest, creating intermediate tables.
// Raw values that are valid JSON are decoded, anything else is kept as a string. Keys the
// schema types as strings keep raw as is unless it is a quoted JSON string.
func (c Context) Set(path string, raw string) error {
	keys := strings.Split(strings.TrimSpace(path), ".")
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: empty segment in '%s'", ErrInvalidKey, path)
		}
	}

	var value any = raw
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		if _, isString := decoded.(string); isString || schemaType(keys) != "string" {
			value = normalize(decoded)
		}
	}

	cur := c
	for i, k := range keys[:len(keys)-1] {
		next, ok := cur[k]
		if !ok {
			sub := map[string]any{}
			cur[k] = sub
			cur = sub
			continue
		}

		sub, ok := asContext(next)
		if !ok {
			return NewErrInvalidValue(strings.Join(keys[:i+1], "."), "table", next)
		}
		cur = sub
	}
	cur[keys[len(keys)-1]] = value

	return nil
}

// Clone returns a deep copy of c.
func (c Context) Clone() Context {
	return normalize(map[string]any(c)).(map[string]any)
}

// String returns the string stored under key, empty when the key is not set.
func (c Context) String(key string) (string, error) {
	return c.stringValue(key)
}

func (c Context) stringValue(key string) (string, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return "", nil
	}

	s, ok := v.(string)
	if !ok {
		return "", NewErrInvalidValue(key, "string", v)
	}

	return s, nil
}

func (c Context) boolValue(key string) (bool, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return false, nil
	}

	b, ok := v.(bool)
	if !ok {
		return false, NewErrInvalidValue(key, "boolean", v)
	}

	return b, nil
}

func (c Context) intValue(key string, def int) (int, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}

	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	}

	return 0, NewErrInvalidValue(key, "whole number", v)
}

func asContext(v any) (Context, bool) {
	switch m := v.(type) {
	case Context:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

// normalize converts decoded documents to a common shape: tables become map[string]any,
// arrays []any and whole numbers int64, whichever decoder produced them.
func normalize(v any) any {
	switch t := v.(type) {
	case Context:
		return normalize(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int:
		return int64(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < math.MaxInt64 {
			return int64(t)
		}
		return t
	}
	return v
}
