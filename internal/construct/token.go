package construct

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

const maxResolveDepth = 64

// Pseudo parameters.
const (
	AwsAccountID = "AWS::AccountId"
	AwsPartition = "AWS::Partition"
	AwsRegion    = "AWS::Region"
	AwsStackName = "AWS::StackName"
	AwsURLSuffix = "AWS::URLSuffix"
)

// Token is a value that is only known when its consuming stack is synthesized.
type Token interface {
	Resolve(rc *ResolveContext) (any, error)
}

// ResolveContext carries the stack whose template is being rendered.
type ResolveContext struct {
	stack *Stack
}

// NewResolveContext returns a context rendering values into the template of stack.
// A nil stack resolves every reference locally.
func NewResolveContext(stack *Stack) *ResolveContext {
	return &ResolveContext{stack: stack}
}

// Stack returns the consuming stack.
func (rc *ResolveContext) Stack() *Stack {
	if rc == nil {
		return nil
	}
	return rc.stack
}

// Resolve deeply resolves tokens within v.
// Maps and slices are copied, nil map values are dropped.
func Resolve(rc *ResolveContext, v any) (any, error) {
	return resolve(rc, v, 0)
}

func resolve(rc *ResolveContext, v any, depth int) (any, error) {
	if depth > maxResolveDepth {
		return nil, fmt.Errorf("%w: token nesting too deep", ErrUnresolvable)
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case Token:
		r, err := t.Resolve(rc)
		if err != nil {
			return nil, err
		}
		return resolve(rc, r, depth+1)
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return t, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			r, err := resolve(rc, val, depth+1)
			if err != nil {
				return nil, err
			}
			if r != nil {
				out[k] = r
			}
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			r, err := resolve(rc, val, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := range rv.Len() {
			r, err := resolve(rc, rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			r, err := resolve(rc, iter.Value().Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			if r != nil {
				out[iter.Key().String()] = r
			}
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return resolve(rc, rv.Elem().Interface(), depth+1)
	case reflect.String:
		return rv.String(), nil
	}

	return nil, fmt.Errorf("%w: unsupported value of type %T", ErrUnresolvable, v)
}

// intrinsic renders as a single-key map, e.g. {"Fn::GetAZs": ""}.
type intrinsic struct {
	name  string
	value any
}

func (i *intrinsic) Resolve(rc *ResolveContext) (any, error) {
	v, err := Resolve(rc, i.value)
	if err != nil {
		return nil, err
	}
	return map[string]any{i.name: v}, nil
}

// Pseudo returns a reference to a pseudo parameter such as AwsRegion.
func Pseudo(name string) Token {
	return &intrinsic{name: "Ref", value: name}
}

// GetAZs returns the availability zones of region; nil means the region of the stack.
func GetAZs(region any) Token {
	if region == nil {
		region = ""
	}
	return &intrinsic{name: "Fn::GetAZs", value: region}
}

// Select returns the element at index of list.
func Select(index int, list any) Token {
	return &intrinsic{name: "Fn::Select", value: []any{index, list}}
}

// ImportValue imports the value exported under name.
func ImportValue(name any) Token {
	return &intrinsic{name: "Fn::ImportValue", value: name}
}

// Split splits source by delimiter.
func Split(delimiter string, source any) Token {
	return &intrinsic{name: "Fn::Split", value: []any{delimiter, source}}
}

// Join concatenates parts with delimiter. Parts that resolve to plain strings are folded.
func Join(delimiter string, parts ...any) Token {
	return &join{delimiter: delimiter, parts: parts}
}

type join struct {
	delimiter string
	parts     []any
}

func (j *join) Resolve(rc *ResolveContext) (any, error) {
	var parts []any
	for _, p := range j.parts {
		r, err := Resolve(rc, p)
		if err != nil {
			return nil, err
		}
		if nested, ok := joinParts(r, j.delimiter); ok {
			parts = append(parts, nested...)
			continue
		}
		parts = append(parts, r)
	}

	if j.delimiter == "" {
		parts = mergeLiterals(parts)
	}

	literals := make([]string, 0, len(parts))
	for _, p := range parts {
		s, ok := literal(p)
		if !ok {
			return map[string]any{"Fn::Join": []any{j.delimiter, parts}}, nil
		}
		literals = append(literals, s)
	}
	return strings.Join(literals, j.delimiter), nil
}

// joinParts returns the parts of a rendered Fn::Join with the same delimiter.
func joinParts(v any, delimiter string) ([]any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, false
	}
	args, ok := m["Fn::Join"].([]any)
	if !ok || len(args) != 2 {
		return nil, false
	}
	if d, ok := args[0].(string); !ok || d != delimiter {
		return nil, false
	}
	parts, ok := args[1].([]any)
	return parts, ok
}

func mergeLiterals(parts []any) []any {
	merged := make([]any, 0, len(parts))
	for _, p := range parts {
		s, ok := literal(p)
		if ok && len(merged) > 0 {
			if prev, prevOK := merged[len(merged)-1].(string); prevOK {
				merged[len(merged)-1] = prev + s
				continue
			}
		}
		if ok {
			merged = append(merged, s)
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

func literal(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// Lazy defers producing a value until synthesis.
func Lazy(produce func() (any, error)) Token {
	return lazy(produce)
}

type lazy func() (any, error)

func (l lazy) Resolve(*ResolveContext) (any, error) {
	return l()
}

var markerPattern = regexp.MustCompile(`@@TOKEN\.(\d+)@@`)

// JSONString renders v as a JSON document. Unresolved intrinsics are spliced in with Fn::Join.
func JSONString(v any) Token {
	return &jsonString{value: v}
}

type jsonString struct {
	value any
}

func (j *jsonString) Resolve(rc *ResolveContext) (any, error) {
	resolved, err := Resolve(rc, j.value)
	if err != nil {
		return nil, err
	}

	var intrinsics []any
	replaced := replaceIntrinsics(resolved, func(v any) string {
		intrinsics = append(intrinsics, v)
		return fmt.Sprintf("@@TOKEN.%d@@", len(intrinsics)-1)
	})

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(replaced); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnresolvable, err)
	}
	doc := strings.TrimSuffix(buf.String(), "\n")

	if len(intrinsics) == 0 {
		return doc, nil
	}

	var parts []any
	last := 0
	for _, loc := range markerPattern.FindAllStringSubmatchIndex(doc, -1) {
		start, end := loc[0], loc[1]
		if start > last {
			parts = append(parts, doc[last:start])
		}
		idx, _ := strconv.Atoi(doc[loc[2]:loc[3]])
		parts = append(parts, intrinsics[idx])
		last = end
	}
	if last < len(doc) {
		parts = append(parts, doc[last:])
	}

	return map[string]any{"Fn::Join": []any{"", parts}}, nil
}

func replaceIntrinsics(v any, replace func(any) string) any {
	switch t := v.(type) {
	case map[string]any:
		if IsIntrinsic(t) {
			return replace(t)
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = replaceIntrinsics(val, replace)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = replaceIntrinsics(val, replace)
		}
		return out
	}
	return v
}

// IsIntrinsic reports whether a resolved value is a CloudFormation intrinsic function call.
func IsIntrinsic(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	for k := range m {
		return k == "Ref" || strings.HasPrefix(k, "Fn::")
	}
	return false
}
