package context

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// ValidateSchema checks the types of the recognised keys of ctx.
// Unknown keys are allowed, repository kinds are checked by BuildRepoProps.
func ValidateSchema(ctx Context) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(map[string]any(ctx)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	if result.Valid() {
		return nil
	}

	errs := make([]error, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidValue, e.Field(), e.Description()))
	}

	return errors.Join(errs...)
}

type schemaNode struct {
	Type                 string                 `json:"type"`
	Ref                  string                 `json:"$ref"`
	Properties           map[string]*schemaNode `json:"properties"`
	AdditionalProperties *schemaNode            `json:"additionalProperties"`
	Definitions          map[string]*schemaNode `json:"definitions"`
}

var schemaRoot = sync.OnceValue(func() *schemaNode {
	root := &schemaNode{}
	if err := json.Unmarshal(schemaJSON, root); err != nil {
		panic(fmt.Sprintf("embedded context schema: %v", err))
	}
	return root
})

// schemaType returns the schema type of the value at keys, empty when the schema does not describe it.
func schemaType(keys []string) string {
	root := schemaRoot()
	resolve := func(n *schemaNode) *schemaNode {
		if name, ok := strings.CutPrefix(n.Ref, "#/definitions/"); ok {
			if def, ok := root.Definitions[name]; ok {
				return def
			}
		}
		return n
	}

	node := root
	for _, k := range keys {
		node = resolve(node)
		next, ok := node.Properties[k]
		if !ok {
			next = node.AdditionalProperties
		}
		if next == nil {
			return ""
		}
		node = next
	}
	return resolve(node).Type
}
