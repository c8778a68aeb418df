package assembly

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/awslabs/goformation/v7"
	"github.com/awslabs/goformation/v7/cloudformation"

	"github.com/engr-lynx/cicd/internal/construct"
)

var knownResourceTypes = sync.OnceValue(func() map[string]struct{} {
	types := map[string]struct{}{}
	for name := range cloudformation.AllResources() {
		types[name] = struct{}{}
	}
	return types
})

// ParseTemplate decodes tmpl into goformation's typed resources. Resource types must be known
// to goformation and properties must match their types. Intrinsic functions are resolved with
// goformation's defaults, so references to other resources decode as empty values.
func ParseTemplate(tmpl *construct.Template) (*cloudformation.Template, error) {
	for id, def := range tmpl.Resources {
		if strings.HasPrefix(def.Type, "Custom::") {
			continue
		}
		if _, ok := knownResourceTypes()[def.Type]; !ok {
			return nil, fmt.Errorf("%w: resource '%s' has unknown type '%s'", ErrInvalidTemplate, id, def.Type)
		}
	}

	data, err := json.Marshal(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	parsed, err := goformation.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	return parsed, nil
}

// Validate parses the template of every stack of asm and its nested assemblies.
func Validate(asm *construct.CloudAssembly) error {
	for _, st := range asm.Stacks {
		if _, err := ParseTemplate(st.Template); err != nil {
			return fmt.Errorf("stack '%s': %w", st.DisplayName, err)
		}
	}
	for _, nested := range asm.Nested {
		if err := Validate(nested); err != nil {
			return err
		}
	}
	return nil
}
