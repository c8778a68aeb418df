// Package actions provides the pipeline actions used by the pipeline stacks.
package actions

import (
	"errors"
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
)

// ErrMissingProperty indicates an action constructed without a required property.
var ErrMissingProperty = errors.New("missing action property")

func requireProperty(action string, name string, ok bool) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%w: action '%s' requires %s", ErrMissingProperty, action, name)
}

func artifacts(list ...*codepipeline.Artifact) []*codepipeline.Artifact {
	var out []*codepipeline.Artifact
	for _, a := range list {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}
