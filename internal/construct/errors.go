package construct

import (
	"errors"
)

var (
	// ErrInvalidID indicates a construct id that is empty or contains the path separator.
	ErrInvalidID = errors.New("invalid construct id")

	// ErrDuplicateID indicates that a scope already has a child with the same id.
	ErrDuplicateID = errors.New("duplicate construct id")

	// ErrInvalidConstruct indicates a construct that was created with invalid properties or in an invalid scope.
	ErrInvalidConstruct = errors.New("invalid construct")

	// ErrLocked indicates an attempt to add a construct to a subtree that was already synthesized.
	ErrLocked = errors.New("construct tree is locked")

	// ErrNoStack indicates a construct that must be defined within a stack but is not.
	ErrNoStack = errors.New("construct is not defined within a stack")

	// ErrDuplicateLogicalID indicates two elements of one stack rendering to the same logical id.
	ErrDuplicateLogicalID = errors.New("duplicate logical id")

	// ErrUnresolvable indicates a value that cannot be rendered into a template.
	ErrUnresolvable = errors.New("value cannot be resolved")

	// ErrCrossStageReference indicates a reference between stacks of different cloud assemblies.
	ErrCrossStageReference = errors.New("reference crosses stage boundary")

	// ErrCrossEnvironmentReference indicates a reference between stacks deployed to different environments.
	ErrCrossEnvironmentReference = errors.New("reference crosses environment boundary")

	// ErrValidationFailed wraps the errors reported by construct validations during synthesis.
	ErrValidationFailed = errors.New("construct validation failed")

	// ErrDependencyCycle indicates stacks which depend on each other.
	ErrDependencyCycle = errors.New("stack dependency cycle")
)
