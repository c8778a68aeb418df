// Package secret resolves secret references for templates.
//
// Secret values are never read: a Store returns a reference that the
// provisioning engine resolves at deploy time.
package secret

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSecretName indicates an empty or malformed secret name.
var ErrInvalidSecretName = errors.New("invalid secret name")

// Store looks up secrets by name.
type Store interface {
	// Lookup returns a value usable in a template in place of the secret.
	Lookup(name string) (any, error)
}

// SecretsManager resolves secrets through Secrets Manager dynamic references.
type SecretsManager struct {
	// JSONField selects a field of a JSON secret. The whole secret string is used when empty.
	JSONField string
}

// Lookup returns the dynamic reference of the named secret.
// Every call builds a new reference; nothing is cached.
func (s SecretsManager) Lookup(name string) (any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidSecretName)
	}
	if strings.ContainsAny(name, ":{}") {
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidSecretName, name)
	}

	return fmt.Sprintf("{{resolve:secretsmanager:%s:SecretString:%s::}}", name, s.JSONField), nil
}
