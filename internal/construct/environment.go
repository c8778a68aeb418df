package construct

import (
	"fmt"
)

const (
	unknownAccount = "unknown-account"
	unknownRegion  = "unknown-region"
)

// Environment is the account and region a stack is deployed to.
// Empty fields are resolved by the deployment tool at deploy time.
type Environment struct {
	Account string `json:"account,omitempty" yaml:"account,omitempty"`
	Region  string `json:"region,omitempty"  yaml:"region,omitempty"`
}

// IsAgnostic reports whether either field is left to be resolved at deploy time.
func (e Environment) IsAgnostic() bool {
	return e.Account == "" || e.Region == ""
}

// String renders the environment the way cloud assembly manifests do.
func (e Environment) String() string {
	account := e.Account
	if account == "" {
		account = unknownAccount
	}
	region := e.Region
	if region == "" {
		region = unknownRegion
	}
	return fmt.Sprintf("aws://%s/%s", account, region)
}

// inherit fills empty fields from parent.
func (e Environment) inherit(parent Environment) Environment {
	if e.Account == "" {
		e.Account = parent.Account
	}
	if e.Region == "" {
		e.Region = parent.Region
	}
	return e
}

// compatible reports whether stacks in e and other may reference each other through exports.
func (e Environment) compatible(other Environment) bool {
	return e.Account == other.Account && e.Region == other.Region
}
