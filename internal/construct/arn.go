package construct

// ArnComponents describes an ARN of a resource in the environment of a stack.
type ArnComponents struct {
	Service  string
	Resource string

	// ResourceName follows Resource, separated by Sep. It is omitted when nil.
	ResourceName any

	// Sep defaults to "/".
	Sep string

	// Region and Account default to the stack environment. OmitRegion and OmitAccount leave them blank,
	// as global services do.
	Region      any
	Account     any
	OmitRegion  bool
	OmitAccount bool
}

// FormatArn returns a token for the ARN described by c within stack.
func FormatArn(stack *Stack, c ArnComponents) Token {
	region := c.Region
	if region == nil {
		region = stack.Region()
	}
	if c.OmitRegion {
		region = ""
	}

	account := c.Account
	if account == nil {
		account = stack.Account()
	}
	if c.OmitAccount {
		account = ""
	}

	parts := []any{"arn:", stack.Partition(), ":", c.Service, ":", region, ":", account, ":", c.Resource}
	if c.ResourceName != nil {
		sep := c.Sep
		if sep == "" {
			sep = "/"
		}
		parts = append(parts, sep, c.ResourceName)
	}

	return Join("", parts...)
}
