package context

import (
	"fmt"
	"strings"
)

// RepoKind selects where a pipeline fetches its source from.
type RepoKind string

const (
	// RepoKindCodeCommit is a managed CodeCommit repository.
	RepoKindCodeCommit RepoKind = "CODECOMMIT"

	// RepoKindGitHub is a GitHub repository accessed with a token kept in a secret store.
	RepoKindGitHub RepoKind = "GITHUB"
)

// RepoProps references the source repository of a pipeline.
// It is implemented by CodeCommitProps and GitHubProps only.
type RepoProps interface {
	Kind() RepoKind
	repoProps()
}

// CodeCommitProps references a CodeCommit repository.
type CodeCommitProps struct {
	RepoName string

	// CreateRepo declares the repository instead of looking up an existing one.
	CreateRepo bool

	// Branch is empty to track the default branch (master).
	Branch string
}

// GitHubProps references a GitHub repository.
type GitHubProps struct {
	RepoName string
	Owner    string

	// TokenName is the name of the secret holding the access token.
	TokenName string

	// Branch is empty to track the default branch (master).
	Branch string
}

func (CodeCommitProps) Kind() RepoKind { return RepoKindCodeCommit }
func (GitHubProps) Kind() RepoKind     { return RepoKindGitHub }

func (CodeCommitProps) repoProps() {}
func (GitHubProps) repoProps()     {}

// BuildRepoProps reads the repository reference of a pipeline context.
// The repoKind key is case-insensitive.
func BuildRepoProps(ctx Context) (RepoProps, error) {
	kind, err := ctx.stringValue("repoKind")
	if err != nil {
		return nil, err
	}

	switch RepoKind(strings.ToUpper(strings.TrimSpace(kind))) {
	case RepoKindCodeCommit:
		var props CodeCommitProps
		if props.RepoName, err = ctx.stringValue("repoName"); err != nil {
			return nil, err
		}
		if props.CreateRepo, err = ctx.boolValue("createRepo"); err != nil {
			return nil, err
		}
		if props.Branch, err = ctx.stringValue("branch"); err != nil {
			return nil, err
		}
		return props, nil
	case RepoKindGitHub:
		var props GitHubProps
		if props.RepoName, err = ctx.stringValue("repoName"); err != nil {
			return nil, err
		}
		if props.Owner, err = ctx.stringValue("owner"); err != nil {
			return nil, err
		}
		if props.TokenName, err = ctx.stringValue("tokenName"); err != nil {
			return nil, err
		}
		if props.Branch, err = ctx.stringValue("branch"); err != nil {
			return nil, err
		}
		return props, nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedRepoKind, kind)
	}
}
