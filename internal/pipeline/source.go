// Package pipeline builds the actions and stage lists shared by the pipeline stacks.
package pipeline

import (
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/codecommit"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline/actions"
	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
)

// RepoSourceActionProps configures BuildRepoSourceAction.
type RepoSourceActionProps struct {
	RepoProps context.RepoProps

	// NamePrefix distinguishes the sources of pipelines fetching more than one repository.
	NamePrefix string
	RepoOutput *codepipeline.Artifact

	// Secrets resolves GitHub tokens, defaults to Secrets Manager.
	Secrets secret.Store
}

// BuildRepoSourceAction returns the source action fetching the referenced repository.
// A CodeCommit repository is declared in scope when the reference asks to create it.
func BuildRepoSourceAction(scope construct.Construct, props RepoSourceActionProps) (codepipeline.Action, error) {
	actionName := props.NamePrefix + "RepoSource"

	switch repo := props.RepoProps.(type) {
	case context.CodeCommitProps:
		repoID := scope.Node().ID() + props.NamePrefix + "Repo"

		var r *codecommit.Repository
		var err error
		if repo.CreateRepo {
			r, err = codecommit.NewRepository(scope, repoID, codecommit.RepositoryProps{RepositoryName: repo.RepoName})
		} else {
			r, err = codecommit.FromRepositoryName(scope, repoID, repo.RepoName)
		}
		if err != nil {
			return nil, fmt.Errorf("source '%s': %w", actionName, err)
		}

		return actions.NewCodeCommitSourceAction(actions.CodeCommitSourceActionProps{
			ActionName: actionName,
			Repository: r,
			Branch:     repo.Branch,
			Output:     props.RepoOutput,
		}), nil
	case context.GitHubProps:
		secrets := props.Secrets
		if secrets == nil {
			secrets = secret.SecretsManager{}
		}

		token, err := secrets.Lookup(repo.TokenName)
		if err != nil {
			return nil, fmt.Errorf("source '%s': %w", actionName, err)
		}

		return actions.NewGitHubSourceAction(actions.GitHubSourceActionProps{
			ActionName: actionName,
			Owner:      repo.Owner,
			Repo:       repo.RepoName,
			OAuthToken: token,
			Branch:     repo.Branch,
			Output:     props.RepoOutput,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %T", context.ErrUnsupportedRepoKind, props.RepoProps)
	}
}
