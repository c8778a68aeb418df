package actions

import (
	"github.com/engr-lynx/cicd/internal/aws/codecommit"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/construct"
)

// DefaultBranch is tracked by source actions that do not name a branch.
const DefaultBranch = "master"

// CodeCommitSourceActionProps configures a CodeCommitSourceAction.
type CodeCommitSourceActionProps struct {
	ActionName string
	Repository *codecommit.Repository

	// Branch defaults to DefaultBranch.
	Branch string
	Output *codepipeline.Artifact
}

// CodeCommitSourceAction fetches a branch of a CodeCommit repository.
type CodeCommitSourceAction struct {
	props CodeCommitSourceActionProps
}

// NewCodeCommitSourceAction returns a CodeCommit source action.
func NewCodeCommitSourceAction(props CodeCommitSourceActionProps) *CodeCommitSourceAction {
	if props.Branch == "" {
		props.Branch = DefaultBranch
	}
	return &CodeCommitSourceAction{props: props}
}

// Props returns the action configuration.
func (a *CodeCommitSourceAction) Props() CodeCommitSourceActionProps {
	return a.props
}

func (a *CodeCommitSourceAction) ActionProperties() codepipeline.ActionProperties {
	return codepipeline.ActionProperties{
		ActionName: a.props.ActionName,
		Category:   codepipeline.CategorySource,
		Owner:      codepipeline.OwnerAWS,
		Provider:   "CodeCommit",
		Outputs:    artifacts(a.props.Output),
	}
}

func (a *CodeCommitSourceAction) Bind(_ construct.Construct, opts codepipeline.ActionBindOptions) (codepipeline.ActionConfig, error) {
	if err := requireProperty(a.props.ActionName, "a repository", a.props.Repository != nil); err != nil {
		return codepipeline.ActionConfig{}, err
	}
	if err := requireProperty(a.props.ActionName, "an output artifact", a.props.Output != nil); err != nil {
		return codepipeline.ActionConfig{}, err
	}

	err := opts.Role.AddToPolicy(iam.PolicyStatement{
		Actions: []string{
			"codecommit:GetBranch",
			"codecommit:GetCommit",
			"codecommit:UploadArchive",
			"codecommit:GetUploadArchiveStatus",
			"codecommit:CancelUploadArchive",
		},
		Resources: []any{a.props.Repository.RepositoryArn()},
	})
	if err != nil {
		return codepipeline.ActionConfig{}, err
	}

	return codepipeline.ActionConfig{
		Configuration: map[string]any{
			"RepositoryName":       a.props.Repository.RepositoryName(),
			"BranchName":           a.props.Branch,
			"PollForSourceChanges": true,
		},
	}, nil
}

// GitHubSourceActionProps configures a GitHubSourceAction.
type GitHubSourceActionProps struct {
	ActionName string
	Owner      string
	Repo       string

	// OAuthToken is a template value resolving to the access token, never the token itself.
	OAuthToken any

	// Branch defaults to DefaultBranch.
	Branch string
	Output *codepipeline.Artifact
}

// GitHubSourceAction fetches a branch of a GitHub repository with a personal access token.
type GitHubSourceAction struct {
	props GitHubSourceActionProps
}

// NewGitHubSourceAction returns a GitHub source action.
func NewGitHubSourceAction(props GitHubSourceActionProps) *GitHubSourceAction {
	if props.Branch == "" {
		props.Branch = DefaultBranch
	}
	return &GitHubSourceAction{props: props}
}

// Props returns the action configuration.
func (a *GitHubSourceAction) Props() GitHubSourceActionProps {
	return a.props
}

func (a *GitHubSourceAction) ActionProperties() codepipeline.ActionProperties {
	return codepipeline.ActionProperties{
		ActionName: a.props.ActionName,
		Category:   codepipeline.CategorySource,
		Owner:      codepipeline.OwnerThirdParty,
		Provider:   "GitHub",
		Outputs:    artifacts(a.props.Output),
	}
}

func (a *GitHubSourceAction) Bind(construct.Construct, codepipeline.ActionBindOptions) (codepipeline.ActionConfig, error) {
	checks := []struct {
		name string
		ok   bool
	}{
		{name: "an owner", ok: a.props.Owner != ""},
		{name: "a repository", ok: a.props.Repo != ""},
		{name: "an oauth token", ok: a.props.OAuthToken != nil},
		{name: "an output artifact", ok: a.props.Output != nil},
	}
	for _, c := range checks {
		if err := requireProperty(a.props.ActionName, c.name, c.ok); err != nil {
			return codepipeline.ActionConfig{}, err
		}
	}

	return codepipeline.ActionConfig{
		Configuration: map[string]any{
			"Owner":                a.props.Owner,
			"Repo":                 a.props.Repo,
			"Branch":               a.props.Branch,
			"OAuthToken":           a.props.OAuthToken,
			"PollForSourceChanges": true,
		},
	}, nil
}
