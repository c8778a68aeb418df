package actions

import (
	"github.com/engr-lynx/cicd/internal/aws/codebuild"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/construct"
)

// CodeBuildActionType selects the category a CodeBuild action is shown in.
type CodeBuildActionType int

const (
	CodeBuildActionTypeBuild CodeBuildActionType = iota
	CodeBuildActionTypeTest
)

// CodeBuildActionProps configures a CodeBuildAction.
type CodeBuildActionProps struct {
	ActionName string
	Project    *codebuild.PipelineProject
	Input      *codepipeline.Artifact

	// ExtraInputs are available to the build next to the primary Input.
	ExtraInputs []*codepipeline.Artifact
	Outputs     []*codepipeline.Artifact

	Type     CodeBuildActionType
	RunOrder int

	// EnvironmentVariables override those of the project; values may be tokens.
	EnvironmentVariables map[string]any
}

// CodeBuildAction runs a build project.
type CodeBuildAction struct {
	props CodeBuildActionProps
}

// NewCodeBuildAction returns a CodeBuild action.
func NewCodeBuildAction(props CodeBuildActionProps) *CodeBuildAction {
	return &CodeBuildAction{props: props}
}

// Props returns the action configuration.
func (a *CodeBuildAction) Props() CodeBuildActionProps {
	return a.props
}

func (a *CodeBuildAction) ActionProperties() codepipeline.ActionProperties {
	category := codepipeline.CategoryBuild
	if a.props.Type == CodeBuildActionTypeTest {
		category = codepipeline.CategoryTest
	}

	return codepipeline.ActionProperties{
		ActionName: a.props.ActionName,
		Category:   category,
		Owner:      codepipeline.OwnerAWS,
		Provider:   "CodeBuild",
		Inputs:     append(artifacts(a.props.Input), a.props.ExtraInputs...),
		Outputs:    a.props.Outputs,
		RunOrder:   a.props.RunOrder,
	}
}

func (a *CodeBuildAction) Bind(_ construct.Construct, opts codepipeline.ActionBindOptions) (codepipeline.ActionConfig, error) {
	if err := requireProperty(a.props.ActionName, "a project", a.props.Project != nil); err != nil {
		return codepipeline.ActionConfig{}, err
	}
	if err := requireProperty(a.props.ActionName, "an input artifact", a.props.Input != nil); err != nil {
		return codepipeline.ActionConfig{}, err
	}

	err := opts.Role.AddToPolicy(iam.PolicyStatement{
		Actions:   []string{"codebuild:BatchGetBuilds", "codebuild:StartBuild", "codebuild:StopBuild"},
		Resources: []any{a.props.Project.ProjectArn()},
	})
	if err != nil {
		return codepipeline.ActionConfig{}, err
	}

	if len(a.props.Outputs) > 0 {
		err = opts.Bucket.GrantReadWrite(a.props.Project.Role())
	} else {
		err = opts.Bucket.GrantRead(a.props.Project.Role())
	}
	if err != nil {
		return codepipeline.ActionConfig{}, err
	}

	config := map[string]any{"ProjectName": a.props.Project.ProjectName()}
	if len(a.props.ExtraInputs) > 0 {
		config["PrimarySource"] = a.props.Input.NameToken()
	}
	if len(a.props.EnvironmentVariables) > 0 {
		vars := make([]any, 0, len(a.props.EnvironmentVariables))
		for _, name := range sortedKeys(a.props.EnvironmentVariables) {
			vars = append(vars, map[string]any{"name": name, "type": "PLAINTEXT", "value": a.props.EnvironmentVariables[name]})
		}
		config["EnvironmentVariables"] = construct.JSONString(vars)
	}

	return codepipeline.ActionConfig{Configuration: config}, nil
}
