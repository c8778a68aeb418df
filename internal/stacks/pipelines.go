package stacks

import (
	_ "embed"
	"time"

	"github.com/engr-lynx/cicd/internal/aws/codebuild"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline"
	"github.com/engr-lynx/cicd/internal/aws/codepipeline/actions"
	"github.com/engr-lynx/cicd/internal/aws/iam"
	"github.com/engr-lynx/cicd/internal/aws/lambda"
	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/pipeline"
)

var (
	//go:embed handlers/invalidate.py
	invalidateHandlerCode string

	//go:embed handlers/sls_deploy.py
	slsDeployHandlerCode string
)

const (
	// DefaultBuildSpecFilename is run by custom build projects.
	DefaultBuildSpecFilename = "buildspec.yml"

	handlerEntrypoint = "index.on_event"
	handlerTimeout    = time.Minute
)

// bucketCache returns a build cache under prefix, or nil without a bucket.
func bucketCache(bucket *s3.Bucket, prefix string) *codebuild.Cache {
	if bucket == nil {
		return nil
	}
	return &codebuild.Cache{Bucket: bucket, Prefix: prefix}
}

// optionalInputs are the artifacts the optional projects of a pipeline work on.
type optionalInputs struct {
	// Deployable is staged and handed to the custom deploy project.
	Deployable *codepipeline.Artifact

	// Source is tested.
	Source *codepipeline.Artifact

	Cache *s3.Bucket
}

// withOptionalProjects sets the Staging, Test and CustomDeploy factories of list.
func withOptionalProjects(scope construct.Construct, list pipeline.StageListProps, in optionalInputs) pipeline.StageListProps {
	env := codebuild.Environment{Privileged: list.StageProps.PrivilegedBuild}

	list.Staging = pipeline.ProjectActionFactory(scope, pipeline.ProjectActionProps{
		ProjectID:   "StagingProject",
		ActionName:  "Staging",
		Input:       in.Deployable,
		Environment: env,
	})
	list.Test = pipeline.ProjectActionFactory(scope, pipeline.ProjectActionProps{
		ProjectID:  "TestProject",
		ActionName: "LinuxTest",
		Type:       actions.CodeBuildActionTypeTest,
		Input:      in.Source,
		Cache:      bucketCache(in.Cache, "test"),
	})
	list.CustomDeploy = pipeline.ProjectActionFactory(scope, pipeline.ProjectActionProps{
		ProjectID:   "DeployProject",
		ActionName:  "CustomDeploy",
		Input:       in.Deployable,
		Environment: env,
	})
	return list
}

// pipelineHandler declares an inline python function invoked by a pipeline action.
func pipelineHandler(scope construct.Construct, id string, code string, statements ...iam.PolicyStatement) (*lambda.Function, error) {
	fn, err := lambda.NewFunction(scope, id, lambda.FunctionProps{
		Code:             lambda.InlineCode(code),
		Handler:          handlerEntrypoint,
		Runtime:          lambda.RuntimePython312,
		Timeout:          handlerTimeout,
		LogRetentionDays: 1,
	})
	if err != nil {
		return nil, err
	}
	for _, stmt := range statements {
		if err := fn.AddToRolePolicy(stmt); err != nil {
			return nil, err
		}
	}
	return fn, nil
}

// containerBuildSpec builds the image of the source and pushes it as the latest tag
// of the repository whose URI is in $REPO_URI.
func containerBuildSpec(postBuild ...string) map[string]any {
	spec := map[string]any{
		"version": "0.2",
		"phases": map[string]any{
			"pre_build": map[string]any{
				"commands": []any{
					"aws ecr get-login-password | docker login --username AWS --password-stdin ${REPO_URI%%/*}",
					"docker pull ${REPO_URI}:latest || true",
				},
			},
			"build": map[string]any{
				"commands": []any{
					"DOCKER_BUILDKIT=1 docker build --build-arg BUILDKIT_INLINE_CACHE=1 --cache-from ${REPO_URI}:latest -t ${REPO_URI}:latest .",
				},
			},
			"post_build": map[string]any{
				"commands": append([]any{"docker push ${REPO_URI}:latest"}, toAny(postBuild)...),
			},
		},
	}
	return spec
}

func toAny(list []string) []any {
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out
}
