// Package app declares the construct tree described by a deployment context.
package app

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/stacks"
	"github.com/engr-lynx/cicd/internal/stages"
)

// Props configures New.
type Props struct {
	Context context.Context

	// Env is the environment of the root stacks. Cross-region deployment needs both fields set.
	Env construct.Environment

	Secrets secret.Store
	Logger  hclog.Logger
}

// App is the root of a declared construct tree.
// Exactly one of Pipeline and Serverless is set.
type App struct {
	*construct.App

	Pipeline   *stacks.RepoCloudPipelineStack
	Serverless *stacks.ServerlessStack
}

// New declares the stacks of props.Context.
//
// A context naming a serverless stack (slsId) declares only that stack, as synthesized by the
// serverless pipeline of a service. Any other context declares the architecture pipeline,
// which deploys the site and the service pipelines.
func New(props Props) (*App, error) {
	logger := props.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	a := &App{App: construct.NewApp(construct.AppProps{Env: props.Env})}

	slsID, err := props.Context.String(context.KeySlsID)
	if err != nil {
		return nil, err
	}
	if slsID != "" {
		repoName, err := props.Context.String(context.KeyImageRepoName)
		if err != nil {
			return nil, err
		}
		logger.Debug("Declaring serverless stack", "id", slsID, "imageRepo", repoName)

		a.Serverless, err = stacks.NewServerlessStack(a, slsID, stacks.ServerlessProps{ImageRepoName: repoName})
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	pipelineID, err := props.Context.String(context.KeyPipelineID)
	if err != nil {
		return nil, err
	}
	if pipelineID == "" {
		pipelineID = context.DefaultPipelineID
	}

	pipelineCtx, err := props.Context.Sub(context.KeyArchiPipeline)
	if err != nil {
		return nil, err
	}
	repoProps, err := context.BuildRepoProps(pipelineCtx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", context.KeyArchiPipeline, err)
	}
	stageProps, err := context.BuildStageProps(pipelineCtx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", context.KeyArchiPipeline, err)
	}

	logger.Debug("Declaring architecture pipeline", "id", pipelineID, "env", props.Env.String())

	a.Pipeline, err = stacks.NewRepoCloudPipelineStack(a, pipelineID, stacks.RepoCloudPipelineProps{
		RepoProps:  repoProps,
		StageProps: stageProps,
		DeployStage: func(scope construct.Construct, id string) (*construct.Stage, error) {
			st, err := stages.NewArchiDeployStage(scope, id, stages.StageProps{
				Context: props.Context,
				Secrets: props.Secrets,
			})
			if err != nil {
				return nil, err
			}
			logger.Debug("Declared deployment stage", "stage", st.Name(), "stacks", len(st.Stacks()), "services", len(st.Services))
			return st.Stage, nil
		},
		Secrets: props.Secrets,
	})
	if err != nil {
		return nil, err
	}

	for _, region := range a.Pipeline.SupportRegions() {
		logger.Debug("Declared cross-region support stack", "region", region)
	}

	return a, nil
}
