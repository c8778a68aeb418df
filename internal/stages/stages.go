// Package stages composes the stacks of the architecture into deployable stages.
package stages

import (
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/secret"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/stacks"
)

// SiteRegion hosts the distribution and the services supporting it.
const SiteRegion = "us-east-1"

// StageProps configures the stages of this package.
type StageProps struct {
	construct.StageProps

	// Context holds the pipeline contexts, keyed as in a context file.
	Context context.Context

	Secrets secret.Store
}

// Site is a static site with its delivery pipeline.
type Site struct {
	Site          *stacks.CdnStack
	PipelineCache *stacks.PipelineCacheStack
	Pipeline      *stacks.RepoCdnPipelineStack
}

// newSite declares the Site, SitePipelineCache and SitePipeline stacks in SiteRegion.
func newSite(scope construct.Construct, props StageProps) (Site, error) {
	var site Site

	pipelineCtx, err := props.Context.Sub(context.KeySitePipeline)
	if err != nil {
		return site, err
	}
	repoProps, err := context.BuildRepoProps(pipelineCtx)
	if err != nil {
		return site, fmt.Errorf("%s: %w", context.KeySitePipeline, err)
	}
	stageProps, err := context.BuildStageProps(pipelineCtx)
	if err != nil {
		return site, fmt.Errorf("%s: %w", context.KeySitePipeline, err)
	}

	env := construct.StackProps{Env: construct.Environment{Region: SiteRegion}}

	site.Site, err = stacks.NewCdnStack(scope, "Site", env)
	if err != nil {
		return site, err
	}
	site.PipelineCache, err = stacks.NewPipelineCacheStack(scope, "SitePipelineCache", env)
	if err != nil {
		return site, err
	}
	site.Pipeline, err = stacks.NewRepoCdnPipelineStack(scope, context.KeySitePipeline, stacks.RepoCdnPipelineProps{
		StackProps:         env,
		RepoProps:          repoProps,
		StageProps:         stageProps,
		DistributionSource: site.Site.SourceBucket,
		Distribution:       site.Site.Distribution,
		PipelineCache:      site.PipelineCache.Bucket,
		Secrets:            props.Secrets,
	})
	if err != nil {
		return site, err
	}

	return site, nil
}

// SiteStage deploys a static site and its pipeline.
type SiteStage struct {
	*construct.Stage
	Site
}

func NewSiteStage(scope construct.Construct, id string, props StageProps) (*SiteStage, error) {
	stage, err := construct.NewStage(scope, id, props.StageProps)
	if err != nil {
		return nil, err
	}

	site, err := newSite(stage, props)
	if err != nil {
		return nil, err
	}

	return &SiteStage{Stage: stage, Site: site}, nil
}
