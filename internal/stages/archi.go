package stages

import (
	"fmt"

	"github.com/engr-lynx/cicd/internal/aws/s3"
	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/context"
	"github.com/engr-lynx/cicd/internal/stacks"
)

// Service holds the stacks declared for an entry of the service pipelines.
// DbPipeline and SlsPipeline are nil unless the entry configures them.
type Service struct {
	ID string

	Db          *stacks.DbContStack
	App         *stacks.SlsContStack
	AppPipeline *stacks.RepoSlsContPipelineStack
	DbPipeline  *stacks.RepoDbContPipelineStack
	SlsPipeline *stacks.RepoSlsPipelineStack
}

// ArchiDeployStage is the deployable unit of the entire architecture.
type ArchiDeployStage struct {
	*construct.Stage
	Site

	ServiceNetwork       *stacks.NetworkClusterStack
	ServicePipelineCache *stacks.PipelineCacheStack
	Services             []Service
}

// NewArchiDeployStage declares the site, the service network and the stacks of every
// service pipeline, in service id order. The shared service pipeline cache is declared
// once a service pipeline builds with a cache.
func NewArchiDeployStage(scope construct.Construct, id string, props StageProps) (*ArchiDeployStage, error) {
	entries, err := props.Context.Entries(context.KeyServicePipelines)
	if err != nil {
		return nil, err
	}

	stage, err := construct.NewStage(scope, id, props.StageProps)
	if err != nil {
		return nil, err
	}
	s := &ArchiDeployStage{Stage: stage}

	s.Site, err = newSite(stage, props)
	if err != nil {
		return nil, err
	}

	s.ServiceNetwork, err = stacks.NewNetworkClusterStack(stage, "ServiceNetwork", construct.StackProps{})
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		svc, err := s.addService(entry, props)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", context.KeyServicePipelines, entry.ID, err)
		}
		s.Services = append(s.Services, svc)
	}

	return s, nil
}

func (s *ArchiDeployStage) addService(entry context.Entry, props StageProps) (Service, error) {
	svc := Service{ID: entry.ID}

	dbProps, err := context.BuildDbProps(entry.Context)
	if err != nil {
		return svc, err
	}
	repoProps, err := context.BuildRepoProps(entry.Context)
	if err != nil {
		return svc, err
	}
	stageProps, err := context.BuildStageProps(entry.Context)
	if err != nil {
		return svc, err
	}

	svc.Db, err = stacks.NewDbContStack(s, entry.ID+"Db", stacks.DbContProps{
		DbProps: dbProps,
		Cluster: s.ServiceNetwork.Cluster,
	})
	if err != nil {
		return svc, err
	}
	svc.App, err = stacks.NewSlsContStack(s, entry.ID+"App", stacks.SlsContProps{Vpc: s.ServiceNetwork.Vpc})
	if err != nil {
		return svc, err
	}
	appCache, err := s.pipelineCache(stageProps.EnableTest)
	if err != nil {
		return svc, err
	}
	svc.AppPipeline, err = stacks.NewRepoSlsContPipelineStack(s, entry.ID+"AppPipeline", stacks.RepoSlsContPipelineProps{
		RepoProps:     repoProps,
		StageProps:    stageProps,
		Func:          svc.App.Func,
		ImageRepo:     svc.App.ImageRepo,
		PipelineCache: appCache,
		Secrets:       props.Secrets,
	})
	if err != nil {
		return svc, err
	}

	dbCtx, ok, err := entry.Context.Lookup(context.KeyDbPipeline)
	if err != nil {
		return svc, err
	}
	if ok {
		svc.DbPipeline, err = s.addDbPipeline(entry.ID, dbCtx, svc.Db, props)
		if err != nil {
			return svc, fmt.Errorf("%s: %w", context.KeyDbPipeline, err)
		}
	}

	archiCtx, ok, err := entry.Context.Lookup(context.KeyArchiRepo)
	if err != nil {
		return svc, err
	}
	if ok {
		archiRepo, err := context.BuildRepoProps(archiCtx)
		if err != nil {
			return svc, fmt.Errorf("%s: %w", context.KeyArchiRepo, err)
		}
		slsCache, err := s.pipelineCache(true)
		if err != nil {
			return svc, err
		}
		svc.SlsPipeline, err = stacks.NewRepoSlsPipelineStack(s, entry.ID+"SlsPipeline", stacks.RepoSlsPipelineProps{
			ServiceID:      entry.ID,
			AppRepoProps:   repoProps,
			ArchiRepoProps: archiRepo,
			StageProps:     stageProps,
			PipelineCache:  slsCache,
			Secrets:        props.Secrets,
		})
		if err != nil {
			return svc, err
		}
	}

	return svc, nil
}

func (s *ArchiDeployStage) addDbPipeline(id string, ctx context.Context, db *stacks.DbContStack, props StageProps) (*stacks.RepoDbContPipelineStack, error) {
	repoProps, err := context.BuildRepoProps(ctx)
	if err != nil {
		return nil, err
	}
	stageProps, err := context.BuildStageProps(ctx)
	if err != nil {
		return nil, err
	}
	cache, err := s.pipelineCache(stageProps.EnableTest)
	if err != nil {
		return nil, err
	}
	return stacks.NewRepoDbContPipelineStack(s, id+"DbPipeline", stacks.RepoDbContPipelineProps{
		RepoProps:     repoProps,
		StageProps:    stageProps,
		Cluster:       db.Cluster,
		Service:       db.Service,
		ImageRepo:     db.ImageRepo,
		PipelineCache: cache,
		Secrets:       props.Secrets,
	})
}

// pipelineCache returns the bucket of the service pipeline cache, declaring its stack on
// first use, or nil when the pipeline needs no cache.
func (s *ArchiDeployStage) pipelineCache(needed bool) (*s3.Bucket, error) {
	if !needed {
		return nil, nil
	}
	if s.ServicePipelineCache == nil {
		cache, err := stacks.NewPipelineCacheStack(s, "ServicePipelineCache", construct.StackProps{})
		if err != nil {
			return nil, err
		}
		s.ServicePipelineCache = cache
	}
	return s.ServicePipelineCache.Bucket, nil
}
