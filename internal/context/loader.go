package context

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/engr-lynx/cicd/internal/perms"
)

var (
	_ Loader      = (*DefaultLoader)(nil)
	_ Initializer = (*DefaultLoader)(nil)
)

// Top level context keys.
const (
	KeyPipelineID       = "pipelineId"
	KeyArchiPipeline    = "ArchiPipeline"
	KeySitePipeline     = "SitePipeline"
	KeyServicePipelines = "ServicePipelines"
)

// Keys set by serverless pipelines when synthesizing the stack of an architecture repository.
const (
	KeySlsID         = "slsId"
	KeyImageRepoName = "imageRepoName"
)

// Optional keys of a service pipeline context.
const (
	KeyDbPipeline = "DbPipeline"
	KeyArchiRepo  = "ArchiRepo"
)

// DefaultPipelineID names the pipeline stack when the context does not.
const DefaultPipelineID = "ArchiPipeline"

type Loader interface {
	Load(path string) (Context, error)
}

type Initializer interface {
	Init(path string) error
}

type format string

const (
	formatTOML format = "toml"
	formatJSON format = "json"
	formatYAML format = "yaml"
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML, nil
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unsupported context file extension '%s' (toml, json, yaml)", filepath.Ext(path))
	}
}

// DefaultLoader reads context files in TOML, JSON or YAML, chosen by file extension.
type DefaultLoader struct{}

func (d *DefaultLoader) Load(path string) (Context, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", ErrContextLoadFailed)
	}

	f, err := formatOf(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContextLoadFailed, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w (%s), run: 'cicd init'", ErrContextLoadFailed, ErrContextNotFound, path)
		}
		return nil, fmt.Errorf("%w: failed to read context file (%s): %w", ErrContextLoadFailed, path, err)
	}

	var raw map[string]any
	switch f {
	case formatTOML:
		err = toml.Unmarshal(data, &raw)
	case formatJSON:
		err = json.Unmarshal(data, &raw)
	case formatYAML:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode context from file (%s): %w", ErrContextLoadFailed, path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: context file is empty (%s)", ErrContextLoadFailed, path)
	}

	return Context(raw).Clone(), nil
}

// Init writes a skeleton context file, in the format given by the extension of path.
func (d *DefaultLoader) Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	f, err := formatOf(path)
	if err != nil {
		return err
	}

	content, err := encode(f, Skeleton())
	if err != nil {
		return fmt.Errorf("failed to encode skeleton context: %w", err)
	}

	if err := os.WriteFile(path, content, perms.RegularFile); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// Skeleton returns a context declaring a site pipeline and one service pipeline.
func Skeleton() Context {
	return Context{
		KeyPipelineID: DefaultPipelineID,
		KeyArchiPipeline: map[string]any{
			"repoKind":       string(RepoKindCodeCommit),
			"repoName":       "archi",
			"createRepo":     true,
			"enableApproval": true,
		},
		KeySitePipeline: map[string]any{
			"repoKind":         string(RepoKindCodeCommit),
			"repoName":         "site",
			"createRepo":       true,
			"enableTest":       true,
			"testSpecFilename": "testspec.yml",
		},
		KeyServicePipelines: map[string]any{
			"Service": map[string]any{
				"repoKind":  string(RepoKindGitHub),
				"repoName":  "service",
				"owner":     "owner",
				"tokenName": "github-token",
				"cpu":       int64(DefaultDbCPU),
			},
		},
	}
}

func encode(f format, ctx Context) ([]byte, error) {
	switch f {
	case formatJSON:
		data, err := json.MarshalIndent(ctx, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case formatYAML:
		return yaml.Marshal(map[string]any(ctx))
	default:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(map[string]any(ctx)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}
