package assembly

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/engr-lynx/cicd/internal/construct"
)

const (
	// ManifestFile is the name of the manifest within every assembly directory.
	ManifestFile = "manifest.json"

	manifestVersion = "36.0.0"
)

// Artifact types of a manifest.
const (
	ArtifactTypeStack    = "aws:cloudformation:stack"
	ArtifactTypeAssembly = "cdk:cloud-assembly"
)

// Manifest describes the artifacts of an assembly directory.
type Manifest struct {
	Version   string              `json:"version"`
	Artifacts map[string]Artifact `json:"artifacts"`
}

// Artifact is a manifest entry: a stack template or a nested assembly.
type Artifact struct {
	Type         string         `json:"type"`
	Environment  string         `json:"environment,omitempty"`
	DisplayName  string         `json:"displayName,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

// NewManifest describes asm. Nested assemblies are listed but not descended into.
func NewManifest(asm *construct.CloudAssembly) *Manifest {
	m := &Manifest{Version: manifestVersion, Artifacts: map[string]Artifact{}}

	for _, st := range asm.Stacks {
		m.Artifacts[st.ID] = Artifact{
			Type:        ArtifactTypeStack,
			Environment: st.Environment.String(),
			DisplayName: st.DisplayName,
			Properties: map[string]any{
				"templateFile": st.TemplateFile,
				"stackName":    st.StackName,
			},
			Dependencies: slices.Clone(st.Dependencies),
		}
	}
	for _, nested := range asm.Nested {
		m.Artifacts[nested.ID] = Artifact{
			Type:       ArtifactTypeAssembly,
			Properties: map[string]any{"directoryName": nested.ID},
		}
	}

	return m
}

// ReadManifest reads the manifest of the assembly directory dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, dir, err)
	}

	return &m, nil
}

// outputs returns the files and directories the manifest artifacts occupy in their directory.
func (m *Manifest) outputs() []string {
	var out []string
	for _, a := range m.Artifacts {
		var key string
		switch a.Type {
		case ArtifactTypeStack:
			key = "templateFile"
		case ArtifactTypeAssembly:
			key = "directoryName"
		default:
			continue
		}
		if name, ok := a.Properties[key].(string); ok && name != "" {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
