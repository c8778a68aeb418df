// Package assembly writes synthesized cloud assemblies to disk.
package assembly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/engr-lynx/cicd/internal/construct"
	"github.com/engr-lynx/cicd/internal/files"
	"github.com/engr-lynx/cicd/internal/perms"
)

// Writer writes a cloud assembly as a directory tree: a manifest and one template per stack,
// with nested assemblies in sub-directories named by their id.
type Writer struct {
	logger      hclog.Logger
	parallelism int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithParallelism bounds the number of files written at once. Values below 1 use the number of CPUs.
func WithParallelism(n int) WriterOption {
	return func(w *Writer) {
		w.parallelism = n
	}
}

func NewWriter(logger hclog.Logger, opts ...WriterOption) *Writer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	w := &Writer{logger: logger.Named("assembly")}
	for _, opt := range opts {
		opt(w)
	}
	if w.parallelism < 1 {
		w.parallelism = runtime.NumCPU()
	}
	return w
}

type fileJob struct {
	path string
	data any
}

// Write writes asm under dir, creating it when missing.
// Templates and nested assemblies listed by a manifest already in the tree but absent
// from asm are removed first. Nothing is removed unless every listed name is safe.
// Nothing is written unless every template passes Validate.
func (w *Writer) Write(ctx context.Context, asm *construct.CloudAssembly, dir string) error {
	if err := Validate(asm); err != nil {
		return err
	}

	var plan writePlan
	if err := w.prepare(asm, dir, &plan); err != nil {
		return err
	}

	for _, path := range plan.stale {
		w.logger.Debug("Removing stale output", "path", path)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("removing stale output '%s': %w", path, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallelism)
	for _, job := range plan.jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return writeJSON(job.path, job.data)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("writing assembly to '%s': %w", dir, err)
	}

	w.logger.Debug("Wrote assembly", "dir", dir, "files", len(plan.jobs), "removed", len(plan.stale))
	return nil
}

type writePlan struct {
	jobs  []fileJob
	stale []string
}

// prepare creates the directory of asm, records its stale outputs and queues its files,
// then does the same for nested assemblies.
func (w *Writer) prepare(asm *construct.CloudAssembly, dir string, plan *writePlan) error {
	if err := files.EnsureDir(dir); err != nil {
		return err
	}

	manifest := NewManifest(asm)
	stale, err := w.staleOutputs(dir, manifest)
	if err != nil {
		return err
	}
	plan.stale = append(plan.stale, stale...)

	plan.jobs = append(plan.jobs, fileJob{path: filepath.Join(dir, ManifestFile), data: manifest})
	for _, st := range asm.Stacks {
		plan.jobs = append(plan.jobs, fileJob{path: filepath.Join(dir, st.TemplateFile), data: st.Template})
	}

	for _, nested := range asm.Nested {
		if err := w.prepare(nested, filepath.Join(dir, nested.ID), plan); err != nil {
			return err
		}
	}

	return nil
}

// staleOutputs lists the paths of outputs named by the manifest in dir but not by next.
func (w *Writer) staleOutputs(dir string, next *Manifest) ([]string, error) {
	prev, err := ReadManifest(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		w.logger.Warn("Ignoring unreadable manifest", "dir", dir, "error", err)
		return nil, nil
	}

	keep := map[string]struct{}{}
	for _, name := range next.outputs() {
		keep[name] = struct{}{}
	}

	var stale []string
	for _, name := range prev.outputs() {
		if _, ok := keep[name]; ok {
			continue
		}
		if !files.IsBaseName(name) {
			return nil, fmt.Errorf("%w: '%s' in %s", ErrUnsafePath, name, filepath.Join(dir, ManifestFile))
		}
		stale = append(stale, filepath.Join(dir, name))
	}

	return stale, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(data, '\n'), perms.RegularFile)
}
