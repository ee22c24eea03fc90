// Package pipeline turns one descriptor into a built component: fetch the
// source, verify it, extract it into the work directory and hand it to the
// build backend.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/vk/omnibuild/internal/backend"
	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/descriptor"
	"github.com/vk/omnibuild/internal/extract"
	"github.com/vk/omnibuild/internal/fetch"
)

// Fetcher retrieves source bytes.
type Fetcher interface {
	Fetch(ctx context.Context, src descriptor.Source) ([]byte, error)
}

// Pipeline holds the collaborators shared by every component build.
type Pipeline struct {
	fetcher    Fetcher
	backend    backend.Backend
	workDir    string
	installDir string
}

// New creates a Pipeline. Sources are extracted under workDir and builds
// install under installDir, both at the descriptor's relative path.
func New(f Fetcher, b backend.Backend, workDir, installDir string) *Pipeline {
	return &Pipeline{fetcher: f, backend: b, workDir: workDir, installDir: installDir}
}

// Run builds d. The returned error keeps the typed error of the failing
// step in its chain.
func (p *Pipeline) Run(ctx context.Context, d *descriptor.Descriptor) error {
	logger := ctxlog.FromContext(ctx).With("component", d.Name, "version", d.Version)
	ctx = ctxlog.WithLogger(ctx, logger)

	logger.Debug("Fetching source.", "url", d.Source.URL)
	data, err := p.fetcher.Fetch(ctx, d.Source)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", d.Name, err)
	}

	if err := fetch.Verify(data, d.Source.Checksum); err != nil {
		return fmt.Errorf("verify %s: %w", d.Name, err)
	}
	logger.Debug("Source verified.", "bytes", len(data))

	rel, err := relativePath(d)
	if err != nil {
		return fmt.Errorf("extract %s: %w", d.Name, err)
	}
	sourceDir, err := p.unpack(ctx, d, rel, data)
	if err != nil {
		return fmt.Errorf("extract %s: %w", d.Name, err)
	}

	job := backend.Job{
		Descriptor: d,
		SourceDir:  sourceDir,
		InstallDir: filepath.Join(p.installDir, rel),
	}
	logger.Debug("Building component.", "source_dir", job.SourceDir, "install_dir", job.InstallDir)
	if err := p.backend.Build(ctx, job); err != nil {
		return fmt.Errorf("build %s: %w", d.Name, err)
	}
	return nil
}

// unpack extracts into a staging directory and moves the result to
// workDir/<relative path>. An archive holding a single top-level directory
// has that directory promoted in its place.
func (p *Pipeline) unpack(ctx context.Context, d *descriptor.Descriptor, rel string, data []byte) (string, error) {
	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return "", err
	}
	stage, err := os.MkdirTemp(p.workDir, ".stage-"+d.Name+"-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(stage)

	if err := extract.Extract(ctx, d.Source.Extract, artifactName(d.Source.URL), data, stage); err != nil {
		return "", err
	}

	root := stage
	entries, err := os.ReadDir(stage)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		root = filepath.Join(stage, entries[0].Name())
	}

	target := filepath.Join(p.workDir, rel)
	if err := os.RemoveAll(target); err != nil {
		return "", fmt.Errorf("clear %s: %w", target, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(root, target); err != nil {
		return "", fmt.Errorf("move source into place: %w", err)
	}
	return target, nil
}

// relativePath returns the cleaned relative path of d, refusing paths that
// would leave the work or install directory.
func relativePath(d *descriptor.Descriptor) (string, error) {
	if !descriptor.LocalPath(d.Path()) {
		return "", &descriptor.InvalidDescriptorError{Name: d.Name, Reason: fmt.Sprintf("relative path %q must stay inside the work directory", d.Path())}
	}
	return filepath.Clean(filepath.FromSlash(d.Path())), nil
}

func artifactName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "source"
	}
	return path.Base(u.Path)
}
