package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/omnibuild/internal/ctxlog"
	"github.com/vk/omnibuild/internal/descriptor"
	"github.com/vk/omnibuild/internal/extract"
)

// Loader reads software blocks into descriptors.
type Loader struct {
	overrides map[string]string
}

// NewLoader creates a Loader. overrides maps component names to a version
// that replaces the one declared in the file.
func NewLoader(overrides map[string]string) *Loader {
	return &Loader{overrides: overrides}
}

// Load parses every .hcl file under paths, in path order, and returns the
// descriptors in declaration order. Missing paths are ignored.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]*descriptor.Descriptor, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	var out []*descriptor.Descriptor
	used := make(map[string]bool, len(l.overrides))

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, sw := range root.Software {
			if v, ok := l.overrides[sw.Name]; ok {
				logger.Info("Overriding component version.", "component", sw.Name, "declared", sw.Version, "version", v)
				sw.Version = v
				used[sw.Name] = true
			}
			d, err := translateSoftware(ctx, sw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			out = append(out, d)
		}
	}

	for name := range l.overrides {
		if !used[name] {
			return nil, fmt.Errorf("version override for unknown component %q", name)
		}
	}

	logger.Debug("HCL loading complete.", "components", len(out))
	return out, nil
}

// translateSoftware evaluates one block into a descriptor.
func translateSoftware(ctx context.Context, sw *softwareBlock) (*descriptor.Descriptor, error) {
	evalCtx := newEvalContext(sw.Name, sw.Version)

	d := &descriptor.Descriptor{
		Name:         sw.Name,
		Version:      sw.Version,
		Dependencies: sw.Dependencies,
	}

	if isExprDefined(ctx, sw.RelativePath, "relative_path") {
		p, err := evalString(sw.RelativePath, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("software %q: relative_path: %w", sw.Name, err)
		}
		d.RelativePath = p
	}

	if sw.Source == nil {
		return nil, fmt.Errorf("software %q: a source block is required", sw.Name)
	}
	url, err := evalString(sw.Source.URL, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("software %q: source url: %w", sw.Name, err)
	}
	checksum, err := sourceChecksum(sw.Source)
	if err != nil {
		return nil, fmt.Errorf("software %q: %w", sw.Name, err)
	}
	method, err := extract.ParseMethod(sw.Source.Extract)
	if err != nil {
		return nil, fmt.Errorf("software %q: %w", sw.Name, err)
	}
	d.Source = descriptor.Source{URL: url, Checksum: checksum, Extract: method}

	if isExprDefined(ctx, sw.Build, "build") {
		build, err := evalStringList(sw.Build, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("software %q: build: %w", sw.Name, err)
		}
		d.Build = build
	}
	return d, nil
}

// sourceChecksum picks the single declared checksum attribute and tags it
// with its algorithm.
func sourceChecksum(src *sourceBlock) (string, error) {
	var found []string
	if src.Checksum != "" {
		found = append(found, src.Checksum)
	}
	if src.SHA256 != "" {
		found = append(found, string(descriptor.SHA256)+":"+src.SHA256)
	}
	if src.SHA512 != "" {
		found = append(found, string(descriptor.SHA512)+":"+src.SHA512)
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("source needs one of checksum, sha256 or sha512")
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("source declares more than one checksum")
	}
}

// isExprDefined reports whether an optional attribute was written in the
// source. Omitted optional attributes decode to a zero-width expression.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	defined := r.End.Byte > r.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName, "hcl_range", r.String(), "is_defined", defined)
	return defined
}

// findAllHCLFiles walks all given paths and returns a sorted, de-duplicated
// list of the .hcl files found.
func findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			allFiles = append(allFiles, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}

		var inDir []string
		err = filepath.WalkDir(path, func(p string, entry os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.IsDir() && filepath.Ext(p) == ".hcl" {
				inDir = append(inDir, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(inDir)
		for _, p := range inDir {
			add(p)
		}
	}
	return allFiles, nil
}
