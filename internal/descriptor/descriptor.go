package descriptor

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/omnibuild/internal/extract"
)

// Descriptor is a single buildable component: its identity, version,
// dependencies and source.
type Descriptor struct {
	// Name is the unique key of the component within a descriptor set.
	Name string
	// Version is the pinned version to build.
	Version string
	// RelativePath is the directory name the source is extracted into.
	// When empty it is derived as "<name>-<version>".
	RelativePath string
	// Dependencies are the names of components that must be built first,
	// in declared order.
	Dependencies []string
	// Source locates and authenticates the source artifact.
	Source Source
	// Build holds the commands handed to the build backend.
	Build []string
}

// Source describes where the component's source artifact lives.
type Source struct {
	URL      string
	Checksum string
	Extract  extract.Method
}

// Path returns the relative install path of the component.
func (d *Descriptor) Path() string {
	if d.RelativePath != "" {
		return d.RelativePath
	}
	return d.Name + "-" + d.Version
}

// LocalPath reports whether p names a directory strictly below the directory
// it is joined to: not absolute, not "." and not escaping through "..".
func LocalPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return false
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	return clean != "." && filepath.IsLocal(clean)
}

// CacheKey returns the deterministic identity of the component's build
// output: a hex sha256 over the length-prefixed name, version and
// normalized checksum.
func (d *Descriptor) CacheKey() string {
	h := sha256.New()
	for _, field := range []string{d.Name, d.Version, strings.ToLower(d.Source.Checksum)} {
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(len(field)))
		h.Write(size[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate reports whether the descriptor is well formed on its own. It does
// not check that dependencies exist; that is the graph builder's job.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return &InvalidDescriptorError{Reason: "name is required"}
	}
	if strings.ContainsAny(d.Name, `/\`) || d.Name == "." || d.Name == ".." {
		return &InvalidDescriptorError{Name: d.Name, Reason: "name must not contain path separators"}
	}
	if d.Version == "" {
		return &InvalidDescriptorError{Name: d.Name, Reason: "version is required"}
	}
	if !LocalPath(d.Path()) {
		return &InvalidDescriptorError{Name: d.Name, Reason: fmt.Sprintf("relative path %q must stay inside the work directory", d.Path())}
	}
	if d.Source.URL == "" {
		return &InvalidDescriptorError{Name: d.Name, Reason: "source url is required"}
	}
	if _, _, err := ParseChecksum(d.Source.Checksum); err != nil {
		return &InvalidDescriptorError{Name: d.Name, Reason: err.Error()}
	}
	if !d.Source.Extract.Valid() {
		return &InvalidDescriptorError{Name: d.Name, Reason: fmt.Sprintf("unsupported extraction method %q", d.Source.Extract)}
	}
	seen := make(map[string]struct{}, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		if dep == "" {
			return &InvalidDescriptorError{Name: d.Name, Reason: "empty dependency name"}
		}
		if _, dup := seen[dep]; dup {
			return &InvalidDescriptorError{Name: d.Name, Reason: fmt.Sprintf("dependency %q listed twice", dep)}
		}
		seen[dep] = struct{}{}
	}
	return nil
}

// clone returns a deep copy of the descriptor.
func (d *Descriptor) clone() *Descriptor {
	c := *d
	c.Dependencies = append([]string(nil), d.Dependencies...)
	c.Build = append([]string(nil), d.Build...)
	return &c
}
