package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// FileStore keeps one HCL record per cache key under a directory:
//
//	name     = "zlib"
//	version  = "1.3.1"
//	checksum = "9a93b2b7..."
//	built_at = "2026-10-19T08:00:00Z"
//	run_id   = "4f1c..."
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// fileRecord is the decoding target for a record file.
type fileRecord struct {
	Name     string `hcl:"name"`
	Version  string `hcl:"version"`
	Checksum string `hcl:"checksum"`
	BuiltAt  string `hcl:"built_at"`
	RunID    string `hcl:"run_id,optional"`
}

// NewFileStore creates the directory if needed and returns a FileStore.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".hcl")
}

func (s *FileStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	path := s.path(key)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, false, fmt.Errorf("parse cache record %s: %w", path, diags)
	}
	var rec fileRecord
	if diags := gohcl.DecodeBody(file.Body, nil, &rec); diags.HasErrors() {
		return nil, false, fmt.Errorf("decode cache record %s: %w", path, diags)
	}

	builtAt, err := time.Parse(time.RFC3339Nano, rec.BuiltAt)
	if err != nil {
		return nil, false, fmt.Errorf("cache record %s: invalid built_at: %w", path, err)
	}
	return &Entry{
		Key:      key,
		Name:     rec.Name,
		Version:  rec.Version,
		Checksum: rec.Checksum,
		BuiltAt:  builtAt,
		RunID:    rec.RunID,
	}, true, nil
}

func (s *FileStore) Put(_ context.Context, entry Entry) error {
	if entry.Key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(entry.Key)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("name", cty.StringVal(entry.Name))
	body.SetAttributeValue("version", cty.StringVal(entry.Version))
	body.SetAttributeValue("checksum", cty.StringVal(entry.Checksum))
	body.SetAttributeValue("built_at", cty.StringVal(entry.BuiltAt.UTC().Format(time.RFC3339Nano)))
	body.SetAttributeValue("run_id", cty.StringVal(entry.RunID))

	tmp, err := os.CreateTemp(s.dir, ".record-*")
	if err != nil {
		return fmt.Errorf("create cache record: %w", err)
	}
	if _, err := tmp.Write(hclwrite.Format(f.Bytes())); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit cache record: %w", err)
	}
	return nil
}
