package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes all top-level blocks of one file.
type fileRoot struct {
	Software []*softwareBlock `hcl:"software,block"`
	Remain   hcl.Body         `hcl:",remain"`
}

type softwareBlock struct {
	Name         string         `hcl:"name,label"`
	Version      string         `hcl:"version"`
	RelativePath hcl.Expression `hcl:"relative_path,optional"`
	Dependencies []string       `hcl:"dependencies,optional"`
	Source       *sourceBlock   `hcl:"source,block"`
	Build        hcl.Expression `hcl:"build,optional"`
}

type sourceBlock struct {
	URL      hcl.Expression `hcl:"url"`
	Checksum string         `hcl:"checksum,optional"`
	SHA256   string         `hcl:"sha256,optional"`
	SHA512   string         `hcl:"sha512,optional"`
	Extract  string         `hcl:"extract,optional"`
}
