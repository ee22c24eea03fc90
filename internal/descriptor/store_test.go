package descriptor

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/omnibuild/internal/extract"
)

const zeroSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func sample(name string, deps ...string) *Descriptor {
	return &Descriptor{
		Name:         name,
		Version:      "1.0.0",
		Dependencies: deps,
		Source: Source{
			URL:      "https://example.com/" + name + ".tar.gz",
			Checksum: zeroSHA256,
			Extract:  extract.TarGz,
		},
	}
}

func TestStoreRegister(t *testing.T) {
	t.Run("duplicate name is rejected", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, s.Register(sample("zlib")))

		err := s.Register(sample("zlib"))
		var dup *DuplicateNameError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "zlib", dup.Name)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("invalid descriptors are rejected", func(t *testing.T) {
		cases := map[string]func(d *Descriptor){
			"empty name":       func(d *Descriptor) { d.Name = "" },
			"empty version":    func(d *Descriptor) { d.Version = "" },
			"empty url":        func(d *Descriptor) { d.Source.URL = "" },
			"bad checksum":     func(d *Descriptor) { d.Source.Checksum = "xyz" },
			"unknown extract":  func(d *Descriptor) { d.Source.Extract = extract.Method("rar") },
			"duplicate dep":    func(d *Descriptor) { d.Dependencies = []string{"a", "a"} },
			"empty dependency": func(d *Descriptor) { d.Dependencies = []string{""} },
			"name with slash":  func(d *Descriptor) { d.Name = "vendor/openssl" },
			"dot-dot name":     func(d *Descriptor) { d.Name = ".." },
			"parent path":      func(d *Descriptor) { d.RelativePath = "../precious" },
			"nested escape":    func(d *Descriptor) { d.RelativePath = "src/../../precious" },
			"dot path":         func(d *Descriptor) { d.RelativePath = "." },
			"absolute path":    func(d *Descriptor) { d.RelativePath = "/opt/openssl" },
			"escaping version": func(d *Descriptor) { d.Version = "1.0/../../.." },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				d := sample("openssl")
				mutate(d)
				var invalid *InvalidDescriptorError
				require.ErrorAs(t, NewStore().Register(d), &invalid)
			})
		}
	})
}

func TestStoreGet(t *testing.T) {
	s, err := NewStoreFrom(sample("cython"), sample("snowflake", "cython"))
	require.NoError(t, err)

	got, err := s.Get("snowflake")
	require.NoError(t, err)
	assert.Equal(t, []string{"cython"}, got.Dependencies)

	_, err = s.Get("missing")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "NotFoundError", nf.Kind())
}

func TestStoreIsImmutable(t *testing.T) {
	original := sample("snowflake", "cython")
	s, err := NewStoreFrom(original)
	require.NoError(t, err)

	original.Version = "9.9.9"
	original.Dependencies[0] = "mutated"

	got, err := s.Get("snowflake")
	require.NoError(t, err)
	got.Dependencies[0] = "also-mutated"

	again, err := s.Get("snowflake")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", again.Version)
	assert.Equal(t, []string{"cython"}, again.Dependencies)
}

func TestStoreNamesAndAll(t *testing.T) {
	s, err := NewStoreFrom(sample("c"), sample("a"), sample("b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, s.Names())

	var names []string
	for _, d := range s.All() {
		names = append(names, d.Name)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
		t.Errorf("All() order mismatch (-want +got):\n%s", diff)
	}
}

func TestDescriptorPath(t *testing.T) {
	d := sample("snowflake-connector-python")
	d.Version = "2.1.3"
	assert.Equal(t, "snowflake-connector-python-2.1.3", d.Path())

	d.RelativePath = "custom"
	assert.Equal(t, "custom", d.Path())
}

func TestLocalPath(t *testing.T) {
	tests := map[string]bool{
		"zlib-1.3.1":         true,
		"python/3.12":        true,
		"a/../b":             true,
		"":                   false,
		".":                  false,
		"./":                 false,
		"..":                 false,
		"../precious":        false,
		"src/../../precious": false,
		"/opt/zlib":          false,
	}
	for in, want := range tests {
		assert.Equal(t, want, LocalPath(in), in)
	}
}

func TestCacheKey(t *testing.T) {
	a := sample("zlib")
	b := sample("zlib")
	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.Len(t, a.CacheKey(), 64)

	b.Source.Checksum = strings.ToUpper(b.Source.Checksum)
	assert.Equal(t, a.CacheKey(), b.CacheKey(), "checksum case must not change the key")

	b.Version = "1.0.1"
	assert.NotEqual(t, a.CacheKey(), b.CacheKey())

	// Length prefixing keeps field boundaries unambiguous.
	c := sample("ab")
	c.Version = "c"
	d := sample("a")
	d.Version = "bc"
	assert.NotEqual(t, c.CacheKey(), d.CacheKey())
}

func TestParseChecksum(t *testing.T) {
	tests := []struct {
		in      string
		algo    Algorithm
		wantErr bool
	}{
		{in: zeroSHA256, algo: SHA256},
		{in: "sha256:" + zeroSHA256, algo: SHA256},
		{in: "d41d8cd98f00b204e9800998ecf8427e", algo: MD5},
		{in: "da39a3ee5e6b4b0d3255bfef95601890afd80709", algo: SHA1},
		{in: "SHA1:DA39A3EE5E6B4B0D3255BFEF95601890AFD80709", algo: SHA1},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "sha256:abc", wantErr: true},
		{in: "blake3:" + zeroSHA256, wantErr: true},
		{in: strings.Repeat("z", 64), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			algo, _, err := ParseChecksum(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.algo, algo)
		})
	}
}
