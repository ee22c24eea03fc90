package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/omnibuild/internal/descriptor"
	"github.com/vk/omnibuild/internal/extract"
)

// EmptySHA256 is the sha256 digest of zero bytes.
const EmptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Component returns a valid descriptor for name depending on deps.
func Component(name string, deps ...string) *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Name:         name,
		Version:      "1.0",
		Dependencies: deps,
		Source: descriptor.Source{
			URL:      "https://example.com/" + name + ".tar.gz",
			Checksum: EmptySHA256,
			Extract:  extract.TarGz,
		},
	}
}

// Store registers descriptors in a new store and fails the test on error.
func Store(t *testing.T, descriptors ...*descriptor.Descriptor) *descriptor.Store {
	t.Helper()
	s, err := descriptor.NewStoreFrom(descriptors...)
	require.NoError(t, err)
	return s
}
