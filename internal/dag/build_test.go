package dag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/omnibuild/internal/descriptor"
	"github.com/vk/omnibuild/internal/extract"
)

func component(name string, deps ...string) *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Name:         name,
		Version:      "1.0",
		Dependencies: deps,
		Source: descriptor.Source{
			URL:      "https://example.com/" + name + ".tar.gz",
			Checksum: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			Extract:  extract.TarGz,
		},
	}
}

func storeOf(t *testing.T, descriptors ...*descriptor.Descriptor) *descriptor.Store {
	t.Helper()
	s, err := descriptor.NewStoreFrom(descriptors...)
	require.NoError(t, err)
	return s
}

func TestBuild(t *testing.T) {
	t.Run("links dependencies", func(t *testing.T) {
		g, err := Build(context.Background(), storeOf(t,
			component("cython"),
			component("snowflake-connector-python", "cython"),
		))
		require.NoError(t, err)
		assert.Equal(t, []string{"cython", "snowflake-connector-python"}, g.Nodes())

		deps, err := g.Dependencies("snowflake-connector-python")
		require.NoError(t, err)
		assert.Equal(t, []string{"cython"}, deps)
	})

	t.Run("unknown dependency", func(t *testing.T) {
		_, err := Build(context.Background(), storeOf(t, component("snowflake", "cython")))
		var unknown *UnknownDependencyError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "snowflake", unknown.Component)
		assert.Equal(t, "cython", unknown.Dependency)
		assert.Equal(t, "UnknownDependencyError", unknown.Kind())
	})

	t.Run("two node cycle", func(t *testing.T) {
		_, err := Build(context.Background(), storeOf(t, component("A", "B"), component("B", "A")))
		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"A", "B", "A"}, cycle.Path)
	})

	t.Run("self dependency is a cycle", func(t *testing.T) {
		_, err := Build(context.Background(), storeOf(t, component("A", "A")))
		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"A", "A"}, cycle.Path)
	})
}
