package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.Empty(t, g.nodes)
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a")
	assert.Len(t, g.nodes, 1)
	nodeA, ok := g.nodes["a"]
	require.True(t, ok)
	assert.Equal(t, "a", nodeA.id)
	assert.NotNil(t, nodeA.deps)
	assert.NotNil(t, nodeA.dependents)

	g.AddNode("a") // Test idempotency
	assert.Len(t, g.nodes, 1)

	g.AddNode("b")
	assert.Len(t, g.nodes, 2)
	assert.True(t, g.Has("b"))
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("a", "b") // b depends on a
		require.NoError(t, err)

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deps)

		dependents, err := g.Dependents("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, dependents)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		err = g.AddEdge("a", "a")
		assert.ErrorContains(t, err, "self-referential edge")

		_, err = g.Dependencies("dne")
		assert.ErrorContains(t, err, "node not found")
	})
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		g := New()
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("graph with nodes but no edges has no cycles", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "c")) // Transitive edge
		require.NoError(t, g.AddEdge("c", "d"))
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("simple direct cycle reports its path", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a")) // Cycle

		var cycle *CycleError
		require.ErrorAs(t, g.DetectCycles(), &cycle)
		assert.Equal(t, []string{"a", "b", "a"}, cycle.Path)
		assert.Equal(t, "dependency cycle detected: a -> b -> a", cycle.Error())
	})

	t.Run("longer cycle is reported deterministically", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			g := New()
			for _, id := range []string{"a", "b", "c", "d"} {
				g.AddNode(id)
			}
			require.NoError(t, g.AddEdge("a", "b"))
			require.NoError(t, g.AddEdge("b", "c"))
			require.NoError(t, g.AddEdge("c", "d"))
			require.NoError(t, g.AddEdge("d", "a")) // Cycle back to the start

			var cycle *CycleError
			require.ErrorAs(t, g.DetectCycles(), &cycle)
			// a depends on d, d on c, c on b, b on a.
			assert.Equal(t, []string{"a", "d", "c", "b", "a"}, cycle.Path)
		}
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		g := New()
		// Component 1 (valid)
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))

		// Component 2 (has a cycle)
		g.AddNode("x")
		g.AddNode("y")
		g.AddNode("z")
		require.NoError(t, g.AddEdge("x", "y"))
		require.NoError(t, g.AddEdge("y", "z"))
		require.NoError(t, g.AddEdge("z", "y")) // Cycle

		var cycle *CycleError
		require.ErrorAs(t, g.DetectCycles(), &cycle)
		assert.Equal(t, []string{"y", "z", "y"}, cycle.Path)
	})
}

func TestTopologicalOrder(t *testing.T) {
	t.Run("ties broken by name", func(t *testing.T) {
		g := New()
		for _, id := range []string{"zlib", "openssl", "python", "cython", "snowflake", "libffi"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("zlib", "openssl"))
		require.NoError(t, g.AddEdge("openssl", "python"))
		require.NoError(t, g.AddEdge("libffi", "python"))
		require.NoError(t, g.AddEdge("python", "cython"))
		require.NoError(t, g.AddEdge("cython", "snowflake"))

		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"libffi", "zlib", "openssl", "python", "cython", "snowflake"}, order)
	})

	t.Run("cyclic graph cannot be ordered", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))
		_, err := g.TopologicalOrder()
		assert.ErrorContains(t, err, "not acyclic")
	})
}

func TestTransitiveDependents(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		g.AddNode(id)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("a", "d"))
	require.NoError(t, g.AddEdge("c", "d"))

	got, err := g.TransitiveDependents("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, got)

	got, err = g.TransitiveDependents("e")
	require.NoError(t, err)
	assert.Empty(t, got)
}
