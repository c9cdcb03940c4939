package namespace_test

import (
	"context"
	"os"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/namespace"
)

func newIDNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func TestManagerCreateGetDelete(t *testing.T) {
	m := namespace.NewManager("", newIDNode(t), nil)

	cfg := namespace.Config{Name: "docs", Dim: 4, Variant: index.VariantFlat, Metric: distance.Euclidean}
	ns, err := m.Create(cfg)
	require.NoError(t, err)
	assert.Equal(t, "docs", ns.Name())

	_, err = m.Create(cfg)
	assert.Error(t, err)

	got, err := m.Get("docs")
	require.NoError(t, err)
	assert.Same(t, ns, got)

	assert.True(t, m.Exists("docs"))
	assert.ElementsMatch(t, []string{"docs"}, m.List())

	require.NoError(t, m.Delete("docs"))
	assert.False(t, m.Exists("docs"))
}

func TestManagerGetMissingFails(t *testing.T) {
	m := namespace.NewManager("", newIDNode(t), nil)
	_, err := m.Get("missing")
	assert.Error(t, err)
}

func TestNamespaceAddSearchDeleteQuota(t *testing.T) {
	m := namespace.NewManager("", newIDNode(t), nil)
	ns, err := m.Create(namespace.Config{
		Name: "ns", Dim: 4, Variant: index.VariantFlat, Metric: distance.Euclidean,
		MaxVectors: 2,
	})
	require.NoError(t, err)

	id1, err := ns.AddVector(0, []float32{1, 0, 0, 0}, gvtypes.Metadata{{Key: "k", Value: "v"}})
	require.NoError(t, err)
	_, err = ns.AddVector(0, []float32{0, 1, 0, 0}, nil)
	require.NoError(t, err)

	_, err = ns.AddVector(0, []float32{0, 0, 1, 0}, nil)
	assert.Error(t, err)

	results, err := ns.Search([]float32{1, 0, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Distance)

	require.NoError(t, ns.DeleteVector(id1))
	assert.Equal(t, uint64(1), ns.Count())
}

func TestNamespaceUpdateVector(t *testing.T) {
	m := namespace.NewManager("", newIDNode(t), nil)
	ns, err := m.Create(namespace.Config{
		Name: "upd", Dim: 2, Variant: index.VariantFlat, Metric: distance.Euclidean,
	})
	require.NoError(t, err)

	id, err := ns.AddVector(0, []float32{1, 1}, nil)
	require.NoError(t, err)

	require.NoError(t, ns.UpdateVector(id, []float32{5, 5}))

	results, err := ns.Search([]float32{5, 5}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Distance)
	assert.Equal(t, id, results[0].Vector.ID)

	assert.Error(t, ns.UpdateVector(id+1000, []float32{0, 0}))
}

func TestManagerSaveAllLoadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := namespace.NewManager(dir, newIDNode(t), nil)

	cfg := namespace.Config{Name: "round", Dim: 3, Variant: index.VariantKDTree, Metric: distance.Euclidean}
	ns, err := m.Create(cfg)
	require.NoError(t, err)
	_, err = ns.AddVector(1, []float32{1, 2, 3}, gvtypes.Metadata{{Key: "color", Value: "red"}})
	require.NoError(t, err)

	require.NoError(t, m.SaveAll(context.Background()))

	m2 := namespace.NewManager(dir, newIDNode(t), nil)
	require.NoError(t, m2.LoadAll(context.Background(), map[string]namespace.Config{"round": cfg}))

	loaded, err := m2.Get("round")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loaded.Count())

	results, err := loaded.Search([]float32{1, 2, 3}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Distance)
	v, ok := results[0].Vector.Metadata.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "red", v)

	require.NoError(t, os.RemoveAll(dir))
}

// TestManagerSaveAllLoadAllRoundTripWithSparse covers a namespace with
// EnableSparse set: SaveAll must write the auxiliary sparse index
// alongside dense storage, and LoadAll must reconstruct and attach it,
// not leave it nil.
func TestManagerSaveAllLoadAllRoundTripWithSparse(t *testing.T) {
	dir := t.TempDir()
	m := namespace.NewManager(dir, newIDNode(t), nil)

	cfg := namespace.Config{
		Name: "hybrid", Dim: 3, Variant: index.VariantFlat, Metric: distance.Euclidean,
		EnableSparse: true, SparseDim: 10,
	}
	ns, err := m.Create(cfg)
	require.NoError(t, err)
	_, err = ns.AddVector(1, []float32{1, 2, 3}, nil)
	require.NoError(t, err)

	ns.SparseMu().Lock()
	err = ns.Sparse().Add(&gvtypes.SparseVector{
		ID:  1,
		Dim: 10,
		Entries: []gvtypes.SparseEntry{
			{Index: 2, Value: 0.5},
			{Index: 7, Value: 1.5},
		},
		Metadata: gvtypes.Metadata{{Key: "topic", Value: "sports"}},
	})
	ns.SparseMu().Unlock()
	require.NoError(t, err)

	require.NoError(t, m.SaveAll(context.Background()))

	m2 := namespace.NewManager(dir, newIDNode(t), nil)
	require.NoError(t, m2.LoadAll(context.Background(), map[string]namespace.Config{"hybrid": cfg}))

	loaded, err := m2.Get("hybrid")
	require.NoError(t, err)
	require.NotNil(t, loaded.Sparse())
	assert.Equal(t, uint64(1), loaded.Sparse().Count())
	assert.Equal(t, uint32(10), loaded.Sparse().Dim())

	results, err := loaded.Sparse().Search(&gvtypes.SparseVector{
		Dim: 10,
		Entries: []gvtypes.SparseEntry{
			{Index: 2, Value: 0.5},
			{Index: 7, Value: 1.5},
		},
	}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].Sparse.ID)

	require.NoError(t, os.RemoveAll(dir))
}
