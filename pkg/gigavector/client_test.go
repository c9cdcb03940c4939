package gigavector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gigavector"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/namespace"
)

// TestClientPersistenceRoundTrip exercises a full persistence
// round-trip through the top-level facade: create a
// dim=3 KD-tree namespace, insert one vector with metadata, save,
// reload into a fresh client, and confirm the vector and its metadata
// survive.
func TestClientPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &gigavector.Config{BasePath: dir, SnowflakeNodeID: 1}

	client, err := gigavector.NewClient(cfg, nil)
	require.NoError(t, err)

	nsCfg := namespace.Config{Name: "docs", Dim: 3, Variant: index.VariantKDTree, Metric: distance.Euclidean}
	_, err = client.CreateNamespace(nsCfg)
	require.NoError(t, err)

	_, err = client.AddVector("docs", 1, []float32{1, 2, 3}, gvtypes.Metadata{{Key: "color", Value: "red"}})
	require.NoError(t, err)

	require.NoError(t, client.SaveAll(context.Background()))
	client.Close()

	client2, err := gigavector.NewClient(&gigavector.Config{BasePath: dir, SnowflakeNodeID: 1}, nil)
	require.NoError(t, err)
	defer client2.Close()

	require.NoError(t, client2.LoadAll(context.Background(), map[string]namespace.Config{"docs": nsCfg}))

	ns, err := client2.Namespace("docs")
	require.NoError(t, err)

	results, err := ns.Search([]float32{1, 2, 3}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Distance)
	v, ok := results[0].Vector.Metadata.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "red", v)
}

func TestClientUpdateVector(t *testing.T) {
	client, err := gigavector.NewClient(&gigavector.Config{SnowflakeNodeID: 1}, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.CreateNamespace(namespace.Config{Name: "ns", Dim: 2, Variant: index.VariantFlat, Metric: distance.Euclidean})
	require.NoError(t, err)

	id, err := client.AddVector("ns", 0, []float32{1, 1}, nil)
	require.NoError(t, err)

	require.NoError(t, client.UpdateVector("ns", id, []float32{9, 9}))

	ns, err := client.Namespace("ns")
	require.NoError(t, err)
	results, err := ns.Search([]float32{9, 9}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Distance)
}

func TestClientVacuumOnDemand(t *testing.T) {
	client, err := gigavector.NewClient(&gigavector.Config{SnowflakeNodeID: 1}, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.CreateNamespace(namespace.Config{Name: "ns", Dim: 2, Variant: index.VariantFlat, Metric: distance.Euclidean})
	require.NoError(t, err)

	for i := uint64(1); i <= 4; i++ {
		_, err := client.AddVector("ns", i, []float32{float32(i), 0}, nil)
		require.NoError(t, err)
	}
	ns, err := client.Namespace("ns")
	require.NoError(t, err)
	require.NoError(t, ns.DeleteVector(1))
	require.NoError(t, ns.DeleteVector(2))

	stats, err := client.VacuumNamespace(context.Background(), "ns")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.VectorsCompacted)
}
