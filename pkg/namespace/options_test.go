package namespace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/namespace"
)

func TestAddVectorWithOptionsSetsID(t *testing.T) {
	m := namespace.NewManager("", newIDNode(t), nil)
	ns, err := m.Create(namespace.Config{Name: "ns", Dim: 2, Variant: index.VariantFlat, Metric: distance.Euclidean})
	require.NoError(t, err)

	id, err := ns.AddVectorWithOptions([]float32{1, 0}, nil, namespace.WithID(42))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestSearchWithOptionsAppliesFilter(t *testing.T) {
	m := namespace.NewManager("", newIDNode(t), nil)
	ns, err := m.Create(namespace.Config{Name: "ns", Dim: 2, Variant: index.VariantFlat, Metric: distance.Euclidean})
	require.NoError(t, err)

	_, err = ns.AddVectorWithOptions([]float32{1, 0}, gvtypes.Metadata{{Key: "color", Value: "red"}}, namespace.WithID(1))
	require.NoError(t, err)
	_, err = ns.AddVectorWithOptions([]float32{1, 0}, gvtypes.Metadata{{Key: "color", Value: "blue"}}, namespace.WithID(2))
	require.NoError(t, err)

	pred := filterByColor("blue")
	results, err := ns.SearchWithOptions([]float32{1, 0}, 5, namespace.WithFilter(pred))
	require.NoError(t, err)
	require.Len(t, results, 1)
	v, _ := results[0].Vector.Metadata.Get("color")
	assert.Equal(t, "blue", v)
}

func TestRangeSearchWithOptionsCapsResults(t *testing.T) {
	m := namespace.NewManager("", newIDNode(t), nil)
	ns, err := m.Create(namespace.Config{Name: "ns", Dim: 2, Variant: index.VariantFlat, Metric: distance.Euclidean})
	require.NoError(t, err)

	for i := uint64(1); i <= 5; i++ {
		_, err := ns.AddVectorWithOptions([]float32{float32(i), 0}, nil, namespace.WithID(i))
		require.NoError(t, err)
	}

	results, err := ns.RangeSearchWithOptions([]float32{1, 0}, 10, namespace.WithMaxResults(2))
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

type colorFilter struct{ want string }

func (f colorFilter) Eval(metadata gvtypes.Metadata) bool {
	v, ok := metadata.Get("color")
	return ok && v == f.want
}

func filterByColor(want string) colorFilter {
	return colorFilter{want: want}
}
