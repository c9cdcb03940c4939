package namespace

import (
	"github.com/jaywyawhare/GigaVector-sub002/pkg/filter"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
)

// InsertOption configures AddVectorWithOptions, following the
// WithUserID functional-options pattern.
type InsertOption func(*InsertOptions)

// InsertOptions carries optional AddVectorWithOptions settings.
type InsertOptions struct {
	// ID requests a caller-chosen id instead of snowflake generation.
	ID uint64
}

// WithID requests a caller-chosen vector id.
func WithID(id uint64) InsertOption {
	return func(o *InsertOptions) { o.ID = id }
}

func applyInsertOptions(opts []InsertOption) *InsertOptions {
	o := &InsertOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddVectorWithOptions is AddVector with the functional-options form,
// for callers that only want to set a subset of fields.
func (ns *Namespace) AddVectorWithOptions(data []float32, metadata gvtypes.Metadata, opts ...InsertOption) (uint64, error) {
	o := applyInsertOptions(opts)
	return ns.AddVector(o.ID, data, metadata)
}

// SearchOption configures SearchWithOptions.
type SearchOption func(*SearchOptions)

// SearchOptions carries optional SearchWithOptions settings.
type SearchOptions struct {
	Filter filter.Predicate
}

// WithFilter restricts search results to points matching pred.
func WithFilter(pred filter.Predicate) SearchOption {
	return func(o *SearchOptions) { o.Filter = pred }
}

func applySearchOptions(opts []SearchOption) *SearchOptions {
	o := &SearchOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SearchWithOptions is Search with the functional-options form.
func (ns *Namespace) SearchWithOptions(query []float32, k int, opts ...SearchOption) ([]gvtypes.Result, error) {
	o := applySearchOptions(opts)
	return ns.Search(query, k, o.Filter)
}

// RangeSearchOption configures RangeSearchWithOptions.
type RangeSearchOption func(*RangeSearchOptions)

// RangeSearchOptions carries optional RangeSearchWithOptions settings.
type RangeSearchOptions struct {
	Filter     filter.Predicate
	MaxResults int
}

// WithRangeFilter restricts range-search results to points matching
// pred.
func WithRangeFilter(pred filter.Predicate) RangeSearchOption {
	return func(o *RangeSearchOptions) { o.Filter = pred }
}

// WithMaxResults caps the number of range-search results returned.
func WithMaxResults(n int) RangeSearchOption {
	return func(o *RangeSearchOptions) { o.MaxResults = n }
}

func applyRangeSearchOptions(opts []RangeSearchOption) *RangeSearchOptions {
	o := &RangeSearchOptions{MaxResults: 0}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RangeSearchWithOptions is RangeSearch with the functional-options
// form.
func (ns *Namespace) RangeSearchWithOptions(query []float32, radius float32, opts ...RangeSearchOption) ([]gvtypes.Result, error) {
	o := applyRangeSearchOptions(opts)
	return ns.RangeSearch(query, radius, o.MaxResults, o.Filter)
}
