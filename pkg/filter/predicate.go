// Package filter defines the compiled predicate interface consumed by
// every index's search path. The core never inspects predicate
// internals; filter expression parsing is an external collaborator.
package filter

import "github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"

// Predicate evaluates a compiled filter expression against a point's
// metadata. Implementations are supplied by the caller; the core only
// ever calls Eval.
type Predicate interface {
	Eval(metadata gvtypes.Metadata) bool
}

// PredicateFunc adapts a plain function to the Predicate interface.
type PredicateFunc func(gvtypes.Metadata) bool

// Eval calls f.
func (f PredicateFunc) Eval(metadata gvtypes.Metadata) bool { return f(metadata) }

// Pass returns true for every point. Used when predicate is nil so
// callers in the index packages can always invoke Eval unconditionally.
func Pass(gvtypes.Metadata) bool { return true }

// Coalesce returns p if non-nil, or a predicate that passes every point.
func Coalesce(p Predicate) Predicate {
	if p == nil {
		return PredicateFunc(Pass)
	}
	return p
}
