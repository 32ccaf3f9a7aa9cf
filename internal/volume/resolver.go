// Package volume resolves the total volume of an element from the
// sources it exposes, in a fixed order of trust.
package volume

import (
	"context"
	"math"

	"github.com/ifclca/ifcqto/api"
	"github.com/ifclca/ifcqto/internal/property"
)

// Source is the provenance of a resolved volume.
type Source string

const (
	SourceQuantity   Source = "explicit-quantity"
	SourceProperty   Source = "explicit-property"
	SourceGeometry   Source = "geometry-derived"
	SourceUnresolved Source = "unresolved"
)

// Resolved is a total volume in m3 with its provenance.
// A nil Value means unresolved, which is distinct from zero.
type Resolved struct {
	Value  *float64
	Source Source
}

// Known reports whether a value was resolved.
func (r Resolved) Known() bool { return r.Value != nil }

// Or returns the value, or def when unresolved.
func (r Resolved) Or(def float64) float64 {
	if r.Value == nil {
		return def
	}
	return *r.Value
}

// Unresolved is the terminal state of the chain.
func Unresolved() Resolved { return Resolved{Source: SourceUnresolved} }

func resolved(v float64, src Source) Resolved {
	return Resolved{Value: &v, Source: src}
}

// GeometryEvaluator computes a volume from a shape. It may be slow and may fail.
type GeometryEvaluator interface {
	EvaluateVolume(ctx context.Context, shape *api.Shape) (float64, error)
}

// GeometryResult is the outcome of the geometry step: either a volume or
// the reason it could not be computed. It never aborts the caller.
type GeometryResult struct {
	Volume float64
	Err    error
}

// OK reports whether the step produced a volume.
func (g GeometryResult) OK() bool { return g.Err == nil }

// Resolution is the output of Resolve.
type Resolution struct {
	Volume Resolved
	// Geometry is set when the geometry step ran.
	Geometry *GeometryResult
}

// Names lists the quantity and property names accepted as a volume,
// in order of preference.
var Names = []string{"NetVolume", "GrossVolume"}

// Resolver runs the fallback chain. A nil Geometry disables step 3.
type Resolver struct {
	Geometry GeometryEvaluator
	Names    []string
}

func NewResolver(geom GeometryEvaluator) *Resolver {
	return &Resolver{Geometry: geom, Names: Names}
}

// Resolve returns the first available volume among explicit quantities,
// explicit properties and geometry, or Unresolved.
func (r *Resolver) Resolve(ctx context.Context, el api.Element) Resolution {
	if v, ok := r.fromQuantities(el); ok {
		return Resolution{Volume: resolved(v, SourceQuantity)}
	}
	if v, ok := r.fromProperties(el); ok {
		return Resolution{Volume: resolved(v, SourceProperty)}
	}
	if r.Geometry == nil {
		return Resolution{Volume: Unresolved()}
	}
	g := r.fromGeometry(ctx, el)
	if !g.OK() {
		return Resolution{Volume: Unresolved(), Geometry: &g}
	}
	return Resolution{Volume: resolved(g.Volume, SourceGeometry), Geometry: &g}
}

func (r *Resolver) fromQuantities(el api.Element) (float64, bool) {
	for _, name := range r.Names {
		for _, qs := range el.QuantitySets {
			for _, q := range qs.Quantities {
				if q.Name == name && q.Kind == api.QuantityVolume && valid(q.Value) {
					return q.Value, true
				}
			}
		}
	}
	return 0, false
}

// fromProperties scans every property set, not only the common ones.
func (r *Resolver) fromProperties(el api.Element) (float64, bool) {
	for _, name := range r.Names {
		for _, ps := range el.PropertySets {
			for _, p := range ps.Properties {
				if p.Name != name {
					continue
				}
				if f, ok := property.AsFloat(p.Value); ok && valid(f) {
					return f, true
				}
			}
		}
	}
	return 0, false
}

func (r *Resolver) fromGeometry(ctx context.Context, el api.Element) GeometryResult {
	v, err := r.Geometry.EvaluateVolume(ctx, el.Shape)
	if err != nil {
		return GeometryResult{Err: err}
	}
	if !valid(v) {
		return GeometryResult{Err: errInvalidVolume(v)}
	}
	return GeometryResult{Volume: v}
}

func valid(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
