// Package material splits an element's total volume across the materials
// of its material association.
//
// Fractions are computed per call from the owning element's data and are
// never written back onto the shared association definition: several
// elements may reference one constituent set with different widths.
package material

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/ifclca/ifcqto/api"
	"github.com/ifclca/ifcqto/internal/volume"
)

// Unnamed is the sentinel used when no material name is available.
const Unnamed = "Unnamed Material"

// Basis records how fractions were derived.
type Basis string

const (
	BasisWhole     Basis = "whole"       // single component, fraction 1
	BasisThickness Basis = "thickness"   // layer thickness ratio
	BasisWidth     Basis = "width"       // recovered constituent width ratio
	BasisEqual     Basis = "equal-split" // zero denominator, 1/n each
)

// Component is one named share of the total volume.
// ID is assigned later by the record builder.
type Component struct {
	ID       string
	Name     string
	Material string // constituent material, empty for layers
	Volume   float64
	Fraction float64
}

// Allocation is the ordered component list plus how it was derived.
type Allocation struct {
	Components []Component
	Basis      Basis
	// Degenerate is set when a proportional split fell back to equal fractions.
	Degenerate bool
	// Reason explains a degenerate allocation.
	Reason string
	// WidthSource is the GUID of the element whose quantities supplied
	// constituent widths.
	WidthSource string
}

// Associations is the model capability needed for constituent sets.
type Associations interface {
	EachAssociated(assocID string, fn func(el *api.Element) bool)
	UnitScaleToMillimeters() float64
}

// Allocator holds the model handle and a per-set memo of the widths found
// on referencing elements. The memo lives on the allocator, never on the
// shared association, and holds raw widths only.
type Allocator struct {
	model Associations

	mu       sync.Mutex
	siblings map[string]*setWidths
}

type setWidths struct {
	once   sync.Once
	widths []float64 // native units, nil when no element has any
	source string
}

func NewAllocator(model Associations) *Allocator {
	return &Allocator{model: model, siblings: make(map[string]*setWidths)}
}

// Allocate splits total across the association of owner.
func (a *Allocator) Allocate(owner api.Element, assoc api.MaterialAssociation, total volume.Resolved) Allocation {
	switch assoc.Kind {
	case api.MaterialSingle:
		return whole(nameOr(assoc.Material), total)
	case api.MaterialLayerSetUsage:
		return a.layers(assoc.Layers, total)
	case api.MaterialConstituentSet:
		return a.constituents(owner, assoc, total)
	case api.MaterialNone, "":
		return whole(Unnamed, total)
	default:
		out := whole(Unnamed, total)
		out.Reason = fmt.Sprintf("unknown association kind %q", assoc.Kind)
		return out
	}
}

func whole(name string, total volume.Resolved) Allocation {
	return Allocation{
		Components: []Component{{Name: name, Fraction: 1, Volume: Round(total.Or(0), 5)}},
		Basis:      BasisWhole,
	}
}

func (a *Allocator) layers(layers []api.MaterialLayer, total volume.Resolved) Allocation {
	if len(layers) == 0 {
		return whole(Unnamed, total)
	}
	weights := make([]float64, len(layers))
	names := make([]string, len(layers))
	for i, l := range layers {
		weights[i] = nonNegative(l.Thickness)
		names[i] = nameOr(l.Material)
	}
	out := proportional(names, nil, weights, total, BasisThickness)
	if out.Degenerate {
		out.Reason = "layer set has zero total thickness"
	}
	return out
}

func (a *Allocator) constituents(owner api.Element, set api.MaterialAssociation, total volume.Resolved) Allocation {
	cs := set.Constituents
	if len(cs) == 0 {
		return whole(Unnamed, total)
	}
	names := make([]string, len(cs))
	materials := make([]string, len(cs))
	for i, c := range cs {
		names[i] = nameOr(c.Name)
		materials[i] = c.Material
	}

	widths, source := a.recoverWidths(owner, set)
	out := proportional(names, materials, widths, total, BasisWidth)
	out.WidthSource = source
	if out.Degenerate {
		if source == "" {
			out.Reason = "no constituent width quantities found"
		} else {
			out.Reason = "constituent widths sum to zero"
		}
	}
	return out
}

// recoverWidths reads constituent widths, in millimetres, from the owner's
// quantities or, failing that, from the first element in model order that
// references the same set and carries matching widths. Widths are bound to
// constituents by normalized name and ordinal: the k-th constituent named X
// takes the k-th record named X.
func (a *Allocator) recoverWidths(owner api.Element, set api.MaterialAssociation) ([]float64, string) {
	widths, source := a.ownWidths(owner, set)
	if source == "" {
		widths, source = a.siblingWidths(set)
	}
	if source == "" {
		return make([]float64, len(set.Constituents)), ""
	}
	scale := 1.0
	if a.model != nil {
		scale = a.model.UnitScaleToMillimeters()
	}
	out := make([]float64, len(widths))
	for i, w := range widths {
		out[i] = w * scale
	}
	return out, source
}

func (a *Allocator) ownWidths(owner api.Element, set api.MaterialAssociation) ([]float64, string) {
	widths, matched := matchWidths(&owner, set.Constituents)
	if matched == 0 {
		return nil, ""
	}
	return widths, owner.GUID
}

// siblingWidths scans the referencing elements once per set. The owner
// itself is only reached here when it has no matching widths, so the first
// match in model order is the same for every owner of the set.
func (a *Allocator) siblingWidths(set api.MaterialAssociation) ([]float64, string) {
	if a.model == nil || set.ID == "" {
		return nil, ""
	}
	a.mu.Lock()
	sw, ok := a.siblings[set.ID]
	if !ok {
		sw = &setWidths{}
		a.siblings[set.ID] = sw
	}
	a.mu.Unlock()

	sw.once.Do(func() {
		a.model.EachAssociated(set.ID, func(el *api.Element) bool {
			widths, matched := matchWidths(el, set.Constituents)
			if matched == 0 {
				return true
			}
			sw.widths, sw.source = widths, el.GUID
			return false
		})
	})
	return sw.widths, sw.source
}

type widthRecord struct {
	key   string
	value float64
}

// widthRecords flattens the length quantities of an element in declaration
// order. A quantity named "Width" inside a set is keyed by the set name,
// which is how complex per-constituent quantities are exported.
func widthRecords(el *api.Element) []widthRecord {
	var out []widthRecord
	for _, qs := range el.QuantitySets {
		for _, q := range qs.Quantities {
			if q.Kind != api.QuantityLength {
				continue
			}
			key := q.Name
			if strings.EqualFold(q.Name, "Width") {
				key = qs.Name
			}
			out = append(out, widthRecord{key: normalize(key), value: nonNegative(q.Value)})
		}
	}
	return out
}

func matchWidths(el *api.Element, cs []api.MaterialConstituent) ([]float64, int) {
	records := widthRecords(el)
	widths := make([]float64, len(cs))
	if len(records) == 0 {
		return widths, 0
	}
	seen := make(map[string]int, len(cs))
	matched := 0
	for i, c := range cs {
		key := normalize(firstNonEmpty(c.Name, c.Material))
		ordinal := seen[key]
		seen[key] = ordinal + 1
		n := 0
		for _, r := range records {
			if r.key != key {
				continue
			}
			if n == ordinal {
				widths[i] = r.value
				matched++
				break
			}
			n++
		}
	}
	return widths, matched
}

// proportional derives fractions from weights; a zero sum yields 1/n each.
func proportional(names, materials []string, weights []float64, total volume.Resolved, basis Basis) Allocation {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	out := Allocation{Basis: basis, Components: make([]Component, len(names))}
	if sum == 0 {
		out.Basis = BasisEqual
		out.Degenerate = true
	}
	t := total.Or(0)
	for i, name := range names {
		f := 1 / float64(len(names))
		if sum != 0 {
			f = weights[i] / sum
		}
		c := Component{Name: name, Fraction: f, Volume: Round(t*f, 5)}
		if materials != nil {
			c.Material = materials[i]
		}
		out.Components[i] = c
	}
	return out
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func nameOr(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unnamed
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
