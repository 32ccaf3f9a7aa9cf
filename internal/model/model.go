package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/ifclca/ifcqto/api"
)

var (
	// ErrSourceUnavailable is returned when the model cannot be opened or parsed.
	ErrSourceUnavailable = errors.New("source model unavailable")
	// ErrEmptySource is returned when the model contains no elements.
	ErrEmptySource = errors.New("source model has no elements")
)

// Model is a read-only, fully loaded building model.
type Model struct {
	schema    string
	unitScale float64 // native length unit -> metres

	elements  []api.Element
	materials map[string]*api.MaterialAssociation

	// Inverse material association: association ID -> bitmap of element ordinals.
	byMaterial map[string]*roaring.Bitmap
}

// Open loads a model snapshot. The format is chosen by file extension:
// ".db"/".sqlite" for a SQLite snapshot, anything else is parsed as JSON.
// Any failure is wrapped in ErrSourceUnavailable.
func Open(path string) (*Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var (
		snap *api.Snapshot
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		snap, err = LoadSQLite(path)
	default:
		snap, err = LoadJSON(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return New(snap), nil
}

// New indexes a snapshot. The snapshot must not be mutated afterwards.
func New(snap *api.Snapshot) *Model {
	m := &Model{
		schema:     snap.Schema,
		unitScale:  snap.LengthUnitScale,
		elements:   snap.Elements,
		materials:  make(map[string]*api.MaterialAssociation, len(snap.MaterialAssociations)),
		byMaterial: make(map[string]*roaring.Bitmap),
	}
	if m.unitScale <= 0 {
		m.unitScale = 1 // SI metre
	}
	for i := range snap.MaterialAssociations {
		a := &snap.MaterialAssociations[i]
		m.materials[a.ID] = a
	}
	for i, el := range m.elements {
		if el.MaterialRef == "" {
			continue
		}
		bm, ok := m.byMaterial[el.MaterialRef]
		if !ok {
			bm = roaring.New()
			m.byMaterial[el.MaterialRef] = bm
		}
		bm.Add(uint32(i))
	}
	return m
}

// Schema returns the IFC schema identifier, if known.
func (m *Model) Schema() string { return m.schema }

// Elements returns all elements in model order.
func (m *Model) Elements() []api.Element { return m.elements }

// Len returns the number of elements.
func (m *Model) Len() int { return len(m.elements) }

// Material resolves the material association of an element.
// Elements without a reference, or with a dangling one, get MaterialNone;
// the second return value is false only for a dangling reference.
func (m *Model) Material(el api.Element) (api.MaterialAssociation, bool) {
	if el.MaterialRef == "" {
		return api.MaterialAssociation{Kind: api.MaterialNone}, true
	}
	a, ok := m.materials[el.MaterialRef]
	if !ok {
		return api.MaterialAssociation{ID: el.MaterialRef, Kind: api.MaterialNone}, false
	}
	return *a, true
}

// AssociatedElements returns the elements that reference the association,
// in model order.
func (m *Model) AssociatedElements(assocID string) []api.Element {
	bm, ok := m.byMaterial[assocID]
	if !ok {
		return nil
	}
	out := make([]api.Element, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, m.elements[it.Next()])
	}
	return out
}

// EachAssociated calls fn for the elements that reference the association,
// in model order, until fn returns false. Elements are not copied.
func (m *Model) EachAssociated(assocID string, fn func(el *api.Element) bool) {
	bm, ok := m.byMaterial[assocID]
	if !ok {
		return
	}
	it := bm.Iterator()
	for it.HasNext() {
		if !fn(&m.elements[it.Next()]) {
			return
		}
	}
}

// UnitScaleToMillimeters converts one native length unit into millimetres.
func (m *Model) UnitScaleToMillimeters() float64 {
	return m.unitScale * 1000
}

// UnitScaleToMeters converts one native length unit into metres.
func (m *Model) UnitScaleToMeters() float64 {
	return m.unitScale
}
