// Package record composes the normalized per-element output record.
package record

import (
	"github.com/google/uuid"
	"github.com/ifclca/ifcqto/api"
	"github.com/ifclca/ifcqto/internal/material"
	"github.com/ifclca/ifcqto/internal/volume"
)

// DefaultName replaces an empty element name.
const DefaultName = "Unnamed"

// Correlation is caller-supplied metadata, passed through unmodified.
type Correlation struct {
	Origin    string // source file reference
	SessionID string
	UserID    string
	ProjectID string
}

// Flags are optional boolean properties of an element.
type Flags struct {
	Loadbearing *bool
	External    *bool
}

// ElementRecord is immutable once built.
type ElementRecord struct {
	GUID           string
	Name           string
	Class          string
	TotalVolume    *float64
	VolumeSource   volume.Source
	Components     []material.Component
	Basis          material.Basis
	IsMultilayer   bool
	BuildingStorey *string
	IsLoadbearing  *bool
	IsExternal     *bool
	Correlation    Correlation
}

// Builder assigns component identifiers. It is safe for concurrent use.
type Builder struct {
	newID func() string
}

func NewBuilder() *Builder {
	return &Builder{newID: uuid.NewString}
}

// NewBuilderWithIDs uses newID for component identifiers, e.g. when the
// sink has its own identifier format.
func NewBuilderWithIDs(newID func() string) *Builder {
	if newID == nil {
		return NewBuilder()
	}
	return &Builder{newID: newID}
}

// Build composes an ElementRecord. It has no side effects and never fails;
// missing upstream data shows up as nil fields.
func (b *Builder) Build(el api.Element, vol volume.Resolved, alloc material.Allocation, storey *string, flags Flags, corr Correlation) ElementRecord {
	comps := make([]material.Component, len(alloc.Components))
	for i, c := range alloc.Components {
		c.ID = b.newID()
		comps[i] = c
	}
	name := el.Name
	if name == "" {
		name = DefaultName
	}
	var total *float64
	if vol.Value != nil {
		v := *vol.Value
		total = &v
	}
	src := vol.Source
	if src == "" {
		src = volume.SourceUnresolved
	}
	return ElementRecord{
		GUID:           el.GUID,
		Name:           name,
		Class:          el.Class,
		TotalVolume:    total,
		VolumeSource:   src,
		Components:     comps,
		Basis:          alloc.Basis,
		IsMultilayer:   len(comps) > 1,
		BuildingStorey: storey,
		IsLoadbearing:  flags.Loadbearing,
		IsExternal:     flags.External,
		Correlation:    corr,
	}
}

// Storey returns the name of the nearest building storey in the
// containment chain, or nil.
func Storey(el api.Element) *string {
	for _, c := range el.Containment {
		if c.Class == "IfcBuildingStorey" {
			name := c.Name
			return &name
		}
	}
	return nil
}
