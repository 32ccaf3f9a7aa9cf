package pipeline

import (
	"context"
	"fmt"

	"github.com/ifclca/ifcqto/api"
	"github.com/ifclca/ifcqto/internal/material"
	"github.com/ifclca/ifcqto/internal/property"
	"github.com/ifclca/ifcqto/internal/record"
	"github.com/ifclca/ifcqto/internal/volume"
)

// MaterialSource resolves an element's material association.
type MaterialSource interface {
	Material(el api.Element) (api.MaterialAssociation, bool)
}

// Processor runs resolve → allocate → build for one element.
// It only reads shared state, so one Processor serves all workers.
type Processor struct {
	Materials   MaterialSource
	Resolver    *volume.Resolver
	Allocator   *material.Allocator
	Builder     *record.Builder
	Properties  *property.Lookup
	Loadbearing []string
	External    []string
	Correlation record.Correlation
}

// ElementFailure describes a recovered per-element problem.
type ElementFailure struct {
	GUID   string
	Stage  string
	Reason string
}

func (f ElementFailure) Error() string {
	return fmt.Sprintf("element %s: %s: %s", f.GUID, f.Stage, f.Reason)
}

// Outcome is the result of processing one element.
type Outcome struct {
	Record     record.ElementRecord
	Allocation material.Allocation
	Failures   []ElementFailure
}

// Process never fails; problems are reported in Outcome.Failures and
// reflected as nil fields or fallback components in the record.
func (p *Processor) Process(ctx context.Context, el api.Element) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = p.fallback(el, ElementFailure{GUID: el.GUID, Stage: "process", Reason: fmt.Sprint(r)})
		}
	}()

	res := p.Resolver.Resolve(ctx, el)
	if res.Geometry != nil && !res.Geometry.OK() {
		out.Failures = append(out.Failures, ElementFailure{GUID: el.GUID, Stage: "geometry", Reason: res.Geometry.Err.Error()})
	}

	assoc, ok := p.Materials.Material(el)
	if !ok {
		out.Failures = append(out.Failures, ElementFailure{GUID: el.GUID, Stage: "material", Reason: fmt.Sprintf("dangling material reference %q", el.MaterialRef)})
	}
	out.Allocation = p.Allocator.Allocate(el, assoc, res.Volume)

	flags := record.Flags{
		Loadbearing: p.Properties.Bool(el, p.Loadbearing),
		External:    p.Properties.Bool(el, p.External),
	}
	out.Record = p.Builder.Build(el, res.Volume, out.Allocation, record.Storey(el), flags, p.Correlation)
	return out
}

func (p *Processor) fallback(el api.Element, f ElementFailure) Outcome {
	alloc := p.Allocator.Allocate(el, api.MaterialAssociation{Kind: api.MaterialNone}, volume.Unresolved())
	return Outcome{
		Record:     p.Builder.Build(el, volume.Unresolved(), alloc, nil, record.Flags{}, p.Correlation),
		Allocation: alloc,
		Failures:   []ElementFailure{f},
	}
}
