package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ifclca/ifcqto/api"
)

// The decoders below read the generic tree produced by the ojg parser.
// Exporters disagree on casing and on number encoding, so they are lenient:
// unknown keys are ignored and integers and floats are interchangeable.

func decodeElement(v any) (api.Element, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return api.Element{}, fmt.Errorf("element is %T, want object", v)
	}
	el := api.Element{
		GUID:        str(m, "guid", "GlobalId"),
		Name:        str(m, "name", "Name"),
		Class:       str(m, "class", "type", "ifc_class"),
		MaterialRef: str(m, "material", "materialRef"),
	}
	if el.GUID == "" {
		return api.Element{}, fmt.Errorf("element without guid")
	}
	for _, raw := range list(m, "propertySets", "psets") {
		ps, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		set := api.PropertySet{Name: str(ps, "name")}
		for _, rp := range list(ps, "properties") {
			p, ok := rp.(map[string]any)
			if !ok {
				continue
			}
			set.Properties = append(set.Properties, api.Property{Name: str(p, "name"), Value: p["value"]})
		}
		el.PropertySets = append(el.PropertySets, set)
	}
	for _, raw := range list(m, "quantitySets", "qtos") {
		qs, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		set := api.QuantitySet{Name: str(qs, "name")}
		for _, rq := range list(qs, "quantities") {
			q, ok := rq.(map[string]any)
			if !ok {
				continue
			}
			val, ok := number(q["value"])
			if !ok {
				continue
			}
			set.Quantities = append(set.Quantities, api.Quantity{
				Name:  str(q, "name"),
				Kind:  api.QuantityKind(strings.ToLower(str(q, "kind"))),
				Value: val,
			})
		}
		el.QuantitySets = append(el.QuantitySets, set)
	}
	for _, raw := range list(m, "containment") {
		c, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		el.Containment = append(el.Containment, api.SpatialContainer{Class: str(c, "class"), Name: str(c, "name")})
	}
	if raw, ok := m["shape"].(map[string]any); ok {
		el.Shape = decodeShape(raw)
	}
	return el, nil
}

// decodeShape keeps a malformed representation on the element, marked
// Invalid, so only that element loses its geometry volume.
func decodeShape(m map[string]any) *api.Shape {
	s := &api.Shape{Kind: api.ShapeKind(strings.ToLower(str(m, "kind")))}
	invalid := func(format string, args ...any) *api.Shape {
		return &api.Shape{Kind: s.Kind, Invalid: fmt.Sprintf(format, args...)}
	}
	for _, rv := range list(m, "vertices") {
		p, ok := point(rv, 3)
		if !ok {
			return invalid("malformed vertex %v", rv)
		}
		s.Vertices = append(s.Vertices, [3]float64{p[0], p[1], p[2]})
	}
	for _, rf := range list(m, "faces") {
		p, ok := point(rf, 3)
		if !ok {
			return invalid("malformed face %v", rf)
		}
		var f [3]int
		for i, c := range p {
			if c != math.Trunc(c) || math.Abs(c) > math.MaxInt32 {
				return invalid("non-integral face index %v", rf)
			}
			f[i] = int(c)
		}
		s.Faces = append(s.Faces, f)
	}
	for _, rp := range list(m, "profile") {
		p, ok := point(rp, 2)
		if !ok {
			return invalid("malformed profile point %v", rp)
		}
		s.Profile = append(s.Profile, [2]float64{p[0], p[1]})
	}
	s.Depth, _ = number(m["depth"])
	if size := list(m, "size"); len(size) > 0 {
		p, ok := point(size, 3)
		if !ok {
			return invalid("malformed box size %v", size)
		}
		s.Size = [3]float64{p[0], p[1], p[2]}
	}
	return s
}

func decodeMaterial(v any) (api.MaterialAssociation, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return api.MaterialAssociation{}, fmt.Errorf("material association is %T, want object", v)
	}
	a := api.MaterialAssociation{
		ID:       str(m, "id"),
		Kind:     api.MaterialKind(str(m, "kind")),
		Material: str(m, "material", "name"),
	}
	if a.ID == "" {
		return a, fmt.Errorf("material association without id")
	}
	for _, rl := range list(m, "layers") {
		l, ok := rl.(map[string]any)
		if !ok {
			continue
		}
		th, _ := number(l["thickness"])
		a.Layers = append(a.Layers, api.MaterialLayer{Material: str(l, "material"), Thickness: th})
	}
	for _, rc := range list(m, "constituents") {
		c, ok := rc.(map[string]any)
		if !ok {
			continue
		}
		a.Constituents = append(a.Constituents, api.MaterialConstituent{Name: str(c, "name"), Material: str(c, "material")})
	}
	switch a.Kind {
	case api.MaterialNone, api.MaterialSingle, api.MaterialLayerSetUsage, api.MaterialConstituentSet:
	default:
		return a, fmt.Errorf("material association %s: unknown kind %q", a.ID, a.Kind)
	}
	return a, nil
}

// str returns the first non-empty string value among keys.
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func list(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if l, ok := m[k].([]any); ok {
			return l
		}
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func point(v any, dim int) ([]float64, bool) {
	l, ok := v.([]any)
	if !ok || len(l) != dim {
		return nil, false
	}
	out := make([]float64, dim)
	for i, c := range l {
		f, ok := number(c)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
