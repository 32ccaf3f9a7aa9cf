// Package linter reports snapshot problems that degrade extraction results
// without failing it: elements that will end up unresolved, dangling
// material references and allocations that will fall back to equal split.
package linter

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/ifclca/ifcqto/api"
)

type Severity string

const (
	Warning Severity = "warning"
	Info    Severity = "info"
)

type Diagnostic struct {
	GUID     string
	Rule     string
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s [%s]: %s", d.Severity, d.GUID, d.Rule, d.Message)
}

// Model is the read surface the rules need.
type Model interface {
	Elements() []api.Element
	Material(el api.Element) (api.MaterialAssociation, bool)
	AssociatedElements(assocID string) []api.Element
}

// Lint checks every element. volumeNames are the quantity and property
// names accepted as an explicit volume. Diagnostics are in model order.
func Lint(m Model, volumeNames []string) []Diagnostic {
	var diags []Diagnostic
	seen := make(map[string]int)
	widthless := make(map[string]bool)

	for i, el := range m.Elements() {
		// Rule 1: duplicate GUIDs
		if first, dup := seen[el.GUID]; dup {
			diags = append(diags, Diagnostic{GUID: el.GUID, Rule: "duplicate-guid", Severity: Warning,
				Message: fmt.Sprintf("also used by element #%d", first)})
		} else {
			seen[el.GUID] = i
		}

		// Rule 2: a volume-named quantity with another measure type is ignored
		for _, qs := range el.QuantitySets {
			for _, q := range qs.Quantities {
				if slices.Contains(volumeNames, q.Name) && q.Kind != api.QuantityVolume {
					diags = append(diags, Diagnostic{GUID: el.GUID, Rule: "volume-kind", Severity: Warning,
						Message: fmt.Sprintf("%s.%s is %q, not a volume quantity", qs.Name, q.Name, q.Kind)})
				}
			}
		}

		// Rule 3: nothing to resolve a volume from
		if !hasVolumeSource(el, volumeNames) {
			diags = append(diags, Diagnostic{GUID: el.GUID, Rule: "no-volume-source", Severity: Warning,
				Message: "no volume quantity, volume property or shape"})
		}

		assoc, ok := m.Material(el)
		if !ok {
			// Rule 4: dangling material reference
			diags = append(diags, Diagnostic{GUID: el.GUID, Rule: "dangling-material", Severity: Warning,
				Message: fmt.Sprintf("material association %q does not exist", el.MaterialRef)})
			continue
		}
		switch assoc.Kind {
		case api.MaterialLayerSetUsage:
			// Rule 5: layer sets that will split equally
			var sum float64
			for _, l := range assoc.Layers {
				if l.Thickness > 0 {
					sum += l.Thickness
				}
			}
			if len(assoc.Layers) > 0 && sum == 0 {
				diags = append(diags, Diagnostic{GUID: el.GUID, Rule: "zero-thickness", Severity: Info,
					Message: fmt.Sprintf("layer set %s has zero total thickness", assoc.ID)})
			}
		case api.MaterialConstituentSet:
			// Rule 6: constituent sets without any width quantities, reported once per set
			if widthless[assoc.ID] {
				continue
			}
			if !anyWidths(m.AssociatedElements(assoc.ID), assoc.Constituents) {
				widthless[assoc.ID] = true
				diags = append(diags, Diagnostic{GUID: el.GUID, Rule: "no-constituent-widths", Severity: Info,
					Message: fmt.Sprintf("constituent set %s has no width quantities on any element", assoc.ID)})
			}
		}
	}
	return diags
}

// Summary counts diagnostics per rule, sorted by rule name.
func Summary(diags []Diagnostic) []string {
	counts := make(map[string]int)
	for _, d := range diags {
		counts[d.Rule]++
	}
	rules := make([]string, 0, len(counts))
	for r := range counts {
		rules = append(rules, r)
	}
	sort.Strings(rules)
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = fmt.Sprintf("%s: %d", r, counts[r])
	}
	return out
}

func hasVolumeSource(el api.Element, names []string) bool {
	if el.Shape != nil {
		return true
	}
	for _, qs := range el.QuantitySets {
		for _, q := range qs.Quantities {
			if q.Kind == api.QuantityVolume && slices.Contains(names, q.Name) {
				return true
			}
		}
	}
	for _, ps := range el.PropertySets {
		for _, p := range ps.Properties {
			if slices.Contains(names, p.Name) {
				return true
			}
		}
	}
	return false
}

func anyWidths(elements []api.Element, cs []api.MaterialConstituent) bool {
	keys := make(map[string]bool, len(cs))
	for _, c := range cs {
		name := c.Name
		if strings.TrimSpace(name) == "" {
			name = c.Material
		}
		keys[strings.ToLower(strings.TrimSpace(name))] = true
	}
	for _, el := range elements {
		for _, qs := range el.QuantitySets {
			for _, q := range qs.Quantities {
				if q.Kind != api.QuantityLength {
					continue
				}
				key := q.Name
				if strings.EqualFold(key, "Width") {
					key = qs.Name
				}
				if keys[strings.ToLower(strings.TrimSpace(key))] {
					return true
				}
			}
		}
	}
	return false
}
