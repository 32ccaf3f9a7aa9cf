// Package property retrieves named attributes from an element's
// common property sets.
package property

import (
	"strconv"
	"strings"

	"github.com/ifclca/ifcqto/api"
)

// Options configure which property sets are candidates.
type Options struct {
	Prefix string // default "Pset_"
	Suffix string // default "Common"
	// Fallback sets are scanned after every other candidate, in this order.
	Fallback []string // default ["Pset_ElementCommon"]
}

// DefaultOptions returns the IFC naming convention.
func DefaultOptions() Options {
	return Options{
		Prefix:   "Pset_",
		Suffix:   "Common",
		Fallback: []string{"Pset_ElementCommon"},
	}
}

// Lookup finds properties in Pset_*Common sets.
// It holds no state besides its options and is safe for concurrent use.
type Lookup struct {
	opts Options
}

func NewLookup(opts Options) *Lookup {
	return &Lookup{opts: opts}
}

// Lookup returns the first property named name. Candidate sets are those
// matching Prefix*Suffix, scanned in declaration order, with the fallback
// sets moved to the end.
func (l *Lookup) Lookup(el api.Element, name string) (any, bool) {
	for _, ps := range l.candidates(el) {
		for _, p := range ps.Properties {
			if p.Name == name {
				return p.Value, true
			}
		}
	}
	return nil, false
}

// LookupAny tries each alias in order and returns the first hit.
func (l *Lookup) LookupAny(el api.Element, aliases []string) (any, bool) {
	for _, name := range aliases {
		if v, ok := l.Lookup(el, name); ok {
			return v, true
		}
	}
	return nil, false
}

// Bool looks up a boolean flag through its aliases. Nil means absent or
// not a boolean.
func (l *Lookup) Bool(el api.Element, aliases []string) *bool {
	v, ok := l.LookupAny(el, aliases)
	if !ok {
		return nil
	}
	b, ok := AsBool(v)
	if !ok {
		return nil
	}
	return &b
}

// ClassSetName is the class-derived common set name, e.g. IfcWall -> Pset_WallCommon.
func (l *Lookup) ClassSetName(class string) string {
	return l.opts.Prefix + strings.TrimPrefix(class, "Ifc") + l.opts.Suffix
}

func (l *Lookup) candidates(el api.Element) []api.PropertySet {
	var primary, fallback []api.PropertySet
	for _, ps := range el.PropertySets {
		if !l.matches(ps.Name) {
			continue
		}
		if l.isFallback(ps.Name) && ps.Name != l.ClassSetName(el.Class) {
			fallback = append(fallback, ps)
			continue
		}
		primary = append(primary, ps)
	}
	if len(fallback) > 1 {
		ordered := make([]api.PropertySet, 0, len(fallback))
		for _, name := range l.opts.Fallback {
			for _, ps := range fallback {
				if ps.Name == name {
					ordered = append(ordered, ps)
				}
			}
		}
		fallback = ordered
	}
	return append(primary, fallback...)
}

func (l *Lookup) matches(name string) bool {
	if l.isFallback(name) {
		return true
	}
	return len(name) >= len(l.opts.Prefix)+len(l.opts.Suffix) &&
		strings.HasPrefix(name, l.opts.Prefix) &&
		strings.HasSuffix(name, l.opts.Suffix)
}

func (l *Lookup) isFallback(name string) bool {
	for _, f := range l.opts.Fallback {
		if f == name {
			return true
		}
	}
	return false
}

// AsBool coerces booleans, textual booleans and IFC logicals (.T./.F.).
func AsBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		s := strings.ToUpper(strings.TrimSpace(t))
		switch s {
		case ".T.":
			return true, true
		case ".F.":
			return false, true
		}
		b, err := strconv.ParseBool(strings.ToLower(s))
		return b, err == nil
	}
	return false, false
}

// AsFloat coerces numeric and textual numeric values.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
