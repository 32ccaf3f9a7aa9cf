package model

import (
	"fmt"
	"os"

	"github.com/ifclca/ifcqto/api"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Selectors locate the snapshot sections inside a JSON document.
type Selectors struct {
	Elements  string
	Materials string
	Schema    string
	UnitScale string
}

// DefaultSelectors match the exporter's document layout. A bare array at the
// root is also accepted as a list of elements.
var DefaultSelectors = Selectors{
	Elements:  "$.elements[*]",
	Materials: "$.materialAssociations[*]",
	Schema:    "$.schema",
	UnitScale: "$.lengthUnitScale",
}

// LoadJSON parses a JSON snapshot file.
func LoadJSON(path string) (*api.Snapshot, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseJSON(content, DefaultSelectors)
}

// ParseJSON parses a JSON snapshot document using the given selectors.
func ParseJSON(content []byte, sel Selectors) (*api.Snapshot, error) {
	root, err := oj.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse json snapshot: %w", err)
	}
	if arr, ok := root.([]any); ok {
		root = map[string]any{"elements": arr}
	}

	snap := &api.Snapshot{}
	if v, err := first(root, sel.Schema); err != nil {
		return nil, err
	} else if s, ok := v.(string); ok {
		snap.Schema = s
	}
	if v, err := first(root, sel.UnitScale); err != nil {
		return nil, err
	} else if f, ok := number(v); ok {
		snap.LengthUnitScale = f
	}

	materials, err := query(root, sel.Materials)
	if err != nil {
		return nil, err
	}
	for _, raw := range materials {
		a, err := decodeMaterial(raw)
		if err != nil {
			return nil, err
		}
		snap.MaterialAssociations = append(snap.MaterialAssociations, a)
	}

	elements, err := query(root, sel.Elements)
	if err != nil {
		return nil, err
	}
	for _, raw := range elements {
		el, err := decodeElement(raw)
		if err != nil {
			return nil, err
		}
		snap.Elements = append(snap.Elements, el)
	}
	return snap, nil
}

func query(root any, selector string) ([]any, error) {
	if selector == "" {
		return nil, nil
	}
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	return x.Get(root), nil
}

func first(root any, selector string) (any, error) {
	res, err := query(root, selector)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return res[0], nil
}
