package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/ifclca/ifcqto/api"
)

var (
	ErrNoShape          = errors.New("element has no shape representation")
	ErrUnsupportedShape = errors.New("unsupported shape kind")
	ErrMalformedShape   = errors.New("malformed shape")
)

// Volume computes the enclosed volume of a shape in cubic native units.
func Volume(s *api.Shape) (float64, error) {
	if s == nil {
		return 0, ErrNoShape
	}
	if s.Invalid != "" {
		return 0, fmt.Errorf("%w: %s", ErrMalformedShape, s.Invalid)
	}
	var v float64
	switch s.Kind {
	case api.ShapeMesh:
		var err error
		if v, err = meshVolume(s.Vertices, s.Faces); err != nil {
			return 0, err
		}
	case api.ShapeExtrusion:
		if len(s.Profile) < 3 {
			return 0, fmt.Errorf("%w: profile has %d points", ErrMalformedShape, len(s.Profile))
		}
		if s.Depth <= 0 {
			return 0, fmt.Errorf("%w: extrusion depth %g", ErrMalformedShape, s.Depth)
		}
		v = polygonArea(s.Profile) * s.Depth
	case api.ShapeBox:
		for _, d := range s.Size {
			if d <= 0 {
				return 0, fmt.Errorf("%w: box size %v", ErrMalformedShape, s.Size)
			}
		}
		v = s.Size[0] * s.Size[1] * s.Size[2]
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedShape, s.Kind)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite volume", ErrMalformedShape)
	}
	return v, nil
}

// meshVolume sums signed tetrahedra against the origin (divergence theorem).
// Orientation is not trusted, so the absolute value is returned.
func meshVolume(vertices [][3]float64, faces [][3]int) (float64, error) {
	if len(faces) < 4 {
		return 0, fmt.Errorf("%w: mesh has %d faces, a closed mesh needs at least 4", ErrMalformedShape, len(faces))
	}
	var sum float64
	for i, f := range faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(vertices) {
				return 0, fmt.Errorf("%w: face %d references vertex %d of %d", ErrMalformedShape, i, idx, len(vertices))
			}
		}
		a, b, c := vertices[f[0]], vertices[f[1]], vertices[f[2]]
		sum += a[0]*(b[1]*c[2]-b[2]*c[1]) -
			a[1]*(b[0]*c[2]-b[2]*c[0]) +
			a[2]*(b[0]*c[1]-b[1]*c[0])
	}
	v := math.Abs(sum) / 6
	if v == 0 {
		return 0, fmt.Errorf("%w: degenerate mesh", ErrMalformedShape)
	}
	return v, nil
}

// polygonArea is the shoelace formula; orientation is ignored.
func polygonArea(p [][2]float64) float64 {
	var sum float64
	for i := range p {
		j := (i + 1) % len(p)
		sum += p[i][0]*p[j][1] - p[j][0]*p[i][1]
	}
	return math.Abs(sum) / 2
}
