package api

// Snapshot is the root of an exported building model.
// It is produced by an external IFC exporter and consumed read-only.
type Snapshot struct {
	// Schema is the IFC schema identifier of the source (e.g. "IFC4").
	Schema string `json:"schema,omitempty"`
	// LengthUnitScale converts one native length unit into metres.
	LengthUnitScale float64 `json:"lengthUnitScale,omitempty"`
	// MaterialAssociations are shared material definitions, referenced by ID.
	MaterialAssociations []MaterialAssociation `json:"materialAssociations,omitempty"`
	// Elements are the building elements, in model order.
	Elements []Element `json:"elements,omitempty"`
}

// Element is a single building element of the model.
type Element struct {
	// GUID is the global identity of the element.
	GUID string `json:"guid"`
	// Name is the display name. May be empty.
	Name string `json:"name,omitempty"`
	// Class is the type tag, e.g. "IfcWall".
	Class string `json:"class"`
	// PropertySets in declaration order.
	PropertySets []PropertySet `json:"propertySets,omitempty"`
	// QuantitySets in declaration order.
	QuantitySets []QuantitySet `json:"quantitySets,omitempty"`
	// MaterialRef is the ID of the associated MaterialAssociation, or empty.
	MaterialRef string `json:"material,omitempty"`
	// Containment is the spatial containment chain, nearest container first.
	Containment []SpatialContainer `json:"containment,omitempty"`
	// Shape is the body representation used for geometry fallback.
	Shape *Shape `json:"shape,omitempty"`
}

// PropertySet is a named group of scalar attributes.
type PropertySet struct {
	Name       string     `json:"name"`
	Properties []Property `json:"properties,omitempty"`
}

// Property is a single named value. Value is a bool, float64, int64 or string.
type Property struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// QuantityKind is the measure type of a quantity.
type QuantityKind string

const (
	QuantityLength QuantityKind = "length"
	QuantityArea   QuantityKind = "area"
	QuantityVolume QuantityKind = "volume"
	QuantityCount  QuantityKind = "count"
	QuantityWeight QuantityKind = "weight"
)

// QuantitySet is a named group of authored measures.
type QuantitySet struct {
	Name       string     `json:"name"`
	Quantities []Quantity `json:"quantities,omitempty"`
}

// Quantity is a single authored measure.
type Quantity struct {
	Name  string       `json:"name"`
	Kind  QuantityKind `json:"kind"`
	Value float64      `json:"value"`
}

// SpatialContainer is one link of a containment chain.
type SpatialContainer struct {
	Class string `json:"class"`
	Name  string `json:"name,omitempty"`
}

// MaterialKind tags the MaterialAssociation variant.
type MaterialKind string

const (
	MaterialNone           MaterialKind = "none"
	MaterialSingle         MaterialKind = "single"
	MaterialLayerSetUsage  MaterialKind = "layerSetUsage"
	MaterialConstituentSet MaterialKind = "constituentSet"
)

// MaterialAssociation is a closed variant over the material kinds.
// Only the payload matching Kind is meaningful.
type MaterialAssociation struct {
	ID   string       `json:"id"`
	Kind MaterialKind `json:"kind"`
	// Material is the material name for MaterialSingle.
	Material string `json:"material,omitempty"`
	// Layers for MaterialLayerSetUsage, outermost first.
	Layers []MaterialLayer `json:"layers,omitempty"`
	// Constituents for MaterialConstituentSet, in declaration order.
	Constituents []MaterialConstituent `json:"constituents,omitempty"`
}

// MaterialLayer is one layer of a layer set.
type MaterialLayer struct {
	Material  string  `json:"material,omitempty"`
	Thickness float64 `json:"thickness"`
}

// MaterialConstituent is one part of a constituent set.
// It has no geometric measure of its own.
type MaterialConstituent struct {
	// Name is the constituent category (e.g. "Frame"). Not unique.
	Name     string `json:"name,omitempty"`
	Material string `json:"material,omitempty"`
}

// ShapeKind tags the Shape variant.
type ShapeKind string

const (
	ShapeMesh      ShapeKind = "mesh"
	ShapeExtrusion ShapeKind = "extrusion"
	ShapeBox       ShapeKind = "box"
)

// Shape is a minimal body representation, in native length units.
type Shape struct {
	Kind ShapeKind `json:"kind"`
	// Vertices and Faces describe a closed triangulated mesh (ShapeMesh).
	Vertices [][3]float64 `json:"vertices,omitempty"`
	Faces    [][3]int     `json:"faces,omitempty"`
	// Profile is a closed polygon swept along Depth (ShapeExtrusion).
	Profile [][2]float64 `json:"profile,omitempty"`
	Depth   float64      `json:"depth,omitempty"`
	// Size is the X/Y/Z extent (ShapeBox).
	Size [3]float64 `json:"size,omitempty"`
	// Invalid is set when the exported representation could not be decoded.
	// Such a shape never yields a volume.
	Invalid string `json:"invalid,omitempty"`
}
