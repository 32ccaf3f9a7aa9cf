package model

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/ifclca/ifcqto/api"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestOpen_JSON(t *testing.T) {
	m, err := Open("testdata/house.json")
	require.NoError(t, err)

	assert.Equal(t, "IFC4", m.Schema())
	assert.Equal(t, 4, m.Len())
	assert.InDelta(t, 1.0, m.UnitScaleToMillimeters(), 1e-12)
	assert.InDelta(t, 0.001, m.UnitScaleToMeters(), 1e-12)

	els := m.Elements()
	wall := els[0]
	assert.Equal(t, "2O2Fr$t4X7Zf8NOew3FLOH", wall.GUID)
	assert.Equal(t, "IfcWall", wall.Class)
	require.Len(t, wall.QuantitySets, 1)
	assert.Equal(t, api.QuantityVolume, wall.QuantitySets[0].Quantities[1].Kind)
	assert.Equal(t, 4.5, wall.QuantitySets[0].Quantities[1].Value)
	assert.Equal(t, "Level 1", wall.Containment[0].Name)

	assoc, ok := m.Material(wall)
	require.True(t, ok)
	assert.Equal(t, api.MaterialLayerSetUsage, assoc.Kind)
	require.Len(t, assoc.Layers, 4)
	assert.Equal(t, 175.0, assoc.Layers[1].Thickness)

	slab := els[1]
	require.NotNil(t, slab.Shape)
	assert.Equal(t, api.ShapeBox, slab.Shape.Kind)
	assert.Equal(t, [3]float64{10000, 8000, 200}, slab.Shape.Size)

	window := els[2]
	require.NotNil(t, window.Shape)
	assert.Len(t, window.Shape.Profile, 4)
	assert.Equal(t, 1500.0, window.Shape.Depth)

	proxy := els[3]
	assoc, ok = m.Material(proxy)
	assert.True(t, ok)
	assert.Equal(t, api.MaterialNone, assoc.Kind)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"elements": [`), 0o644))
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestParseJSON_RootArray(t *testing.T) {
	snap, err := ParseJSON([]byte(`[{"GlobalId": "a", "Name": "A", "ifc_class": "IfcBeam"}, {"guid": "b"}]`), DefaultSelectors)
	require.NoError(t, err)
	require.Len(t, snap.Elements, 2)
	assert.Equal(t, "a", snap.Elements[0].GUID)
	assert.Equal(t, "A", snap.Elements[0].Name)
	assert.Equal(t, "IfcBeam", snap.Elements[0].Class)

	m := New(snap)
	assert.Equal(t, 1000.0, m.UnitScaleToMillimeters(), "unit scale defaults to metres")
}

func TestParseJSON_CustomSelectors(t *testing.T) {
	doc := `{"model": {"items": [{"guid": "x"}], "units": {"length": 0.01}}}`
	snap, err := ParseJSON([]byte(doc), Selectors{Elements: "$.model.items[*]", UnitScale: "$.model.units.length"})
	require.NoError(t, err)
	require.Len(t, snap.Elements, 1)
	assert.Equal(t, 0.01, snap.LengthUnitScale)
}

func TestParseJSON_Rejects(t *testing.T) {
	_, err := ParseJSON([]byte(`{"elements": [{"name": "no guid"}]}`), DefaultSelectors)
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`{"materialAssociations": [{"id": "m", "kind": "profileSet"}]}`), DefaultSelectors)
	assert.Error(t, err)
}

func TestParseJSON_MalformedShapeKeepsElement(t *testing.T) {
	doc := `{"elements": [
		{"guid": "ok-1", "quantitySets": [{"name": "Qto", "quantities": [{"name": "NetVolume", "kind": "volume", "value": 2}]}]},
		{"guid": "bad-2", "shape": {"kind": "mesh", "vertices": [[0, 0]]}},
		{"guid": "bad-3", "shape": {"kind": "box", "size": [1, 2]}},
		{"guid": "bad-4", "shape": {"kind": "mesh", "vertices": [[0, 0, 0]], "faces": [[0, 0.5, 0]]}},
		{"guid": "ok-5", "shape": {"kind": "mesh", "vertices": [[0, 0, 0]], "faces": [[0, 0, 0]]}}
	]}`
	snap, err := ParseJSON([]byte(doc), DefaultSelectors)
	require.NoError(t, err)
	require.Len(t, snap.Elements, 5)

	assert.Nil(t, snap.Elements[0].Shape)
	for _, el := range snap.Elements[1:4] {
		require.NotNil(t, el.Shape, el.GUID)
		assert.NotEmpty(t, el.Shape.Invalid, el.GUID)
		assert.Empty(t, el.Shape.Vertices, el.GUID)
	}
	assert.Equal(t, api.ShapeMesh, snap.Elements[1].Shape.Kind)
	assert.Contains(t, snap.Elements[3].Shape.Invalid, "non-integral face index")
	assert.Empty(t, snap.Elements[4].Shape.Invalid)
	assert.Equal(t, [][3]int{{0, 0, 0}}, snap.Elements[4].Shape.Faces)
}

func TestModel_AssociatedElementsInModelOrder(t *testing.T) {
	snap := &api.Snapshot{
		MaterialAssociations: []api.MaterialAssociation{{ID: "cs", Kind: api.MaterialConstituentSet}},
		Elements: []api.Element{
			{GUID: "a", MaterialRef: "cs"},
			{GUID: "b"},
			{GUID: "c", MaterialRef: "cs"},
			{GUID: "d", MaterialRef: "other"},
			{GUID: "e", MaterialRef: "cs"},
		},
	}
	m := New(snap)

	var guids []string
	for _, el := range m.AssociatedElements("cs") {
		guids = append(guids, el.GUID)
	}
	assert.Equal(t, []string{"a", "c", "e"}, guids)
	assert.Nil(t, m.AssociatedElements("missing"))

	assoc, ok := m.Material(snap.Elements[3])
	assert.False(t, ok, "dangling reference")
	assert.Equal(t, api.MaterialNone, assoc.Kind)
	assert.Equal(t, "other", assoc.ID)
}

func writeSnapshotDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, stmt := range []string{
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT)`,
		`CREATE TABLE materials (id TEXT PRIMARY KEY, record JSON)`,
		`CREATE TABLE elements (id TEXT PRIMARY KEY, record JSON)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	content, err := os.ReadFile("testdata/house.json")
	require.NoError(t, err)
	root, err := oj.Parse(content)
	require.NoError(t, err)
	doc := root.(map[string]any)

	_, err = db.Exec(`INSERT INTO meta VALUES ('schema', 'IFC4'), ('length_unit_scale', '0.001')`)
	require.NoError(t, err)
	for _, raw := range doc["materialAssociations"].([]any) {
		rec := raw.(map[string]any)
		_, err := db.Exec(`INSERT INTO materials VALUES (?, ?)`, rec["id"], oj.JSON(rec))
		require.NoError(t, err)
	}
	for _, raw := range doc["elements"].([]any) {
		rec := raw.(map[string]any)
		_, err := db.Exec(`INSERT INTO elements VALUES (?, ?)`, rec["guid"], oj.JSON(rec))
		require.NoError(t, err)
	}
}

func TestOpen_SQLiteMatchesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "house.db")
	writeSnapshotDB(t, path)

	fromDB, err := Open(path)
	require.NoError(t, err)
	fromJSON, err := Open("testdata/house.json")
	require.NoError(t, err)

	assert.Equal(t, fromJSON.Schema(), fromDB.Schema())
	assert.Equal(t, fromJSON.UnitScaleToMeters(), fromDB.UnitScaleToMeters())
	assert.Equal(t, fromJSON.Elements(), fromDB.Elements())
	for _, el := range fromJSON.Elements() {
		a, _ := fromJSON.Material(el)
		b, _ := fromDB.Material(el)
		assert.Equal(t, a, b)
	}
}

func TestStreamSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "house.sqlite")
	writeSnapshotDB(t, path)

	var ids []string
	err := StreamSQLite(path, func(id string, el api.Element) error {
		assert.Equal(t, id, el.GUID)
		ids = append(ids, id)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, ids, 4)
	assert.Equal(t, "2O2Fr$t4X7Zf8NOew3FLOH", ids[0])
}
