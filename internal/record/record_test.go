package record

import (
	"sync"
	"testing"

	"github.com/ifclca/ifcqto/api"
	"github.com/ifclca/ifcqto/internal/material"
	"github.com/ifclca/ifcqto/internal/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoLayers() material.Allocation {
	return material.Allocation{
		Basis: material.BasisThickness,
		Components: []material.Component{
			{Name: "Plaster", Fraction: 0.3, Volume: 3},
			{Name: "Concrete", Fraction: 0.7, Volume: 7},
		},
	}
}

func TestBuild_Record(t *testing.T) {
	b := NewBuilder()
	v := 10.0
	yes := true
	storey := "Level 1"
	corr := Correlation{Origin: "house.json", SessionID: "s1", UserID: "u1", ProjectID: "p1"}

	rec := b.Build(
		api.Element{GUID: "w1", Name: "Basic Wall", Class: "IfcWall"},
		volume.Resolved{Value: &v, Source: volume.SourceQuantity},
		twoLayers(), &storey, Flags{Loadbearing: &yes}, corr,
	)

	assert.Equal(t, "w1", rec.GUID)
	assert.Equal(t, "Basic Wall", rec.Name)
	assert.Equal(t, "IfcWall", rec.Class)
	require.NotNil(t, rec.TotalVolume)
	assert.Equal(t, 10.0, *rec.TotalVolume)
	assert.Equal(t, volume.SourceQuantity, rec.VolumeSource)
	assert.True(t, rec.IsMultilayer)
	assert.Equal(t, material.BasisThickness, rec.Basis)
	assert.Equal(t, corr, rec.Correlation)
	assert.True(t, *rec.IsLoadbearing)
	assert.Nil(t, rec.IsExternal)
	assert.Equal(t, "Level 1", *rec.BuildingStorey)

	v = 99
	assert.Equal(t, 10.0, *rec.TotalVolume, "record does not alias the resolved value")
}

func TestBuild_Defaults(t *testing.T) {
	rec := NewBuilder().Build(
		api.Element{GUID: "x", Class: "IfcBeam"},
		volume.Resolved{},
		material.Allocation{Components: []material.Component{{Name: material.Unnamed, Fraction: 1}}},
		nil, Flags{}, Correlation{},
	)
	assert.Equal(t, DefaultName, rec.Name)
	assert.Nil(t, rec.TotalVolume)
	assert.Equal(t, volume.SourceUnresolved, rec.VolumeSource)
	assert.False(t, rec.IsMultilayer)
	assert.Nil(t, rec.BuildingStorey)
}

func TestBuild_ComponentIDsUnique(t *testing.T) {
	b := NewBuilder()
	alloc := twoLayers()

	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := b.Build(api.Element{}, volume.Unresolved(), alloc, nil, Flags{}, Correlation{})
			mu.Lock()
			defer mu.Unlock()
			for _, c := range rec.Components {
				assert.NotEmpty(t, c.ID)
				assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
				seen[c.ID] = true
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 100)
	assert.Empty(t, alloc.Components[0].ID, "input allocation is not modified")
}

func TestStorey(t *testing.T) {
	el := api.Element{Containment: []api.SpatialContainer{
		{Class: "IfcSpace", Name: "Kitchen"},
		{Class: "IfcBuildingStorey", Name: "Ground Floor"},
		{Class: "IfcBuilding", Name: "House"},
	}}
	s := Storey(el)
	require.NotNil(t, s)
	assert.Equal(t, "Ground Floor", *s)

	assert.Nil(t, Storey(api.Element{Containment: []api.SpatialContainer{{Class: "IfcSite", Name: "Site"}}}))
}

func TestDocument(t *testing.T) {
	n := 0
	b := NewBuilderWithIDs(func() string { n++; return []string{"m1", "m2"}[n-1] })
	no := false
	v := 10.0
	rec := b.Build(
		api.Element{GUID: "w1", Name: "Wall", Class: "IfcWall"},
		volume.Resolved{Value: &v, Source: volume.SourceGeometry},
		twoLayers(), nil, Flags{External: &no},
		Correlation{Origin: "a.json", SessionID: "s", UserID: "u", ProjectID: "p"},
	)

	doc := rec.Document()
	assert.Equal(t, "w1", doc["guid"])
	assert.Equal(t, "Wall", doc["instance_name"])
	assert.Equal(t, 10.0, doc["total_volume"])
	assert.Equal(t, "geometry-derived", doc["volume_source"])
	assert.Equal(t, "thickness", doc["allocation_basis"])
	assert.Equal(t, true, doc["is_multilayer"])
	assert.Nil(t, doc["building_storey"])
	assert.Nil(t, doc["is_loadbearing"])
	assert.Equal(t, false, doc["is_external"])
	assert.Equal(t, "p", doc["projectId"])
	assert.Equal(t, "a.json", doc["ifc_file_origin"])

	mats, ok := doc["materials_info"].([]any)
	require.True(t, ok)
	require.Len(t, mats, 2)
	first := mats[0].(map[string]any)
	assert.Equal(t, "m1", first["materialId"])
	assert.Equal(t, "Plaster", first["name"])
	assert.Equal(t, 3.0, first["volume"])
	assert.NotContains(t, first, "material")
}

func TestDocument_UnresolvedVolumeIsNull(t *testing.T) {
	rec := NewBuilder().Build(api.Element{GUID: "x"}, volume.Unresolved(), material.Allocation{}, nil, Flags{}, Correlation{})
	doc := rec.Document()
	v, present := doc["total_volume"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestDocument_ConstituentMaterial(t *testing.T) {
	v := 1.0
	alloc := material.Allocation{Basis: material.BasisWidth, Components: []material.Component{
		{Name: "Framing", Material: "Timber", Fraction: 0.68, Volume: 0.68},
		{Name: "Glazing", Fraction: 0.32, Volume: 0.32},
	}}
	rec := NewBuilderWithIDs(nil).Build(api.Element{GUID: "win"}, volume.Resolved{Value: &v, Source: volume.SourceQuantity}, alloc, nil, Flags{}, Correlation{})
	mats := rec.Document()["materials_info"].([]any)
	first := mats[0].(map[string]any)
	assert.Equal(t, "Framing", first["name"])
	assert.Equal(t, "Timber", first["material"])
	assert.NotEmpty(t, first["materialId"])
	assert.NotContains(t, mats[1].(map[string]any), "material")
}
