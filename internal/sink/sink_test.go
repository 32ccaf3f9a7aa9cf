package sink

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ifclca/ifcqto/internal/material"
	"github.com/ifclca/ifcqto/internal/record"
	"github.com/ifclca/ifcqto/internal/volume"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func sampleRecords() []record.ElementRecord {
	v := 10.0
	yes := true
	storey := "Level 1"
	corr := record.Correlation{Origin: "house.json", SessionID: "s1", UserID: "u1", ProjectID: "p1"}
	return []record.ElementRecord{
		{
			GUID:         "w1",
			Name:         "Wall",
			Class:        "IfcWall",
			TotalVolume:  &v,
			VolumeSource: volume.SourceQuantity,
			Basis:        material.BasisThickness,
			IsMultilayer: true,
			Components: []material.Component{
				{ID: "c1", Name: "Plaster", Volume: 3, Fraction: 0.3},
				{ID: "c2", Name: "Concrete", Volume: 7, Fraction: 0.7},
			},
			BuildingStorey: &storey,
			IsLoadbearing:  &yes,
			Correlation:    corr,
		},
		{
			GUID:         "x1",
			Name:         record.DefaultName,
			Class:        "IfcBuildingElementProxy",
			VolumeSource: volume.SourceUnresolved,
			Basis:        material.BasisWhole,
			Components:   []material.Component{{ID: "c3", Name: material.Unnamed, Fraction: 1}},
			Correlation:  corr,
		},
	}
}

func TestSQLite_InsertMany(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.InsertMany(context.Background(), sampleRecords()))
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM building_elements WHERE project_id = 'p1'").Scan(&count))
	assert.Equal(t, 2, count)

	var total sql.NullFloat64
	var storey sql.NullString
	var loadbearing, external sql.NullBool
	require.NoError(t, db.QueryRow(
		"SELECT total_volume, building_storey, is_loadbearing, is_external FROM building_elements WHERE guid = 'w1'",
	).Scan(&total, &storey, &loadbearing, &external))
	assert.Equal(t, 10.0, total.Float64)
	assert.Equal(t, "Level 1", storey.String)
	assert.True(t, loadbearing.Valid && loadbearing.Bool)
	assert.False(t, external.Valid)

	require.NoError(t, db.QueryRow("SELECT total_volume FROM building_elements WHERE guid = 'x1'").Scan(&total))
	assert.False(t, total.Valid, "unresolved volume is stored as NULL")

	rows, err := db.Query("SELECT name, volume FROM element_materials WHERE element_guid = 'w1' ORDER BY position")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	var names []string
	var sum float64
	for rows.Next() {
		var name string
		var vol float64
		require.NoError(t, rows.Scan(&name, &vol))
		names = append(names, name)
		sum += vol
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Plaster", "Concrete"}, names)
	assert.Equal(t, 10.0, sum)

	var raw string
	require.NoError(t, db.QueryRow("SELECT record FROM building_elements WHERE guid = 'x1'").Scan(&raw))
	doc, err := oj.Parse([]byte(raw))
	require.NoError(t, err)
	m := doc.(map[string]any)
	assert.Nil(t, m["total_volume"])
	assert.Equal(t, "unresolved", m["volume_source"])
}

func TestSQLite_DuplicateComponentFailsBatch(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "out.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	recs := sampleRecords()
	require.NoError(t, s.InsertMany(context.Background(), recs[:1]))
	err = s.InsertMany(context.Background(), recs)
	assert.Error(t, err, "component ids are unique")
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONLines(&buf)
	require.NoError(t, j.InsertMany(context.Background(), sampleRecords()))
	require.NoError(t, j.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	doc, err := oj.Parse([]byte(lines[0]))
	require.NoError(t, err)
	m := doc.(map[string]any)
	assert.Equal(t, "w1", m["guid"])
	assert.Equal(t, "p1", m["projectId"])
	assert.Len(t, m["materials_info"], 2)

	var again bytes.Buffer
	require.NoError(t, NewJSONLines(&again).InsertMany(context.Background(), sampleRecords()))
	assert.Equal(t, buf.String(), again.String(), "encoding is stable")
}

func TestMemory_FailOn(t *testing.T) {
	boom := errors.New("disk full")
	m := &Memory{FailOn: 2, Fail: boom}
	ctx := context.Background()

	require.NoError(t, m.InsertMany(ctx, sampleRecords()))
	assert.ErrorIs(t, m.InsertMany(ctx, sampleRecords()), boom)
	require.NoError(t, m.InsertMany(ctx, sampleRecords()[:1]))

	assert.Len(t, m.Batches, 2)
	assert.Len(t, m.Records(), 3)
}

func TestOpen_SelectsSink(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	s, err := Open(ctx, "-", Options{Stdout: &buf})
	require.NoError(t, err)
	assert.IsType(t, &JSONLines{}, s)

	s, err = Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "a.db"), Options{})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, filepath.Join(t.TempDir(), "b.sqlite"), Options{})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "redis://localhost", Options{})
	assert.Error(t, err)
}

func TestPostgresRow(t *testing.T) {
	row := Row(sampleRecords()[0])
	assert.Equal(t, "w1", row.GUID)
	assert.Equal(t, "p1", row.ProjectID)
	require.NotNil(t, row.TotalVolume)
	assert.Equal(t, 10.0, *row.TotalVolume)

	mats, err := oj.Parse(row.MaterialsInfo)
	require.NoError(t, err)
	assert.Len(t, mats, 2)
}

func TestMongoDocument_ObjectIDs(t *testing.T) {
	var m *Mongo
	var _ IDSource = m

	recs := sampleRecords()
	hex := (&Mongo{}).NewID()
	require.Len(t, hex, 24)
	recs[0].Components[0].ID = hex

	doc := mongoDocument(recs[0])
	mats := doc["materials_info"].([]any)
	require.Len(t, mats, 2)

	first, ok := mats[0].(map[string]any)["materialId"].(primitive.ObjectID)
	require.True(t, ok)
	assert.Equal(t, hex, first.Hex())

	second, ok := mats[1].(map[string]any)["materialId"].(primitive.ObjectID)
	require.True(t, ok, "a non-ObjectId id is replaced")
	assert.False(t, second.IsZero())
	assert.Equal(t, "c2", recs[0].Components[1].ID, "the record is not modified")
	assert.Equal(t, "w1", doc["guid"])
}
