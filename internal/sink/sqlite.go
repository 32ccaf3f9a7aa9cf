package sink

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/ifclca/ifcqto/internal/record"
	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

// SQLite writes one row per element and one per material component.
// Each InsertMany call is its own transaction.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (or creates) the database and initializes the schema.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Performance tuning for bulk insert
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS building_elements (
		guid TEXT NOT NULL,
		project_id TEXT NOT NULL,
		instance_name TEXT NOT NULL,
		ifc_class TEXT NOT NULL,
		total_volume REAL,
		volume_source TEXT NOT NULL,
		allocation_basis TEXT NOT NULL,
		is_multilayer INTEGER NOT NULL,
		building_storey TEXT,
		is_loadbearing INTEGER,
		is_external INTEGER,
		ifc_file_origin TEXT,
		user_id TEXT,
		session_id TEXT,
		record JSON
	);
	CREATE INDEX IF NOT EXISTS idx_elements_project ON building_elements(project_id, guid);

	CREATE TABLE IF NOT EXISTS element_materials (
		material_id TEXT PRIMARY KEY,
		element_guid TEXT NOT NULL,
		project_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		material TEXT,
		volume REAL NOT NULL,
		fraction REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_materials_element ON element_materials(project_id, element_guid);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) InsertMany(ctx context.Context, records []record.ElementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	stmtEl, err := tx.PrepareContext(ctx, `
		INSERT INTO building_elements (guid, project_id, instance_name, ifc_class, total_volume,
			volume_source, allocation_basis, is_multilayer, building_storey, is_loadbearing,
			is_external, ifc_file_origin, user_id, session_id, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmtEl.Close() }()

	stmtMat, err := tx.PrepareContext(ctx, `
		INSERT INTO element_materials (material_id, element_guid, project_id, position, name, material, volume, fraction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmtMat.Close() }()

	for _, r := range records {
		doc := oj.JSON(r.Document(), &ojgSorted)
		_, err := stmtEl.ExecContext(ctx,
			r.GUID,
			r.Correlation.ProjectID,
			r.Name,
			r.Class,
			r.TotalVolume,
			string(r.VolumeSource),
			string(r.Basis),
			r.IsMultilayer,
			r.BuildingStorey,
			r.IsLoadbearing,
			r.IsExternal,
			r.Correlation.Origin,
			r.Correlation.UserID,
			r.Correlation.SessionID,
			doc,
		)
		if err != nil {
			return fmt.Errorf("insert element %s: %w", r.GUID, err)
		}
		for i, c := range r.Components {
			var mat *string
			if c.Material != "" {
				mat = &c.Material
			}
			if _, err := stmtMat.ExecContext(ctx, c.ID, r.GUID, r.Correlation.ProjectID, i, c.Name, mat, c.Volume, c.Fraction); err != nil {
				return fmt.Errorf("insert material %s of %s: %w", c.Name, r.GUID, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ Sink = (*SQLite)(nil)
