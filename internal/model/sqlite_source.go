package model

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/ifclca/ifcqto/api"
	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

// A SQLite snapshot holds one JSON record per row:
//
//	meta(key TEXT PRIMARY KEY, value TEXT)       -- "schema", "length_unit_scale"
//	materials(id TEXT PRIMARY KEY, record JSON)
//	elements(id TEXT PRIMARY KEY, record JSON)   -- model order is rowid order

// LoadSQLite reads a full snapshot from a SQLite database.
func LoadSQLite(dbPath string) (*api.Snapshot, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	snap := &api.Snapshot{}
	if err := readMeta(db, snap); err != nil {
		return nil, err
	}
	if err := streamRecords(db, "materials", func(_ string, record any) error {
		a, err := decodeMaterial(record)
		if err != nil {
			return err
		}
		snap.MaterialAssociations = append(snap.MaterialAssociations, a)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := StreamSQLite(dbPath, func(_ string, el api.Element) error {
		snap.Elements = append(snap.Elements, el)
		return nil
	}); err != nil {
		return nil, err
	}
	return snap, nil
}

// StreamSQLite iterates over the element rows of a snapshot database,
// calling fn for each decoded element in model order.
// Only one parsed record is alive at a time.
func StreamSQLite(dbPath string, fn func(recordID string, el api.Element) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	return streamRecords(db, "elements", func(id string, record any) error {
		el, err := decodeElement(record)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		return fn(id, el)
	})
}

func streamRecords(db *sql.DB, table string, fn func(id string, record any) error) error {
	rows, err := db.Query("SELECT id, record FROM " + table + " ORDER BY rowid")
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		parsed, err := oj.Parse([]byte(raw))
		if err != nil {
			return fmt.Errorf("parse record json: %w", err)
		}
		if err := fn(id, parsed); err != nil {
			return err
		}
	}
	return rows.Err()
}

func readMeta(db *sql.DB, snap *api.Snapshot) error {
	rows, err := db.Query("SELECT key, value FROM meta")
	if err != nil {
		return fmt.Errorf("query meta: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan meta: %w", err)
		}
		switch key {
		case "schema":
			snap.Schema = value
		case "length_unit_scale":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("meta length_unit_scale: %w", err)
			}
			snap.LengthUnitScale = f
		}
	}
	return rows.Err()
}
