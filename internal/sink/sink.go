// Package sink persists element records in bulk.
//
// Every implementation treats InsertMany as non-transactional across
// batches: a failed batch may be partially written, and earlier batches
// are never rolled back.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ifclca/ifcqto/internal/record"
)

// Sink is a bulk record store.
type Sink interface {
	InsertMany(ctx context.Context, records []record.ElementRecord) error
	Close() error
}

// Options carry store-specific settings.
type Options struct {
	MongoDatabase   string
	MongoCollection string
	Stdout          io.Writer
}

// IDSource is implemented by sinks that want component ids in their own
// format.
type IDSource interface {
	NewID() string
}

// Open selects a sink by DSN:
//
//	"-"                       JSON lines on stdout
//	mongodb:// mongodb+srv:// MongoDB collection
//	postgres:// postgresql:// PostgreSQL via gorm
//	sqlite://path, *.db       SQLite file
func Open(ctx context.Context, dsn string, opts Options) (Sink, error) {
	switch {
	case dsn == "" || dsn == "-":
		w := opts.Stdout
		if w == nil {
			w = os.Stdout
		}
		return NewJSONLines(w), nil
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return NewMongo(ctx, dsn, opts.MongoDatabase, opts.MongoCollection)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgres(dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return NewSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported sink %q", dsn)
	}
}

// Memory keeps records in memory. Fail, when set, is returned by the
// n-th call to InsertMany (1-based) instead of storing the batch.
type Memory struct {
	mu      sync.Mutex
	Batches [][]record.ElementRecord
	FailOn  int
	Fail    error
	calls   int
}

func (m *Memory) InsertMany(_ context.Context, records []record.ElementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Fail != nil && m.calls == m.FailOn {
		return m.Fail
	}
	batch := make([]record.ElementRecord, len(records))
	copy(batch, records)
	m.Batches = append(m.Batches, batch)
	return nil
}

func (m *Memory) Close() error { return nil }

// Records returns every stored record in insertion order.
func (m *Memory) Records() []record.ElementRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []record.ElementRecord
	for _, b := range m.Batches {
		out = append(out, b...)
	}
	return out
}
