package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ifclca/ifcqto/internal/record"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// Keys are sorted so identical records encode identically.
var ojgSorted = ojg.Options{Sort: true}

// JSONLines writes one JSON document per record.
type JSONLines struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: bufio.NewWriter(w)}
}

func (j *JSONLines) InsertMany(_ context.Context, records []record.ElementRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, r := range records {
		if _, err := j.w.WriteString(oj.JSON(r.Document(), &ojgSorted)); err != nil {
			return fmt.Errorf("write record %s: %w", r.GUID, err)
		}
		if err := j.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return j.w.Flush()
}

func (j *JSONLines) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.w.Flush()
}
