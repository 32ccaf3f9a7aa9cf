// Package geometry evaluates element volumes from their body representation.
// Evaluation is the last-resort volume source and runs on a bounded pool.
package geometry

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ifclca/ifcqto/api"
	"golang.org/x/sync/semaphore"
)

// Evaluator computes volumes on at most Workers concurrent evaluations.
// It is the only shared resource of a run and keeps no per-element state.
type Evaluator struct {
	sem   *semaphore.Weighted
	scale float64 // cubic native unit -> m3

	// volumeFn is swapped in tests.
	volumeFn func(*api.Shape) (float64, error)
}

// NewEvaluator creates a pool of the given size (<= 0 means GOMAXPROCS).
// unitScale converts one native length unit into metres.
func NewEvaluator(workers int, unitScale float64) *Evaluator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if unitScale <= 0 {
		unitScale = 1
	}
	return &Evaluator{
		sem:      semaphore.NewWeighted(int64(workers)),
		scale:    unitScale * unitScale * unitScale,
		volumeFn: Volume,
	}
}

// EvaluateVolume returns the volume of shape in m3. A panic inside the
// kernel is converted into an error so it stays local to the element.
func (e *Evaluator) EvaluateVolume(ctx context.Context, shape *api.Shape) (v float64, err error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer e.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			v, err = 0, fmt.Errorf("geometry kernel panic: %v", r)
		}
	}()
	raw, err := e.volumeFn(shape)
	if err != nil {
		return 0, err
	}
	return raw * e.scale, nil
}
