// Package pipeline fans elements out to workers and persists their records
// in bounded batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/ifclca/ifcqto/api"
	"github.com/ifclca/ifcqto/internal/logger"
	"github.com/ifclca/ifcqto/internal/material"
	"github.com/ifclca/ifcqto/internal/record"
	"github.com/ifclca/ifcqto/internal/sink"
	"github.com/ifclca/ifcqto/internal/volume"
	"golang.org/x/sync/errgroup"
)

const DefaultBatchSize = 500

// PersistenceError is fatal to a run. Flushed counts the records written
// by earlier batches, which stay written.
type PersistenceError struct {
	Batch   int // 1-based index of the failed batch
	Size    int
	Flushed int
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist batch %d (%d records): %v; %d records flushed before failure", e.Batch, e.Size, e.Err, e.Flushed)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Stats summarize a run.
type Stats struct {
	Processed  int
	Persisted  int
	Batches    int
	BySource   map[volume.Source]int
	EqualSplit int
	Failures   int
}

type Options struct {
	BatchSize int // default 500
	Workers   int // default GOMAXPROCS
}

// Runner drives a Processor over a set of elements into a Sink.
type Runner struct {
	proc *Processor
	sink sink.Sink
	opts Options
	log  *logger.Logger
}

func NewRunner(proc *Processor, s sink.Sink, opts Options, log *logger.Logger) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{proc: proc, sink: s, opts: opts, log: log.With("component", "Pipeline")}
}

// Run processes every element. Elements are independent and records reach
// the sink in no particular order. The first flush failure stops the run
// and is returned as *PersistenceError; per-element failures are only
// counted and logged.
func (r *Runner) Run(ctx context.Context, elements []api.Element) (Stats, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan Outcome, r.opts.Workers*2)
	acc := &accumulator{
		sink:  r.sink,
		size:  r.opts.BatchSize,
		log:   r.log,
		stats: Stats{BySource: make(map[volume.Source]int)},
		batch: make([]record.ElementRecord, 0, r.opts.BatchSize),
	}
	accDone := make(chan struct{})
	go func() {
		defer close(accDone)
		for out := range results {
			if acc.err != nil {
				continue // drain
			}
			if err := acc.add(runCtx, out); err != nil {
				acc.err = err
				cancel()
			}
		}
	}()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(r.opts.Workers)
	for _, el := range elements {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out := r.proc.Process(gctx, el)
			select {
			case results <- out:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	waitErr := g.Wait()
	close(results)
	<-accDone

	if acc.err != nil {
		return acc.stats, acc.err
	}
	if err := ctx.Err(); err != nil {
		return acc.stats, err
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return acc.stats, waitErr
	}
	if err := acc.flush(ctx); err != nil {
		return acc.stats, err
	}
	r.log.Info("run complete",
		"processed", acc.stats.Processed,
		"persisted", acc.stats.Persisted,
		"batches", acc.stats.Batches,
		"element_failures", acc.stats.Failures,
		"equal_split", acc.stats.EqualSplit,
	)
	return acc.stats, nil
}

// accumulator is owned by a single goroutine.
type accumulator struct {
	sink  sink.Sink
	size  int
	log   *logger.Logger
	stats Stats
	batch []record.ElementRecord
	err   error
}

func (a *accumulator) add(ctx context.Context, out Outcome) error {
	a.stats.Processed++
	a.stats.BySource[out.Record.VolumeSource]++
	for _, f := range out.Failures {
		a.stats.Failures++
		a.log.Warn("element degraded", "guid", f.GUID, "stage", f.Stage, "reason", f.Reason)
	}
	if out.Allocation.Basis == material.BasisEqual {
		a.stats.EqualSplit++
		a.log.Warn("equal-split material allocation", "guid", out.Record.GUID, "reason", out.Allocation.Reason, "components", len(out.Allocation.Components))
	}
	a.batch = append(a.batch, out.Record)
	if len(a.batch) >= a.size {
		return a.flush(ctx)
	}
	return nil
}

func (a *accumulator) flush(ctx context.Context) error {
	if len(a.batch) == 0 {
		return nil
	}
	n := len(a.batch)
	if err := a.sink.InsertMany(ctx, a.batch); err != nil {
		return &PersistenceError{Batch: a.stats.Batches + 1, Size: n, Flushed: a.stats.Persisted, Err: err}
	}
	a.stats.Batches++
	a.stats.Persisted += n
	a.log.Debug("batch flushed", "batch", a.stats.Batches, "records", n)
	a.batch = a.batch[:0]
	return nil
}
