package converter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrSkipped is the error recorded on documents that were never started.
var ErrSkipped = errors.New("document skipped")

// Sink receives the header and rows of a batch. Calls are made from a single
// goroutine: one WriteHeader, then WriteRows once per successful document in
// input order, then Close.
type Sink interface {
	WriteHeader(header []string) error
	WriteRows(rows [][]string) error
	Close() error
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	// Results holds one entry per input path, in input order.
	Results []Result

	Succeeded   int
	Failed      int
	Skipped     int
	RowsWritten int
	Duration    time.Duration
}

// Failures returns the results of documents that failed or were skipped.
func (b *BatchResult) Failures() []Result {
	var out []Result
	for _, r := range b.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

// RunBatch converts every document in paths and writes the rows to sink.
//
// PARAMETERS:
//   - ctx: Cancelling ctx stops new documents from being launched; documents
//     already running finish.
//   - paths: The documents, in output order.
//   - sink: The output. Nil converts without writing (dry run). RunBatch does
//     not close the sink.
//
// RETURNS:
//   - A BatchResult with one Result per path. A failing document never stops
//     the others unless ContinueOnError is false, in which case documents not
//     yet launched are skipped.
//   - An error only when the sink fails; the BatchResult is still returned.
//
// ORDERING:
//   Documents run concurrently, bounded by MaxConcurrency. The coordinator
//   writes each document's rows as soon as it and every earlier document are
//   done, so the output order always equals the input order.
func (c *Converter) RunBatch(ctx context.Context, paths []string, sink Sink) (*BatchResult, error) {
	startTime := time.Now()

	results := make([]Result, len(paths))
	done := make([]chan struct{}, len(paths))
	for i, p := range paths {
		results[i] = Result{FilePath: p, Skipped: true, Error: ErrSkipped}
		done[i] = make(chan struct{})
	}

	// =========================================================================
	// COORDINATOR
	// =========================================================================

	batch := &BatchResult{Results: results}
	var sinkErr error
	written := make(chan struct{})

	go func() {
		defer close(written)

		if sink != nil {
			if err := sink.WriteHeader(c.Header()); err != nil {
				sinkErr = fmt.Errorf("failed to write header: %w", err)
			}
		}

		for i := range paths {
			<-done[i]
			r := results[i]

			switch {
			case r.Success:
				batch.Succeeded++
				if sink != nil && sinkErr == nil {
					if err := sink.WriteRows(r.Rows); err != nil {
						sinkErr = fmt.Errorf("failed to write rows for %s: %w", r.FilePath, err)
					} else {
						batch.RowsWritten += len(r.Rows)
					}
				}
			case r.Skipped:
				batch.Skipped++
			default:
				batch.Failed++
			}

			if c.opts.OnResult != nil {
				c.opts.OnResult(r)
			}
		}
	}()

	// =========================================================================
	// WORKERS
	// =========================================================================
	// Errors are kept in each Result and never returned to the group, so one
	// document's failure cannot cancel the others.

	var anyFailed atomic.Bool
	stopping := func() bool {
		return ctx.Err() != nil || (!c.opts.ContinueOnError && anyFailed.Load())
	}

	g := new(errgroup.Group)
	g.SetLimit(c.opts.MaxConcurrency)

	launched := 0
	for i, path := range paths {
		if stopping() {
			c.log.Warn().Int("remaining", len(paths)-i).Msg("batch stopped, skipping remaining documents")
			break
		}

		i, path := i, path
		g.Go(func() error {
			defer close(done[i])
			// g.Go may have waited for a slot; re-check before starting.
			if stopping() {
				return nil
			}
			r := c.ConvertFile(path)
			if !r.Success {
				anyFailed.Store(true)
			}
			results[i] = r
			return nil
		})
		launched++
	}

	for i := launched; i < len(paths); i++ {
		close(done[i])
	}

	_ = g.Wait()
	<-written

	batch.Duration = time.Since(startTime)

	c.log.Info().
		Int("documents", len(paths)).
		Int("succeeded", batch.Succeeded).
		Int("failed", batch.Failed).
		Int("skipped", batch.Skipped).
		Int("rows", batch.RowsWritten).
		Dur("elapsed", batch.Duration).
		Msg("batch complete")

	return batch, sinkErr
}
