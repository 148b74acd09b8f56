// Package pipeline enriches rows of a delimited address file with the best
// OS Places match for each row.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/osmatch-cli/pkg/osmatch"
)

// Option configures a Driver.
type Option func(*Driver)

// WithReadOptions sets the delimiter and encoding used for input and output.
func WithReadOptions(opts ReadOptions) Option {
	return func(d *Driver) {
		d.fileOpts = opts
	}
}

// WithClock overrides the wall clock used for the run start time.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithRunID sets the run identifier reported in RunState.
func WithRunID(id string) Option {
	return func(d *Driver) {
		if id != "" {
			d.runID = id
		}
	}
}

// Driver runs one enrichment of one input file. It is single-use: after
// Run returns, create a new Driver for the next file.
type Driver struct {
	matcher  osmatch.Client
	fileOpts ReadOptions
	now      func() time.Time
	runID    string
	progress *Progress

	mu   sync.Mutex
	used bool
}

// NewDriver creates a Driver that looks rows up with matcher.
func NewDriver(matcher osmatch.Client, opts ...Option) *Driver {
	d := &Driver{
		matcher: matcher,
		now:     time.Now,
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.progress = NewProgress(d.runID)
	return d
}

// Progress exposes the run's state for observers.
func (d *Driver) Progress() *Progress {
	return d.progress
}

// Run enriches every data row of inputPath and writes the results next to
// it. Row-level failures are recorded in the output and never stop the run.
// It returns the path of the results file.
func (d *Driver) Run(ctx context.Context, inputPath, credential string) (string, error) {
	d.mu.Lock()
	if d.used {
		d.mu.Unlock()
		return "", ErrDriverUsed
	}
	d.used = true
	d.mu.Unlock()

	start := d.now()
	log := zap.L().With(zap.String("run_id", d.runID), zap.String("input", inputPath))

	outPath, err := d.run(ctx, log, inputPath, credential, start)
	if err != nil {
		d.progress.Fail(err)
		log.Error("pipeline: run failed", zap.Error(err))
		return "", err
	}

	d.progress.Complete(outPath)
	log.Info("pipeline: results saved", zap.String("output", outPath))
	return outPath, nil
}

func (d *Driver) run(ctx context.Context, log *zap.Logger, inputPath, credential string, start time.Time) (string, error) {
	d.progress.setPhase(PhaseValidating)

	if credential == "" {
		return "", &Error{Kind: KindCredential, Path: inputPath, Err: eris.New("pipeline: api key is required")}
	}

	table, err := ReadRecords(inputPath, d.fileOpts)
	if err != nil {
		return "", err
	}

	total := len(table.Rows)
	d.progress.start(total, start)
	log.Info("pipeline: starting enrichment", zap.Int("rows", total))

	results := make([]Row, 0, total)
	var failed int
	for i, row := range table.Rows {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", eris.Wrapf(ctxErr, "pipeline: cancelled after %d of %d rows", i, total)
		}

		index := i + 1
		res := d.processRow(ctx, index, row, credential)
		if !res.OK() {
			failed++
			log.Warn("pipeline: row failed", zap.Int("row", index), zap.Error(res.Err))
		} else {
			log.Debug("pipeline: row matched",
				zap.Int("row", index),
				zap.String("uprn", res.Fields.UPRN),
			)
		}
		results = append(results, res.Cells())
		d.progress.Advance(index, total)
	}

	log.Info("pipeline: rows processed",
		zap.Int("total", total),
		zap.Int("failed", failed),
	)

	return WriteResults(inputPath, start, OutputHeader(table.Header), results, d.fileOpts)
}

// processRow builds the query, looks it up and merges the answer. Failures
// are returned as degraded results.
func (d *Driver) processRow(ctx context.Context, index int, row Row, credential string) RowResult {
	query, err := BuildQuery(row)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.Row = index
		}
		return Failed(index, row, err)
	}

	resp, err := d.matcher.Match(ctx, query, credential)
	if err == nil && resp == nil {
		err = eris.New("pipeline: match client returned no response")
	}
	if err != nil {
		return Failed(index, row, &Error{Kind: KindLookup, Row: index, Err: err})
	}

	return Merge(index, row, Interpret(resp))
}
