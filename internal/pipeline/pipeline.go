// Package pipeline is the batch driver. For each logical entity it normalizes
// the entity's source files into an intermediate CSV stream, converts that
// stream into a typed table, persists it as a Parquet artifact, and collects
// one Result per entity into a Summary.
//
// Failure isolation is at entity granularity: a hard error in one entity's
// pipeline (a type-coercion failure, an I/O error) lands in its Result and
// the driver moves on to the next entity. Entities share no mutable state,
// so the parallel mode needs no locking; the sequential mode exists for
// deterministic diagnostic ordering.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"retroparquet/internal/metrics"
	"retroparquet/internal/normalize"
	"retroparquet/internal/reader"
	"retroparquet/internal/schema"
	"retroparquet/internal/writer"
)

// Entity is one fully-resolved unit of work: sorted source files, rules,
// typed schema, and encoding policy. Resolution (globbing, schema loading)
// happens upstream in the CLI.
type Entity struct {
	Name   string
	Files  []string // resolved, sorted upstream
	Rules  normalize.Rules
	Schema *schema.Entity
	Policy writer.Policy
}

// Options tunes a run.
type Options struct {
	// Job labels metrics and log lines.
	Job string

	// OutDir receives <entity>.csv and <entity>.parquet per entity.
	OutDir string

	// BlockSize is the reader's rows-per-chunk tunable; 0 selects the
	// reader default.
	BlockSize int

	// Parallel processes entities concurrently instead of in declaration
	// order.
	Parallel bool
}

// Result reports one entity's outcome.
type Result struct {
	Entity string
	Stats  normalize.Stats
	Rows   int64 // rows in the written artifact
	Err    error // non-nil when the entity aborted
}

// Summary is the whole run's outcome, in entity declaration order.
type Summary struct {
	Results []Result
}

// Failed returns the results of entities that aborted.
func (s Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Run executes the pipeline for all entities and returns the Summary. The
// returned error covers run-level failures only (the output directory being
// unwritable); per-entity failures live in the Summary.
func Run(ctx context.Context, entities []Entity, opt Options) (Summary, error) {
	if err := os.MkdirAll(opt.OutDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output dir: %w", err)
	}

	results := make([]Result, len(entities))
	if opt.Parallel {
		g, ctx := errgroup.WithContext(ctx)
		for i, e := range entities {
			i, e := i, e
			g.Go(func() error {
				results[i] = runEntity(ctx, e, opt)
				// Entity failures never cancel sibling entities.
				return nil
			})
		}
		// Only a context cancellation can surface here.
		if err := g.Wait(); err != nil {
			return Summary{Results: results}, err
		}
	} else {
		for i, e := range entities {
			if err := ctx.Err(); err != nil {
				return Summary{Results: results}, err
			}
			results[i] = runEntity(ctx, e, opt)
		}
	}
	return Summary{Results: results}, nil
}

func runEntity(ctx context.Context, e Entity, opt Options) Result {
	res := Result{Entity: e.Name}

	csvPath := filepath.Join(opt.OutDir, e.Name+".csv")
	parquetPath := filepath.Join(opt.OutDir, e.Name+".parquet")

	// Stage 1: normalize into the intermediate stream.
	start := time.Now()
	stats, err := normalizeToFile(e, csvPath)
	metrics.RecordStep(opt.Job, e.Name, "normalize", err, time.Since(start))
	res.Stats = stats
	if err != nil {
		res.Err = fmt.Errorf("normalize: %w", err)
		return res
	}
	metrics.RecordRows(opt.Job, e.Name, "emitted", int64(stats.Lines))
	metrics.RecordRows(opt.Job, e.Name, "duplicates", int64(stats.Duplicates))
	metrics.RecordRows(opt.Job, e.Name, "repaired", int64(stats.Repaired))
	metrics.RecordRows(opt.Job, e.Name, "dropped", int64(stats.Dropped))
	metrics.RecordRows(opt.Job, e.Name, "filtered", int64(stats.Filtered))

	// Stage 2: typed conversion.
	start = time.Now()
	f, err := os.Open(csvPath)
	if err != nil {
		res.Err = fmt.Errorf("open intermediate: %w", err)
		return res
	}
	tbl, err := reader.ReadTable(f, e.Schema, reader.Options{
		BlockSize: opt.BlockSize,
		SortKey:   e.Policy.DeltaKey,
	})
	f.Close()
	metrics.RecordStep(opt.Job, e.Name, "convert", err, time.Since(start))
	if err != nil {
		res.Err = fmt.Errorf("convert: %w", err)
		return res
	}
	defer tbl.Release()

	// Stage 3: columnar artifact, full replacement.
	start = time.Now()
	err = writer.Write(parquetPath, tbl, e.Policy)
	metrics.RecordStep(opt.Job, e.Name, "write", err, time.Since(start))
	if err != nil {
		res.Err = fmt.Errorf("write: %w", err)
		return res
	}
	res.Rows = tbl.NumRows()
	metrics.RecordRows(opt.Job, e.Name, "written", res.Rows)

	log.Printf("%s: %d rows (%d emitted, %d duplicates, %d repaired, %d dropped, %d filtered)",
		e.Name, res.Rows, stats.Lines, stats.Duplicates, stats.Repaired, stats.Dropped, stats.Filtered)
	return res
}

func normalizeToFile(e Entity, path string) (normalize.Stats, error) {
	out, err := os.Create(path)
	if err != nil {
		return normalize.Stats{}, fmt.Errorf("create %s: %w", path, err)
	}
	rules := e.Rules
	rules.Width = e.Schema.Width()
	stats, err := normalize.Concat(e.Name, e.Files, rules, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	return stats, err
}
