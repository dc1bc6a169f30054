// Command retroparquet rebuilds the simple-file Parquet artifacts from
// per-year Retrosheet record files. It loads the pipeline config (or the
// built-in Retrosheet defaults), validates it, optionally initializes a
// metrics backend, and executes the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"retroparquet/internal/config"
	"retroparquet/internal/datasource/file"
	"retroparquet/internal/metrics"
	"retroparquet/internal/metrics/datadog"
	"retroparquet/internal/metrics/prompush"
	"retroparquet/internal/normalize"
	"retroparquet/internal/pipeline"
	"retroparquet/internal/schema"
)

func main() {
	var (
		cfgPath           string
		inputDir          string
		outputDir         string
		metricsBackendFlg string
		pushGatewayURLFlg string
		dogstatsdAddrFlg  string
		validate          bool
		parallel          bool
	)

	flag.StringVar(&cfgPath, "config", "", "pipeline config JSON path (empty = built-in Retrosheet defaults)")
	flag.StringVar(&inputDir, "input", "", "override config input_dir")
	flag.StringVar(&outputDir, "output", "", "override config output_dir")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&dogstatsdAddrFlg, "dogstatsd-addr", "", "DogStatsD address (overrides env DOGSTATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&parallel, "parallel", false, "process entities concurrently")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			fatalf("%v", err)
		}
	}
	if inputDir != "" {
		cfg.InputDir = inputDir
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if parallel {
		cfg.Runtime.Parallel = true
	}

	issues := config.Validate(cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	initMetrics(cfg.Job, metricsBackendFlg, pushGatewayURLFlg, dogstatsdAddrFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	start := time.Now()

	entities, err := resolveEntities(ctx, cfg)
	if err != nil {
		fatalf("%v", err)
	}

	summary, err := pipeline.Run(ctx, entities, pipeline.Options{
		Job:       cfg.Job,
		OutDir:    cfg.OutputDir,
		BlockSize: cfg.Runtime.BlockSize,
		Parallel:  cfg.Runtime.Parallel,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	failed := summary.Failed()
	for _, r := range failed {
		log.Printf("%s: FAILED: %v", r.Entity, r.Err)
	}
	if *verbose {
		log.Printf("completed %d/%d entities in %s",
			len(summary.Results)-len(failed), len(summary.Results),
			time.Since(start).Truncate(time.Millisecond))
	}
	if len(failed) > 0 {
		os.Exit(1)
	}
}

// resolveEntities turns config declarations into fully-resolved pipeline
// entities: schema built (or loaded from the database), source files globbed
// and sorted. Schema errors here are startup-fatal; no file has been read.
func resolveEntities(ctx context.Context, cfg config.Config) ([]pipeline.Entity, error) {
	out := make([]pipeline.Entity, 0, len(cfg.Entities))
	for _, e := range cfg.Entities {
		cols := e.Columns
		if cfg.SchemaSource.Kind == "postgres" {
			var err error
			cols, err = schema.FromPostgres(ctx, cfg.SchemaSource.DSN, e.Name)
			if err != nil {
				return nil, err
			}
		}
		ent, err := schema.Build(e.Name, cols)
		if err != nil {
			return nil, err
		}
		files, err := file.Resolve(cfg.InputDir, e.Glob)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", e.Name, err)
		}
		var marker byte
		if e.Rules.CompleteMarker != "" {
			marker = e.Rules.CompleteMarker[0]
		}
		out = append(out, pipeline.Entity{
			Name:  e.Name,
			Files: files,
			Rules: normalize.Rules{
				Dedupe:         e.Rules.Dedupe,
				StripHeader:    e.Rules.StripHeader,
				PrependTag:     e.Rules.PrependTag,
				CompleteMarker: marker,
				SourceEncoding: e.Rules.SourceEncoding,
			},
			Schema: ent,
			Policy: e.Encoding,
		})
	}
	return out, nil
}

// initMetrics decides the metrics backend: flag, then env, then none.
func initMetrics(job, backendName, gwURL, ddAddr string, verbose bool) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	if job == "" {
		job = "retroparquet"
	}
	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=pushgateway url=%v job=%v", gwURL, job)
		metrics.SetBackend(b)

	case "datadog":
		if ddAddr == "" {
			ddAddr = os.Getenv("DOGSTATSD_ADDR")
		}
		if ddAddr == "" {
			ddAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: ddAddr, Namespace: "retroparquet."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=datadog addr=%v job=%v", ddAddr, job)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
