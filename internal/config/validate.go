// Package config: static validation of Config values.
//
// Validate performs every check that can run without touching a source file
// and returns a list of findings. Error-severity findings are static defects
// (an unmapped relational type, a missing entity declaration) and must abort
// the run before any I/O; warnings are surfaced but non-blocking.
package config

import (
	"fmt"
	"strings"

	"retroparquet/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding surfaced to users without blocking.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into the
// config (e.g. "entities[2].encoding.delta_key").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error where convenient.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate statically checks cfg and returns all findings. It does not
// mutate cfg and performs no I/O.
func Validate(cfg Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.Job) == "" {
		issues = append(issues, Issue{SeverityWarning, "job", "job is empty; metrics and logs will use the default label"})
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		issues = append(issues, Issue{SeverityError, "output_dir", "output_dir must not be empty"})
	}
	switch cfg.SchemaSource.Kind {
	case "", "config":
	case "postgres":
		if strings.TrimSpace(cfg.SchemaSource.DSN) == "" {
			issues = append(issues, Issue{SeverityError, "schema_source.dsn", "dsn is required for the postgres schema source"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "schema_source.kind",
			fmt.Sprintf("unknown kind %q (want config or postgres)", cfg.SchemaSource.Kind)})
	}
	if cfg.Runtime.BlockSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.block_size", "block_size must not be negative"})
	}

	if len(cfg.Entities) == 0 {
		issues = append(issues, Issue{SeverityError, "entities", "at least one entity is required"})
		return issues
	}

	seen := make(map[string]bool, len(cfg.Entities))
	inlineColumns := cfg.SchemaSource.Kind == "" || cfg.SchemaSource.Kind == "config"
	for i, e := range cfg.Entities {
		path := fmt.Sprintf("entities[%d]", i)
		if strings.TrimSpace(e.Name) == "" {
			issues = append(issues, Issue{SeverityError, path + ".name", "entity name must not be empty"})
			continue
		}
		if seen[e.Name] {
			issues = append(issues, Issue{SeverityError, path + ".name", fmt.Sprintf("duplicate entity %q", e.Name)})
		}
		seen[e.Name] = true

		if strings.TrimSpace(e.Glob) == "" {
			issues = append(issues, Issue{SeverityWarning, path + ".glob", "glob is empty; the entity will read no files"})
		}
		if len(e.Rules.CompleteMarker) > 1 {
			issues = append(issues, Issue{SeverityError, path + ".rules.complete_marker",
				fmt.Sprintf("marker %q must be a single character", e.Rules.CompleteMarker)})
		}
		switch e.Rules.SourceEncoding {
		case "", "windows-1252", "latin-1", "iso-8859-1":
		default:
			issues = append(issues, Issue{SeverityError, path + ".rules.source_encoding",
				fmt.Sprintf("unsupported source encoding %q", e.Rules.SourceEncoding)})
		}

		if !inlineColumns {
			// Declarations come from the database at startup; the same
			// closed type mapping applies there.
			continue
		}
		ent, err := schema.Build(e.Name, e.Columns)
		if err != nil {
			issues = append(issues, Issue{SeverityError, path + ".columns", err.Error()})
			continue
		}
		issues = append(issues, validateEncoding(path, e, ent)...)
	}
	return issues
}

func validateEncoding(path string, e Entity, ent *schema.Entity) []Issue {
	var issues []Issue
	if key := e.Encoding.DeltaKey; key != "" {
		idx := ent.Index(key)
		switch {
		case idx < 0:
			issues = append(issues, Issue{SeverityError, path + ".encoding.delta_key",
				fmt.Sprintf("column %q is not in the entity schema", key)})
		case ent.Fields[idx].Type != schema.Int16 && ent.Fields[idx].Type != schema.Int32:
			issues = append(issues, Issue{SeverityError, path + ".encoding.delta_key",
				fmt.Sprintf("column %q is %s; delta encoding needs an integer ordinal", key, ent.Fields[idx].Type)})
		}
	}
	for _, col := range e.Encoding.NoDictionary {
		if ent.Index(col) < 0 {
			issues = append(issues, Issue{SeverityWarning, path + ".encoding.no_dictionary",
				fmt.Sprintf("column %q is not in the entity schema", col)})
		}
	}
	if e.Encoding.RowGroupLength < 0 {
		issues = append(issues, Issue{SeverityError, path + ".encoding.row_group_length", "must not be negative"})
	}
	if e.Encoding.WriteBatchSize < 0 {
		issues = append(issues, Issue{SeverityError, path + ".encoding.write_batch_size", "must not be negative"})
	}
	return issues
}
