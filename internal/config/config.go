// Package config defines the JSON-serializable configuration model for the
// pipeline. It decodes with the standard library;
// Default() provides the built-in Retrosheet entity set so the binary runs
// with no config file at all.
//
// A config names the logical entities, and per entity: the source file glob,
// the normalization rule set, the ordered relational column declarations,
// and the column encoding policy. Validation lives in validate.go and runs
// before any file is opened.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"retroparquet/internal/schema"
	"retroparquet/internal/writer"
)

// Config is the top-level object decoded from a config file.
type Config struct {
	// Job labels metrics and log lines for this run.
	Job string `json:"job"`

	// InputDir is the base directory the entity globs resolve against.
	InputDir string `json:"input_dir"`

	// OutputDir receives one intermediate CSV and one Parquet artifact per
	// entity. Artifacts fully replace prior ones on every run.
	OutputDir string `json:"output_dir"`

	// SchemaSource selects where column declarations come from.
	SchemaSource SchemaSource `json:"schema_source"`

	// Entities lists the logical entities to build, processed in order.
	Entities []Entity `json:"entities"`

	// Runtime holds resource tunables shared by all entities.
	Runtime Runtime `json:"runtime"`
}

// SchemaSource selects the column-declaration mechanism.
type SchemaSource struct {
	// Kind is "config" (declarations inline in each entity) or "postgres"
	// (declarations read from information_schema at startup). Empty means
	// "config".
	Kind string `json:"kind"`

	// DSN is the pgx connection string for the "postgres" kind. The table
	// queried per entity is the entity name.
	DSN string `json:"dsn,omitempty"`
}

// Entity declares one logical entity.
type Entity struct {
	Name string `json:"name"`

	// Glob selects the entity's source files relative to InputDir, e.g.
	// "gamelog/*.TXT". Expansion and sorting happen upstream of the core.
	Glob string `json:"glob"`

	Rules Rules `json:"rules"`

	// Columns are the ordered relational column declarations. Ignored when
	// the schema source kind is "postgres".
	Columns []schema.Column `json:"columns,omitempty"`

	// Encoding is the per-column encoding policy for the Parquet artifact.
	Encoding writer.Policy `json:"encoding"`
}

// Rules is the JSON form of an entity's normalization rule set.
type Rules struct {
	Dedupe      bool `json:"dedupe"`
	StripHeader bool `json:"strip_header"`
	PrependTag  bool `json:"prepend_tag"`

	// CompleteMarker keeps only rows whose final field equals this single
	// character. Empty disables the filter.
	CompleteMarker string `json:"complete_marker,omitempty"`

	// SourceEncoding names the source charset when it is not UTF-8.
	SourceEncoding string `json:"source_encoding,omitempty"`
}

// Runtime holds resource tunables. Zero values select package defaults.
type Runtime struct {
	// BlockSize is the row count per Arrow record chunk in the typed reader.
	BlockSize int `json:"block_size"`

	// Parallel processes entities concurrently. Diagnostic ordering then
	// interleaves; per-entity dedup state stays isolated either way.
	Parallel bool `json:"parallel"`
}

// Load decodes a Config from the JSON file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}
