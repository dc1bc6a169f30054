// Package writer persists a typed Arrow table as one compressed Parquet
// artifact per entity.
//
// Encoding policy: every column dictionary-encodes by default, which suits
// the low-cardinality categorical columns that dominate this domain. Known
// high-cardinality columns (free text, line scores) opt out and fall back to
// plain encoding. A compact, near-monotonic ordinal key may instead use
// delta encoding; the table must arrive sorted on that key (the reader's
// SortKey option handles it). zstd compression applies to the whole file.
package writer

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/compress"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
)

// DefaultRowGroupLength bounds rows per row group when the policy does not
// set one. One million rows keeps peak memory modest while staying far above
// this domain's usual table sizes (single row group per artifact).
const DefaultRowGroupLength = 1 << 20

// Policy is the per-entity column encoding policy plus write tunables.
type Policy struct {
	// DeltaKey names a column to delta-encode instead of dictionary-encode.
	// Empty means no delta column.
	DeltaKey string `json:"delta_key,omitempty"`

	// NoDictionary lists columns excluded from dictionary encoding.
	NoDictionary []string `json:"no_dictionary,omitempty"`

	// RowGroupLength caps rows per row group; 0 means DefaultRowGroupLength.
	RowGroupLength int64 `json:"row_group_length,omitempty"`

	// WriteBatchSize caps rows per write batch within a row group; 0 keeps
	// the parquet library default.
	WriteBatchSize int64 `json:"write_batch_size,omitempty"`
}

// Write writes tbl to path, fully replacing any prior artifact. The file is
// written to a temporary sibling and renamed into place so a failed run never
// leaves a truncated artifact behind.
func Write(path string, tbl arrow.Table, pol Policy) error {
	rowGroupLen := pol.RowGroupLength
	if rowGroupLen <= 0 {
		rowGroupLen = DefaultRowGroupLength
	}

	opts := []parquet.WriterProperty{
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(true),
		parquet.WithMaxRowGroupLength(rowGroupLen),
	}
	if pol.WriteBatchSize > 0 {
		opts = append(opts, parquet.WithBatchSize(pol.WriteBatchSize))
	}
	for _, col := range pol.NoDictionary {
		opts = append(opts, parquet.WithDictionaryFor(col, false))
	}
	if pol.DeltaKey != "" {
		opts = append(opts,
			parquet.WithDictionaryFor(pol.DeltaKey, false),
			parquet.WithEncodingFor(pol.DeltaKey, parquet.Encodings.DeltaBinaryPacked),
		)
	}
	props := parquet.NewWriterProperties(opts...)

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	// Store the Arrow schema in the file metadata so narrow integer and
	// timestamp columns read back with their original types.
	arrProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	if err := pqarrow.WriteTable(tbl, f, rowGroupLen, props, arrProps); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	// pqarrow.WriteTable closes the underlying sink; only a genuine close
	// failure (not the redundant second close) should abort the write.
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
