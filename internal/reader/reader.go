// Package reader parses a normalized intermediate line stream into a typed
// Arrow table. Columns are assigned positionally against the entity schema;
// the stream carries no header.
//
// Coercion rules are strict: boolean fields accept exactly {"1","T"} and
// {"0","F"}, timestamps are matched against a fixed ordered layout list, and
// an empty field parses to null for any nullable column. A field that fails
// every applicable rule is a hard error for the entity's run; dirt reaching
// this stage signals a gap in the upstream normalization rules.
package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"retroparquet/internal/schema"
)

// timestampLayouts is the ordered list of accepted date/datetime forms. The
// first layout that parses the entire field wins.
var timestampLayouts = []string{
	"20060102",
	"2006-01-02",
	"1/2/2006",
	"2006-01-02 15:04:05",
}

// DefaultBlockSize is the row count per Arrow record chunk when Options does
// not set one.
const DefaultBlockSize = 8192

// Options tunes the read for large inputs.
type Options struct {
	// BlockSize is the number of rows per Arrow record chunk. Larger blocks
	// trade memory for fewer chunks.
	BlockSize int

	// SortKey, when set, stably sorts all rows on the named column before
	// building the table, so a delta-encoded key sees monotonic order.
	// Integer-typed keys compare numerically.
	SortKey string
}

// ReadTable parses the stream into a table whose column order matches ent.
// The caller owns the returned table and must Release it.
func ReadTable(r io.Reader, ent *schema.Entity, opt Options) (arrow.Table, error) {
	blockSize := opt.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = ent.Width()

	rows, err := readRows(cr, ent)
	if err != nil {
		return nil, err
	}

	if opt.SortKey != "" {
		if err := sortRows(rows, ent, opt.SortKey); err != nil {
			return nil, err
		}
	}

	mem := memory.NewGoAllocator()
	sch := ent.Arrow()
	bldr := array.NewRecordBuilder(mem, sch)
	defer bldr.Release()

	var recs []arrow.Record
	release := func() {
		for _, rec := range recs {
			rec.Release()
		}
	}

	for start := 0; start < len(rows); start += blockSize {
		end := start + blockSize
		if end > len(rows) {
			end = len(rows)
		}
		for rowNum, row := range rows[start:end] {
			for i, f := range ent.Fields {
				if err := appendCell(bldr.Field(i), f, row[i]); err != nil {
					release()
					return nil, fmt.Errorf("entity %s: row %d: %w", ent.Name, start+rowNum+1, err)
				}
			}
		}
		recs = append(recs, bldr.NewRecord())
	}
	if len(recs) == 0 {
		// Empty input still yields a valid zero-row table.
		recs = append(recs, bldr.NewRecord())
	}

	tbl := array.NewTableFromRecords(sch, recs)
	release()
	return tbl, nil
}

func readRows(cr *csv.Reader, ent *schema.Entity) ([][]string, error) {
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			// Wrong field count or broken quoting here means the upstream
			// normalization rules let a malformed record through; surface it
			// as a hard error for this entity.
			return nil, fmt.Errorf("entity %s: %w", ent.Name, err)
		}
		row := make([]string, len(rec))
		copy(row, rec)
		rows = append(rows, row)
	}
}

// sortRows stably sorts rows on the named key column. The sort happens on the
// raw field text: numerically for integer-typed keys, lexicographically
// otherwise. Empty key fields order first.
func sortRows(rows [][]string, ent *schema.Entity, key string) error {
	idx := ent.Index(key)
	if idx < 0 {
		return fmt.Errorf("entity %s: sort key %q is not a schema column", ent.Name, key)
	}
	numeric := ent.Fields[idx].Type == schema.Int16 || ent.Fields[idx].Type == schema.Int32
	sort.SliceStable(rows, func(a, b int) bool {
		va, vb := rows[a][idx], rows[b][idx]
		if numeric {
			ia, errA := strconv.ParseInt(va, 10, 64)
			ib, errB := strconv.ParseInt(vb, 10, 64)
			if errA == nil && errB == nil {
				return ia < ib
			}
			// Unparsable (likely empty) keys order before parsable ones.
			if errA != nil && errB == nil {
				return true
			}
			if errA == nil && errB != nil {
				return false
			}
		}
		return va < vb
	})
	return nil
}

func appendCell(b array.Builder, f schema.FieldSpec, s string) error {
	if s == "" {
		if f.Nullable {
			b.AppendNull()
			return nil
		}
		if f.Type == schema.String {
			b.(*array.StringBuilder).Append("")
			return nil
		}
		return fmt.Errorf("column %s: empty value for non-nullable %s field", f.Name, f.Type)
	}

	switch f.Type {
	case schema.Int16:
		v, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return fmt.Errorf("column %s: cannot parse %q as %s", f.Name, s, f.Type)
		}
		b.(*array.Int16Builder).Append(int16(v))
	case schema.Int32:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return fmt.Errorf("column %s: cannot parse %q as %s", f.Name, s, f.Type)
		}
		b.(*array.Int32Builder).Append(int32(v))
	case schema.Float64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("column %s: cannot parse %q as %s", f.Name, s, f.Type)
		}
		b.(*array.Float64Builder).Append(v)
	case schema.String:
		b.(*array.StringBuilder).Append(s)
	case schema.Bool:
		switch s {
		case "1", "T":
			b.(*array.BooleanBuilder).Append(true)
		case "0", "F":
			b.(*array.BooleanBuilder).Append(false)
		default:
			return fmt.Errorf("column %s: cannot parse %q as %s", f.Name, s, f.Type)
		}
	case schema.TimestampMS:
		t, ok := parseTimestamp(s)
		if !ok {
			return fmt.Errorf("column %s: cannot parse %q as %s", f.Name, s, f.Type)
		}
		b.(*array.TimestampBuilder).Append(arrow.Timestamp(t.UnixMilli()))
	default:
		return fmt.Errorf("column %s: unhandled field type %v", f.Name, f.Type)
	}
	return nil
}

// parseTimestamp tries each accepted layout in order; a layout matches only
// when it consumes the entire field.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		// The compact form must be exactly eight digits.
		if layout == "20060102" && len(s) != 8 {
			continue
		}
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
