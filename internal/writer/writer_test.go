package writer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"

	"retroparquet/internal/reader"
	"retroparquet/internal/schema"
)

func buildTable(t *testing.T, ent *schema.Entity, csv string, opt reader.Options) arrow.Table {
	t.Helper()
	tbl, err := reader.ReadTable(strings.NewReader(csv), ent, opt)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	return tbl
}

func readBack(t *testing.T, path string) arrow.Table {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })

	pf, err := file.NewParquetReader(f)
	if err != nil {
		t.Fatalf("parquet reader: %v", err)
	}
	mem := memory.NewGoAllocator()
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		t.Fatalf("arrow reader: %v", err)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	t.Cleanup(tbl.Release)
	return tbl
}

// value returns row i of column col as the concrete Go value, or nil for null.
func value(t *testing.T, tbl arrow.Table, col, row int) any {
	t.Helper()
	n := 0
	for _, chunk := range tbl.Column(col).Data().Chunks() {
		if row < n+chunk.Len() {
			i := row - n
			if chunk.IsNull(i) {
				return nil
			}
			switch a := chunk.(type) {
			case *array.Int16:
				return a.Value(i)
			case *array.Int32:
				return a.Value(i)
			case *array.Float64:
				return a.Value(i)
			case *array.String:
				return a.Value(i)
			case *array.Boolean:
				return a.Value(i)
			case *array.Timestamp:
				return int64(a.Value(i))
			default:
				t.Fatalf("unhandled array type %T", chunk)
			}
		}
		n += chunk.Len()
	}
	t.Fatalf("row %d out of range", row)
	return nil
}

func TestWrite_RoundTrip(t *testing.T) {
	ent, err := schema.Build("trip", []schema.Column{
		{Name: "date", Type: schema.RelDate, Nullable: true},
		{Name: "n", Type: schema.RelSmallInt, Nullable: true},
		{Name: "team", Type: schema.RelChar, Nullable: true},
		{Name: "won", Type: schema.RelBoolean, Nullable: true},
		{Name: "avg", Type: schema.RelFloat, Nullable: true},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tbl := buildTable(t, ent, "19010415,3,CLE,T,0.25\n,,PHA,0,\n", reader.Options{})
	defer tbl.Release()

	path := filepath.Join(t.TempDir(), "trip.parquet")
	if err := Write(path, tbl, Policy{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := readBack(t, path)
	if got.NumRows() != 2 {
		t.Fatalf("rows: got %d want 2", got.NumRows())
	}

	wantDate := time.Date(1901, time.April, 15, 0, 0, 0, 0, time.UTC).UnixMilli()
	if v := value(t, got, 0, 0); v != wantDate {
		t.Fatalf("date: got %v want %v", v, wantDate)
	}
	if v := value(t, got, 1, 0); v != int16(3) {
		t.Fatalf("n: got %v want 3", v)
	}
	if v := value(t, got, 3, 0); v != true {
		t.Fatalf("won: got %v want true", v)
	}
	if v := value(t, got, 3, 1); v != false {
		t.Fatalf("won: got %v want false", v)
	}
	// Empty fields round-trip to null.
	for _, col := range []int{0, 1, 4} {
		if v := value(t, got, col, 1); v != nil {
			t.Fatalf("column %d row 1: got %v want null", col, v)
		}
	}
}

func TestWrite_DeltaKeyRequiresSortedTable(t *testing.T) {
	ent, err := schema.Build("roster", []schema.Column{
		{Name: "year", Type: schema.RelInteger, Nullable: true},
		{Name: "player_id", Type: schema.RelChar, Nullable: true},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// The reader's SortKey orders the table before the delta-encoded write.
	tbl := buildTable(t, ent, "1903,a\n1901,b\n1902,c\n", reader.Options{SortKey: "year"})
	defer tbl.Release()

	path := filepath.Join(t.TempDir(), "roster.parquet")
	pol := Policy{DeltaKey: "year", NoDictionary: []string{"player_id"}}
	if err := Write(path, tbl, pol); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := readBack(t, path)
	years := []any{value(t, got, 0, 0), value(t, got, 0, 1), value(t, got, 0, 2)}
	want := []any{int32(1901), int32(1902), int32(1903)}
	for i := range want {
		if years[i] != want[i] {
			t.Fatalf("year[%d]: got %v want %v", i, years[i], want[i])
		}
	}
}

func TestWrite_ReplacesPriorArtifact(t *testing.T) {
	ent, err := schema.Build("r", []schema.Column{
		{Name: "v", Type: schema.RelInteger, Nullable: true},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	path := filepath.Join(t.TempDir(), "r.parquet")

	first := buildTable(t, ent, "1\n2\n3\n", reader.Options{})
	if err := Write(path, first, Policy{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	first.Release()

	second := buildTable(t, ent, "7\n", reader.Options{})
	defer second.Release()
	if err := Write(path, second, Policy{}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	got := readBack(t, path)
	if got.NumRows() != 1 {
		t.Fatalf("rows after replace: got %d want 1", got.NumRows())
	}
	if v := value(t, got, 0, 0); v != int32(7) {
		t.Fatalf("v: got %v want 7", v)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}
