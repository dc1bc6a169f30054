// Package schema translates externally declared, ordered relational column
// lists into the closed set of columnar field types used by the typed reader
// and the Parquet writer.
//
// Design goals:
//
//  1. Exhaustiveness: the relational-type mapping is a closed table. Any
//     declaration using a type outside it is a configuration error surfaced
//     at startup, before any source file is opened.
//  2. Positional stability: field order in an Entity is exactly the declared
//     column order, which is also the physical column order of the
//     intermediate CSV stream and of the final Parquet schema.
//  3. Key exclusion: columns flagged as autoincrement/synthetic keys never
//     appear in the built Entity; the pipeline materializes only real data.
package schema

import (
	"fmt"

	"github.com/apache/arrow/go/v10/arrow"
)

// RelType names a relational source type as it appears in external column
// declarations. The set is closed; see mapType.
type RelType string

const (
	RelInteger  RelType = "integer"
	RelSmallInt RelType = "smallint"
	RelFloat    RelType = "float"
	RelChar     RelType = "char"
	RelVarchar  RelType = "varchar"
	RelText     RelType = "text"
	RelBoolean  RelType = "boolean"
	RelDate     RelType = "date"
	RelDateTime RelType = "datetime"
)

// FieldType is the closed set of columnar types an Entity field can have.
type FieldType int

const (
	Int32 FieldType = iota
	Int16
	Float64
	String
	Bool
	// TimestampMS is a millisecond-precision timestamp. Dates map here as
	// well because some Parquet consumers cannot handle date32 columns.
	TimestampMS
)

// String returns a short name for the field type, used in diagnostics.
func (t FieldType) String() string {
	switch t {
	case Int32:
		return "int32"
	case Int16:
		return "int16"
	case Float64:
		return "float64"
	case String:
		return "utf8"
	case Bool:
		return "bool"
	case TimestampMS:
		return "timestamp[ms]"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// Column is one externally declared relational column. Declarations arrive in
// order; the order is significant and preserved.
type Column struct {
	Name     string  `json:"name"`
	Type     RelType `json:"type"`
	Nullable bool    `json:"nullable"`

	// AutoKey marks an autoincrement/synthetic key column. Such columns are
	// excluded from the built Entity: they exist only in the relational
	// declaration, never in the data files.
	AutoKey bool `json:"auto_key,omitempty"`
}

// FieldSpec is one typed field of an Entity.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Nullable bool
}

// Entity is the immutable typed schema for one logical entity. Build it once
// at startup; it is safe for concurrent reads.
type Entity struct {
	Name   string
	Fields []FieldSpec
}

// Build translates ordered column declarations into an Entity. AutoKey
// columns are dropped. An unmapped relational type returns an error naming
// the entity and column; callers must treat it as fatal before any I/O.
func Build(name string, cols []Column) (*Entity, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("entity %s: no columns declared", name)
	}
	e := &Entity{Name: name, Fields: make([]FieldSpec, 0, len(cols))}
	for _, c := range cols {
		if c.AutoKey {
			continue
		}
		ft, err := mapType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("entity %s: column %s: %w", name, c.Name, err)
		}
		e.Fields = append(e.Fields, FieldSpec{Name: c.Name, Type: ft, Nullable: c.Nullable})
	}
	if len(e.Fields) == 0 {
		return nil, fmt.Errorf("entity %s: all columns are synthetic keys", name)
	}
	return e, nil
}

// mapType is the exhaustive RelType -> FieldType table.
func mapType(t RelType) (FieldType, error) {
	switch t {
	case RelInteger:
		return Int32, nil
	case RelSmallInt:
		return Int16, nil
	case RelFloat:
		return Float64, nil
	case RelChar, RelVarchar, RelText:
		return String, nil
	case RelBoolean:
		return Bool, nil
	case RelDate, RelDateTime:
		return TimestampMS, nil
	}
	return 0, fmt.Errorf("unmapped relational type %q", t)
}

// Width returns the number of physical columns, which is also the exact field
// count every intermediate record must have.
func (e *Entity) Width() int { return len(e.Fields) }

// Index returns the position of the named field, or -1 when absent.
func (e *Entity) Index(name string) int {
	for i, f := range e.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Arrow converts the Entity to an Arrow schema with matching field order.
func (e *Entity) Arrow() *arrow.Schema {
	fields := make([]arrow.Field, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = arrow.Field{Name: f.Name, Type: arrowType(f.Type), Nullable: f.Nullable}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t FieldType) arrow.DataType {
	switch t {
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int16:
		return arrow.PrimitiveTypes.Int16
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case String:
		return arrow.BinaryTypes.String
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	case TimestampMS:
		return arrow.FixedWidthTypes.Timestamp_ms
	}
	// Unreachable as long as mapType stays exhaustive.
	panic(fmt.Sprintf("schema: no arrow type for %v", t))
}
