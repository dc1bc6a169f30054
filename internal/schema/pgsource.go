// Package schema: optional Postgres-backed declaration source.
//
// Column declarations normally live in the pipeline config, but teams that
// already maintain the entity tables in a relational schema can point the
// pipeline at that database instead and keep a single source of truth. The
// loader reads information_schema.columns in ordinal order and translates the
// relational types through the same closed mapping as config declarations, so
// an unsupported type fails at startup either way.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// pgTypeMap translates information_schema data_type strings onto the closed
// RelType set. Anything absent here is a configuration error.
var pgTypeMap = map[string]RelType{
	"integer":                     RelInteger,
	"bigint":                      RelInteger,
	"smallint":                    RelSmallInt,
	"double precision":            RelFloat,
	"real":                        RelFloat,
	"numeric":                     RelFloat,
	"character":                   RelChar,
	"character varying":           RelVarchar,
	"text":                        RelText,
	"boolean":                     RelBoolean,
	"date":                        RelDate,
	"timestamp without time zone": RelDateTime,
	"timestamp with time zone":    RelDateTime,
}

// FromPostgres loads the ordered column declarations for table from the
// database at dsn. Identity and serial-defaulted columns are flagged as
// synthetic keys so Build excludes them. table may be schema-qualified
// ("public.gamelog"); unqualified names resolve against "public".
func FromPostgres(ctx context.Context, dsn, table string) ([]Column, error) {
	schemaName, tableName := "public", table
	if i := strings.IndexByte(table, '.'); i >= 0 {
		schemaName, tableName = table[:i], table[i+1:]
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("schema source: connect: %w", err)
	}
	defer conn.Close(ctx)

	const q = `
		SELECT column_name, data_type, is_nullable, is_identity, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := conn.Query(ctx, q, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("schema source: query %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, dataType, isNullable, isIdentity, colDefault string
		if err := rows.Scan(&name, &dataType, &isNullable, &isIdentity, &colDefault); err != nil {
			return nil, fmt.Errorf("schema source: scan: %w", err)
		}
		rel, ok := pgTypeMap[dataType]
		if !ok {
			return nil, fmt.Errorf("schema source: table %s.%s column %s: unmapped relational type %q",
				schemaName, tableName, name, dataType)
		}
		cols = append(cols, Column{
			Name:     name,
			Type:     rel,
			Nullable: isNullable == "YES",
			AutoKey:  isIdentity == "YES" || strings.HasPrefix(colDefault, "nextval("),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema source: read %s.%s: %w", schemaName, tableName, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("schema source: table %s.%s has no columns (missing table?)", schemaName, tableName)
	}
	return cols, nil
}
