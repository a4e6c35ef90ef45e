package core

import (
	"context"
	"strings"
)

// quoteIdentifier quotes a table or column name for safe SQL interpolation.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteQualified quotes a schema-qualified table name.
func quoteQualified(schema, table string) string {
	return quoteIdentifier(schema) + "." + quoteIdentifier(table)
}

// countTable returns the row count of an already-quoted table reference.
func countTable(ctx context.Context, db DBTX, quoted string) (int64, error) {
	var count int64
	err := db.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoted).Scan(&count)
	return count, err
}

// tableExists reports whether a table exists in the given schema.
func tableExists(ctx context.Context, db DBTX, schema, table string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, schema, table).Scan(&exists)
	return exists, err
}

// chunkStrings splits keys into chunks of at most size elements. The chunk
// size bounds statement parameter counts, nothing more.
func chunkStrings(keys []string, size int) [][]string {
	if size <= 0 || len(keys) <= size {
		if len(keys) == 0 {
			return nil
		}
		return [][]string{keys}
	}
	chunks := make([][]string, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}

// chunkInt64s splits ids into chunks of at most size elements.
func chunkInt64s(ids []int64, size int) [][]int64 {
	if size <= 0 || len(ids) <= size {
		if len(ids) == 0 {
			return nil
		}
		return [][]int64{ids}
	}
	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
