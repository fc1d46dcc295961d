package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// MergeSpec describes how a batch of rows folds into a table that carries a
// unique natural key, such as the officer roster keyed by e-mail.
type MergeSpec struct {
	Table   string   // target table, "name" or "schema.name"
	Columns []string // column order of every row
	Key     []string // natural key; each entry must appear in Columns
}

func (s MergeSpec) validate() error {
	if s.Table == "" {
		return eris.New("db: merge: table is empty")
	}
	if len(s.Columns) == 0 {
		return eris.Errorf("db: merge %s: column list is empty", s.Table)
	}
	if len(s.Key) == 0 {
		return eris.Errorf("db: merge %s: natural key is empty", s.Table)
	}
	for _, k := range s.Key {
		if s.index(k) < 0 {
			return eris.Errorf("db: merge %s: key column %q not in column list", s.Table, k)
		}
	}
	return nil
}

func (s MergeSpec) index(col string) int {
	for i, c := range s.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// assignments lists the columns an existing row takes from the batch.
func (s MergeSpec) assignments() []string {
	skip := make(map[string]bool, len(s.Key))
	for _, c := range s.Key {
		skip[c] = true
	}
	var out []string
	for _, c := range s.Columns {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}

// stagingTable names the session-local table rows are copied into.
func (s MergeSpec) stagingTable() string {
	return "_stage_" + strings.ReplaceAll(s.Table, ".", "_")
}

// MergeRows copies rows into a transaction-scoped staging table and folds them
// into spec.Table with INSERT ... ON CONFLICT. Rows repeating a key collapse to
// the last one, matching a row-by-row import of the same file. Returns the
// number of rows inserted or updated.
func MergeRows(ctx context.Context, pool Pool, spec MergeSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := spec.validate(); err != nil {
		return 0, err
	}
	rows, err := lastPerKey(spec, rows)
	if err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: begin", spec.Table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	staging := spec.stagingTable()
	if _, err := tx.Exec(ctx, stagingSQL(spec)); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: create %s", spec.Table, staging)
	}
	if _, err := CopyFrom(ctx, tx, staging, spec.Columns, rows); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: copy into %s", spec.Table, staging)
	}

	tag, err := tx.Exec(ctx, mergeSQL(spec))
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: fold staged rows", spec.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: commit", spec.Table)
	}
	return tag.RowsAffected(), nil
}

// lastPerKey drops earlier rows that share a natural key with a later row.
// ON CONFLICT refuses to touch the same target row twice in one statement.
func lastPerKey(spec MergeSpec, rows [][]any) ([][]any, error) {
	idx := make([]int, len(spec.Key))
	for i, k := range spec.Key {
		idx[i] = spec.index(k)
	}

	pos := make(map[string]int, len(rows))
	out := make([][]any, 0, len(rows))
	for n, row := range rows {
		if len(row) != len(spec.Columns) {
			return nil, eris.Errorf("db: merge %s: row %d has %d values, want %d",
				spec.Table, n, len(row), len(spec.Columns))
		}
		var key strings.Builder
		for _, i := range idx {
			fmt.Fprintf(&key, "%v\x00", row[i])
		}
		if at, seen := pos[key.String()]; seen {
			out[at] = row
			continue
		}
		pos[key.String()] = len(out)
		out = append(out, row)
	}
	return out, nil
}

func stagingSQL(spec MergeSpec) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{spec.stagingTable()}.Sanitize(), qualified(spec.Table))
}

func mergeSQL(spec MergeSpec) string {
	cols := identList(spec.Columns)
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) ",
		qualified(spec.Table), cols, cols,
		pgx.Identifier{spec.stagingTable()}.Sanitize(), identList(spec.Key))

	set := spec.assignments()
	if len(set) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	b.WriteString("DO UPDATE SET ")
	for i, c := range set {
		if i > 0 {
			b.WriteString(", ")
		}
		id := pgx.Identifier{c}.Sanitize()
		fmt.Fprintf(&b, "%s = EXCLUDED.%s", id, id)
	}
	return b.String()
}

// qualified quotes "schema.table" as two identifiers.
func qualified(table string) string {
	return pgx.Identifier(strings.SplitN(table, ".", 2)).Sanitize()
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
