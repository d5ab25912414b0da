package repository

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// DumpRepository produces and applies plain-SQL snapshots of the relational
// store: per table the sequences, drop/create statements, constraints and
// indexes rebuilt from the live schema, followed by literal INSERTs for
// every row. Foreign keys are re-added after all tables so table order does
// not matter, and the whole script is wrapped with statements that disable
// and re-enable foreign-key enforcement for the session.
type DumpRepository struct {
	db *sqlx.DB
}

// NewDumpRepository constructs the repository.
func NewDumpRepository(db *sqlx.DB) *DumpRepository {
	return &DumpRepository{db: db}
}

type dumpColumn struct {
	Name       string         `db:"column_name"`
	DataType   string         `db:"data_type"`
	MaxLength  sql.NullInt64  `db:"character_maximum_length"`
	IsNullable string         `db:"is_nullable"`
	Default    sql.NullString `db:"column_default"`
}

type dumpConstraint struct {
	Name       string `db:"conname"`
	Type       string `db:"contype"`
	Definition string `db:"condef"`
}

type sequenceState struct {
	LastValue int64 `db:"last_value"`
	IsCalled  bool  `db:"is_called"`
}

// Dump renders the full database as executable SQL.
func (r *DumpRepository) Dump(ctx context.Context) ([]byte, error) {
	tables, err := r.listTables(ctx)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("-- DocuNet backup\n")
	b.WriteString(fmt.Sprintf("-- Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339)))
	b.WriteString("SET session_replication_role = replica;\n\n")

	// Foreign keys reference tables that may not exist yet while the dump is
	// replayed, so they are collected here and re-added last.
	var foreignKeys []string
	for _, table := range tables {
		fks, err := r.dumpTable(ctx, &b, table)
		if err != nil {
			return nil, err
		}
		foreignKeys = append(foreignKeys, fks...)
	}

	for _, fk := range foreignKeys {
		b.WriteString(fk + "\n")
	}
	if len(foreignKeys) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("SET session_replication_role = DEFAULT;\n")
	return []byte(b.String()), nil
}

// Apply executes a dump against the live database inside one transaction.
// Merge mode wraps the statements with foreign-key enforcement disabled; a
// replace dump already carries its own wrapper and runs as-is.
func (r *DumpRepository) Apply(ctx context.Context, dump []byte, merge bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	script := string(dump)
	if merge {
		script = "SET session_replication_role = replica;\n" + script + "\nSET session_replication_role = DEFAULT;"
	}

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("apply database dump: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore transaction: %w", err)
	}
	return nil
}

func (r *DumpRepository) listTables(ctx context.Context) ([]string, error) {
	const query = `SELECT table_name FROM information_schema.tables
	WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`
	tables := make([]string, 0)
	if err := r.db.SelectContext(ctx, &tables, query); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

func (r *DumpRepository) dumpTable(ctx context.Context, b *strings.Builder, table string) ([]string, error) {
	const query = `SELECT column_name, data_type, character_maximum_length, is_nullable, column_default
	FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1
	ORDER BY ordinal_position`
	var columns []dumpColumn
	if err := r.db.SelectContext(ctx, &columns, query, table); err != nil {
		return nil, fmt.Errorf("describe table %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, nil
	}

	// DROP ... CASCADE destroys sequences owned by the table, so every
	// sequence referenced by a column default is recreated before the table
	// and restored to its live position after the rows.
	var setvals []string
	var ownedBy []string
	b.WriteString(fmt.Sprintf("DROP TABLE IF EXISTS %q CASCADE;\n", table))
	for _, col := range columns {
		seq := sequenceName(col.Default.String)
		if seq == "" {
			continue
		}
		var state sequenceState
		if err := r.db.GetContext(ctx, &state, fmt.Sprintf(`SELECT last_value, is_called FROM %q`, seq)); err != nil {
			return nil, fmt.Errorf("read sequence %s: %w", seq, err)
		}
		b.WriteString(fmt.Sprintf("DROP SEQUENCE IF EXISTS %q CASCADE;\n", seq))
		b.WriteString(fmt.Sprintf("CREATE SEQUENCE %q;\n", seq))
		ownedBy = append(ownedBy, fmt.Sprintf("ALTER SEQUENCE %q OWNED BY %q.%q;", seq, table, col.Name))
		setvals = append(setvals, fmt.Sprintf("SELECT setval('%q', %d, %t);", seq, state.LastValue, state.IsCalled))
	}

	b.WriteString(fmt.Sprintf("CREATE TABLE %q (\n", table))
	defs := make([]string, 0, len(columns))
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		def := fmt.Sprintf("  %q %s", col.Name, columnType(col))
		if col.IsNullable == "NO" {
			def += " NOT NULL"
		}
		if col.Default.Valid {
			def += " DEFAULT " + col.Default.String
		}
		defs = append(defs, def)
		names = append(names, fmt.Sprintf("%q", col.Name))
	}
	b.WriteString(strings.Join(defs, ",\n"))
	b.WriteString("\n);\n")
	for _, stmt := range ownedBy {
		b.WriteString(stmt + "\n")
	}

	foreignKeys, err := r.writeConstraints(ctx, b, table)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryxContext(ctx, fmt.Sprintf(`SELECT %s FROM %q`, strings.Join(names, ", "), table))
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row of %s: %w", table, err)
		}
		literals := make([]string, len(values))
		for i, v := range values {
			literals[i] = sqlLiteral(v)
		}
		b.WriteString(fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s);\n", table, strings.Join(names, ", "), strings.Join(literals, ", ")))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows of %s: %w", table, err)
	}

	for _, stmt := range setvals {
		b.WriteString(stmt + "\n")
	}
	if err := r.writeIndexes(ctx, b, table); err != nil {
		return nil, err
	}
	b.WriteString("\n")
	return foreignKeys, nil
}

// writeConstraints re-creates primary key, unique and check constraints in
// place and returns foreign keys for the end of the dump.
func (r *DumpRepository) writeConstraints(ctx context.Context, b *strings.Builder, table string) ([]string, error) {
	const query = `SELECT conname, contype::text AS contype, pg_get_constraintdef(oid) AS condef
	FROM pg_constraint WHERE conrelid = quote_ident($1)::regclass AND contype IN ('p', 'u', 'c', 'f')
	ORDER BY conname`
	var constraints []dumpConstraint
	if err := r.db.SelectContext(ctx, &constraints, query, table); err != nil {
		return nil, fmt.Errorf("describe constraints of %s: %w", table, err)
	}

	var foreignKeys []string
	for _, con := range constraints {
		stmt := fmt.Sprintf("ALTER TABLE %q ADD CONSTRAINT %q %s;", table, con.Name, con.Definition)
		if con.Type == "f" {
			foreignKeys = append(foreignKeys, stmt)
			continue
		}
		b.WriteString(stmt + "\n")
	}
	return foreignKeys, nil
}

// writeIndexes re-creates plain indexes; indexes backing constraints are
// excluded because ADD CONSTRAINT already rebuilds them.
func (r *DumpRepository) writeIndexes(ctx context.Context, b *strings.Builder, table string) error {
	const query = `SELECT indexdef FROM pg_indexes
	WHERE schemaname = 'public' AND tablename = $1
	AND indexname NOT IN (SELECT conname FROM pg_constraint WHERE conrelid = quote_ident($1)::regclass)
	ORDER BY indexname`
	indexes := make([]string, 0)
	if err := r.db.SelectContext(ctx, &indexes, query, table); err != nil {
		return fmt.Errorf("describe indexes of %s: %w", table, err)
	}
	for _, def := range indexes {
		b.WriteString(def + ";\n")
	}
	return nil
}

var nextvalPattern = regexp.MustCompile(`nextval\('([^']+)'`)

// sequenceName extracts the bare sequence name from a nextval() column
// default, or "" when the default is not sequence-backed.
func sequenceName(columnDefault string) string {
	m := nextvalPattern.FindStringSubmatch(columnDefault)
	if m == nil {
		return ""
	}
	name := m[1]
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.Trim(name, `"`)
}

func columnType(col dumpColumn) string {
	if col.DataType == "character varying" && col.MaxLength.Valid {
		return fmt.Sprintf("varchar(%d)", col.MaxLength.Int64)
	}
	if col.DataType == "ARRAY" {
		return "text[]"
	}
	return col.DataType
}

func sqlLiteral(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	case time.Time:
		return "'" + val.UTC().Format("2006-01-02 15:04:05.999999") + "'"
	case []byte:
		// Drivers hand back text columns as []byte; keep printable text as a
		// quoted string and fall back to a hex literal for binary payloads.
		if isPrintable(val) {
			return quoteString(string(val))
		}
		return fmt.Sprintf(`'\x%s'`, hex.EncodeToString(val))
	case string:
		return quoteString(val)
	default:
		return quoteString(fmt.Sprintf("%v", val))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func isPrintable(data []byte) bool {
	for _, c := range data {
		if c == 0 {
			return false
		}
	}
	return true
}
