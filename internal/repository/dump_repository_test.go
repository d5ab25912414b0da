package repository

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDumpRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDumpRendersSchemaAndRows(t *testing.T) {
	db, mock, cleanup := newDumpRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT table_name FROM information_schema.tables")).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("teachers"))

	columnRows := sqlmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "is_nullable", "column_default"}).
		AddRow("id", "uuid", nil, "NO", nil).
		AddRow("full_name", "character varying", 255, "NO", nil).
		AddRow("active", "boolean", nil, "NO", "true").
		AddRow("seq_no", "integer", nil, "NO", "nextval('teachers_seq_no_seq'::regclass)")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT column_name, data_type")).
		WithArgs("teachers").
		WillReturnRows(columnRows)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT last_value, is_called FROM "teachers_seq_no_seq"`)).
		WillReturnRows(sqlmock.NewRows([]string{"last_value", "is_called"}).AddRow(42, true))

	constraintRows := sqlmock.NewRows([]string{"conname", "contype", "condef"}).
		AddRow("teachers_pkey", "p", "PRIMARY KEY (id)").
		AddRow("teachers_school_id_fkey", "f", "FOREIGN KEY (school_id) REFERENCES schools(id)")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT conname, contype::text AS contype")).
		WithArgs("teachers").
		WillReturnRows(constraintRows)

	dataRows := sqlmock.NewRows([]string{"id", "full_name", "active", "seq_no"}).
		AddRow("t-1", "Juan O'Brien", true, int64(7))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "full_name", "active", "seq_no" FROM "teachers"`)).
		WillReturnRows(dataRows)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT indexdef FROM pg_indexes")).
		WithArgs("teachers").
		WillReturnRows(sqlmock.NewRows([]string{"indexdef"}).
			AddRow("CREATE INDEX teachers_full_name_idx ON public.teachers USING btree (full_name)"))

	repo := NewDumpRepository(db)
	dump, err := repo.Dump(context.Background())
	require.NoError(t, err)
	script := string(dump)

	assert.Contains(t, script, "SET session_replication_role = replica;")
	assert.Contains(t, script, "SET session_replication_role = DEFAULT;")
	assert.Contains(t, script, `DROP TABLE IF EXISTS "teachers" CASCADE;`)
	assert.Contains(t, script, `"full_name" varchar(255) NOT NULL`)
	assert.Contains(t, script, `"active" boolean NOT NULL DEFAULT true`)
	// Single quotes inside values are doubled.
	assert.Contains(t, script, `'Juan O''Brien'`)

	// The sequence behind the serial column is rebuilt ahead of the table
	// that references it and restored to its live position after the rows.
	assert.Contains(t, script, `CREATE SEQUENCE "teachers_seq_no_seq";`)
	assert.Contains(t, script, `ALTER SEQUENCE "teachers_seq_no_seq" OWNED BY "teachers"."seq_no";`)
	assert.Contains(t, script, `"seq_no" integer NOT NULL DEFAULT nextval('teachers_seq_no_seq'::regclass)`)
	assert.Contains(t, script, `SELECT setval('"teachers_seq_no_seq"', 42, true);`)
	assert.Less(t, strings.Index(script, `CREATE SEQUENCE "teachers_seq_no_seq";`),
		strings.Index(script, `CREATE TABLE "teachers"`))
	assert.Less(t, strings.Index(script, `INSERT INTO "teachers"`),
		strings.Index(script, `SELECT setval`))

	// Primary key and plain indexes come back with the table; foreign keys
	// land at the end of the dump, after every table exists.
	assert.Contains(t, script, `ALTER TABLE "teachers" ADD CONSTRAINT "teachers_pkey" PRIMARY KEY (id);`)
	assert.Contains(t, script, "CREATE INDEX teachers_full_name_idx ON public.teachers USING btree (full_name);")
	fk := `ALTER TABLE "teachers" ADD CONSTRAINT "teachers_school_id_fkey" FOREIGN KEY (school_id) REFERENCES schools(id);`
	assert.Contains(t, script, fk)
	assert.Less(t, strings.Index(script, `INSERT INTO "teachers"`), strings.Index(script, fk))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceName(t *testing.T) {
	assert.Equal(t, "documents_id_seq", sequenceName("nextval('documents_id_seq'::regclass)"))
	assert.Equal(t, "documents_id_seq", sequenceName(`nextval('public."documents_id_seq"'::regclass)`))
	assert.Empty(t, sequenceName("gen_random_uuid()"))
	assert.Empty(t, sequenceName(""))
}

func TestDumpSkipsTableWithoutColumns(t *testing.T) {
	db, mock, cleanup := newDumpRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT table_name FROM information_schema.tables")).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("ghost"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT column_name, data_type")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "is_nullable", "column_default"}))

	repo := NewDumpRepository(db)
	dump, err := repo.Dump(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, string(dump), "ghost")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRunsInOneTransaction(t *testing.T) {
	db, mock, cleanup := newDumpRepoMock(t)
	defer cleanup()

	script := []byte("DROP TABLE IF EXISTS x; CREATE TABLE x (id text);")

	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS x").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	repo := NewDumpRepository(db)
	require.NoError(t, repo.Apply(context.Background(), script, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyMergeWrapsWithReplicaRole(t *testing.T) {
	db, mock, cleanup := newDumpRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("SET session_replication_role = replica").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	repo := NewDumpRepository(db)
	require.NoError(t, repo.Apply(context.Background(), []byte("INSERT INTO x VALUES ('1');"), true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newDumpRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	repo := NewDumpRepository(db)
	err := repo.Apply(context.Background(), []byte("DROP TABLE y;"), false)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLiteral(t *testing.T) {
	assert.Equal(t, "NULL", sqlLiteral(nil))
	assert.Equal(t, "TRUE", sqlLiteral(true))
	assert.Equal(t, "FALSE", sqlLiteral(false))
	assert.Equal(t, "42", sqlLiteral(int64(42)))
	assert.Equal(t, "3.5", sqlLiteral(3.5))
	assert.Equal(t, "'it''s'", sqlLiteral("it's"))
	assert.Equal(t, "'plain text'", sqlLiteral([]byte("plain text")))
	assert.Equal(t, `'\x0001'`, sqlLiteral([]byte{0x00, 0x01}))

	ts := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "'2024-06-01 12:30:00'", sqlLiteral(ts))
}
