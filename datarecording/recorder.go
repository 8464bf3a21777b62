// Package datarecording stores what happens to address spaces into a
// database so that a run can be inspected after it finishes.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of the sample
	// entry. The sample entry must be a struct with only scalar fields.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry to be written into an existing table.
	InsertData(tableName string, entry any)

	// ListTables returns the names of the tables created, in creation order.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

const defaultBatchSize = 10000

// ErrDatabaseExists is returned when the recording file is already present.
var ErrDatabaseExists = errors.New("database already exists")

// New creates a DataRecorder that writes into an SQLite file. If path is
// empty, a unique file name is generated. The buffered entries are flushed
// when the program exits through atexit.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "pgtrace_" + xid.New().String() + ".sqlite3"
	}

	_, err := os.Stat(path)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseExists, path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", path)

	r := newSQLiteRecorder(db)
	atexit.Register(func() { r.Flush() })

	return r, nil
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newSQLiteRecorder(db)
}

type table struct {
	name       string
	structType reflect.Type
	insertSQL  string
	entries    []any
}

type sqliteRecorder struct {
	db *sql.DB

	tables      map[string]*table
	tableOrder  []string
	batchSize   int
	numBuffered int
	closed      bool
}

func newSQLiteRecorder(db *sql.DB) *sqliteRecorder {
	return &sqliteRecorder{
		db:        db,
		tables:    make(map[string]*table),
		batchSize: defaultBatchSize,
	}
}

func sqliteColumnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) {
	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	s := mustMakeSchema(tableName, sampleEntry, sqliteColumnType)

	r.mustExecute(`CREATE TABLE ` + tableName +
		` (` + "\n\t" + strings.Join(s.columnDefs(`"`), ",\n\t") + "\n" + `);`)

	r.tables[tableName] = &table{
		name:       tableName,
		structType: s.structType,
		insertSQL: "INSERT INTO " + tableName +
			" VALUES (" + strings.Join(s.placeholders(), ", ") + ")",
	}
	r.tableOrder = append(r.tableOrder, tableName)
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) {
	t, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	mustMatchSchema(tableName, t.structType, entry)

	t.entries = append(t.entries, entry)

	r.numBuffered++
	if r.numBuffered >= r.batchSize {
		r.Flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	tables := make([]string, len(r.tableOrder))
	copy(tables, r.tableOrder)

	return tables
}

func (r *sqliteRecorder) Flush() {
	if r.numBuffered == 0 || r.closed {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, name := range r.tableOrder {
		err = r.flushTable(tx, r.tables[name])
		if err != nil {
			_ = tx.Rollback()
			panic(err)
		}
	}

	err = tx.Commit()
	if err != nil {
		panic(err)
	}

	r.numBuffered = 0
}

func (r *sqliteRecorder) flushTable(tx *sql.Tx, t *table) error {
	if len(t.entries) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(t.insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range t.entries {
		_, err = stmt.Exec(structs.Values(entry)...)
		if err != nil {
			return fmt.Errorf("inserting into %s: %w", t.name, err)
		}
	}

	t.entries = nil

	return nil
}

func (r *sqliteRecorder) Close() error {
	if r.closed {
		return nil
	}

	r.Flush()
	r.closed = true

	return r.db.Close()
}

func (r *sqliteRecorder) mustExecute(query string) sql.Result {
	res, err := r.db.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
