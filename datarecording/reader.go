package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
)

// QueryParams selects a page of rows. Where is a condition with ? placeholders
// filled from Args, such as "PID = ? AND VAddr >= ?". OrderBy is an ordering
// such as "rowid DESC". A zero Limit returns every row, and Offset is only
// honored together with Limit.
type QueryParams struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   int
	Offset  int
}

// DataReader reads back tables written by a DataRecorder.
type DataReader interface {
	// MapTable associates a table with the struct type that its rows are
	// scanned into. A table must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the tables in the database.
	ListTables(ctx context.Context) ([]string, error)

	// Query returns pointers to the rows of the requested page together
	// with the number of rows that match regardless of paging.
	Query(ctx context.Context, tableName string, params QueryParams) (
		rows []any, total int, err error)

	// Close closes the reader.
	Close() error
}

type sqliteReader struct {
	db      *sql.DB
	typeMap map[string]reflect.Type
}

// NewReader opens an SQLite file written by a DataRecorder.
func NewReader(path string) (DataReader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a new DataReader with a given database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		db:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string

		err = rows.Scan(&name)
		if err != nil {
			return nil, err
		}

		tables = append(tables, name)
	}

	return tables, rows.Err()
}

// buildQueries returns the statement that selects the rows of one page and
// the statement that counts all the matching rows.
func buildQueries(tableName string, params QueryParams) (rows, count string) {
	filter := ""
	if params.Where != "" {
		filter = " WHERE " + params.Where
	}

	count = "SELECT COUNT(*) FROM " + tableName + filter
	rows = "SELECT * FROM " + tableName + filter

	if params.OrderBy != "" {
		rows += " ORDER BY " + params.OrderBy
	}

	if params.Limit > 0 {
		rows += " LIMIT " + strconv.Itoa(params.Limit)

		if params.Offset > 0 {
			rows += " OFFSET " + strconv.Itoa(params.Offset)
		}
	}

	return rows, count
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	structType, mapped := r.typeMap[tableName]
	if !mapped {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	rowsSQL, countSQL := buildQueries(tableName, params)

	var total int

	err := r.db.QueryRowContext(ctx, countSQL, params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", tableName, err)
	}

	rows, err := r.db.QueryContext(ctx, rowsSQL, params.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", tableName, err)
	}
	defer rows.Close()

	results, err := scanRows(rows, structType)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func scanRows(rows *sql.Rows, structType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := []any{}
	for rows.Next() {
		ptr := reflect.New(structType)
		targets := make([]any, len(columns))

		for i, col := range columns {
			field := ptr.Elem().FieldByName(col)
			if field.IsValid() && field.CanSet() {
				targets[i] = field.Addr().Interface()
			} else {
				var discard any
				targets[i] = &discard
			}
		}

		err = rows.Scan(targets...)
		if err != nil {
			return nil, err
		}

		results = append(results, ptr.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
