package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fatih/structs"
	"github.com/tebeka/atexit"
)

// ClickHouseScheme is the URL scheme of ClickHouse recording targets.
const ClickHouseScheme = "clickhouse://"

type clickHouseTable struct {
	schema  schema
	entries []any
}

// clickHouseRecorder writes entries into a ClickHouse server in batches using
// the native protocol.
type clickHouseRecorder struct {
	mu sync.Mutex

	conn        clickhouse.Conn
	tables      map[string]*clickHouseTable
	tableOrder  []string
	batchSize   int
	numBuffered int
}

// NewClickHouse connects to the ClickHouse server named by the DSN, for
// example "clickhouse://default:@localhost:9000/pgtrace".
func NewClickHouse(ctx context.Context, dsn string) (DataRecorder, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	err = conn.Ping(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	r := &clickHouseRecorder{
		conn:      conn,
		tables:    make(map[string]*clickHouseTable),
		batchSize: defaultBatchSize,
	}

	atexit.Register(func() { r.Flush() })

	return r, nil
}

func clickHouseColumnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool:
		return "Bool", true
	case reflect.Int, reflect.Int64:
		return "Int64", true
	case reflect.Int8:
		return "Int8", true
	case reflect.Int16:
		return "Int16", true
	case reflect.Int32:
		return "Int32", true
	case reflect.Uint, reflect.Uint64:
		return "UInt64", true
	case reflect.Uint8:
		return "UInt8", true
	case reflect.Uint16:
		return "UInt16", true
	case reflect.Uint32:
		return "UInt32", true
	case reflect.Float32:
		return "Float32", true
	case reflect.Float64:
		return "Float64", true
	case reflect.String:
		return "String", true
	default:
		return "", false
	}
}

func clickHouseCreateSQL(tableName string, s schema) string {
	return "CREATE TABLE IF NOT EXISTS " + tableName + " (\n\t" +
		strings.Join(s.columnDefs("`"), ",\n\t") +
		"\n) ENGINE = MergeTree()\nORDER BY tuple()"
}

func (r *clickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	s := mustMakeSchema(tableName, sampleEntry, clickHouseColumnType)

	err := r.conn.Exec(context.Background(), clickHouseCreateSQL(tableName, s))
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &clickHouseTable{schema: s}
	r.tableOrder = append(r.tableOrder, tableName)
}

func (r *clickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	t, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	mustMatchSchema(tableName, t.schema.structType, entry)

	t.entries = append(t.entries, entry)
	r.numBuffered++
	full := r.numBuffered >= r.batchSize

	r.mu.Unlock()

	if full {
		r.Flush()
	}
}

func (r *clickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, len(r.tableOrder))
	copy(tables, r.tableOrder)

	return tables
}

func (r *clickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.numBuffered == 0 || r.conn == nil {
		return
	}

	ctx := context.Background()
	for _, name := range r.tableOrder {
		err := r.flushTable(ctx, name, r.tables[name])
		if err != nil {
			panic(err)
		}
	}

	r.numBuffered = 0
}

func (r *clickHouseRecorder) flushTable(
	ctx context.Context,
	name string,
	t *clickHouseTable,
) error {
	if len(t.entries) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+name)
	if err != nil {
		return fmt.Errorf("failed to prepare batch for %s: %w", name, err)
	}

	for _, entry := range t.entries {
		err = batch.Append(structs.Values(entry)...)
		if err != nil {
			return fmt.Errorf("failed to append to %s: %w", name, err)
		}
	}

	err = batch.Send()
	if err != nil {
		return fmt.Errorf("failed to send batch to %s: %w", name, err)
	}

	t.entries = nil

	return nil
}

func (r *clickHouseRecorder) Close() error {
	r.Flush()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}

	err := r.conn.Close()
	r.conn = nil

	return err
}
