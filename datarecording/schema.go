package datarecording

import (
	"fmt"
	"reflect"

	"github.com/fatih/structs"
)

type column struct {
	name    string
	colType string
}

// schema describes the table that stores entries of one struct type.
type schema struct {
	structType reflect.Type
	columns    []column
}

// mustMakeSchema derives the columns of a table from the exported fields of
// the sample entry. colType maps a field kind to the column type of the
// database and reports whether the kind can be stored.
func mustMakeSchema(
	tableName string,
	sampleEntry any,
	colType func(reflect.Kind) (string, bool),
) schema {
	structType := reflect.TypeOf(sampleEntry)
	if structType == nil || structType.Kind() != reflect.Struct {
		panic(fmt.Sprintf("entry of table %s is not a struct", tableName))
	}

	s := schema{structType: structType}

	for _, name := range structs.Names(sampleEntry) {
		field, _ := structType.FieldByName(name)

		t, ok := colType(field.Type.Kind())
		if !ok {
			panic(fmt.Sprintf("field %s of table %s has unsupported type %s",
				name, tableName, field.Type))
		}

		s.columns = append(s.columns, column{name: name, colType: t})
	}

	return s
}

func (s schema) columnDefs(quote string) []string {
	defs := make([]string, 0, len(s.columns))
	for _, c := range s.columns {
		defs = append(defs, quote+c.name+quote+" "+c.colType)
	}

	return defs
}

func (s schema) placeholders() []string {
	p := make([]string, len(s.columns))
	for i := range p {
		p[i] = "?"
	}

	return p
}

func mustMatchSchema(tableName string, s reflect.Type, entry any) {
	if reflect.TypeOf(entry) != s {
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}
}
