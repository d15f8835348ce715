package scanner

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

type Queryer interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

// type-safe scanner for pgx.Rows.
//
// # example
//
//	type Channel struct {
//		Id   int64
//		Name string
//	}
//
//	func GetChannels(ctx context.Context, conn scanner.Queryer) ([]Channel, error) {
//		return scanner.New[Channel]().QueryAll(ctx, conn, `select "id", "name" from "channels"`)
//	}
//
// # mapping rule
//
// columns are mapped into
//
//  1. the field with tag `sql:"column_name"`
//  2. or, the field named exactly as the column
//  3. or, the field whose name is the CamelCase version of the column name
//
// Scalar types (string, integers, floats, bool, time.Time, []byte) scan a
// single-column result directly.
type Scanner[T any] interface {
	// scan all rows in pgx.Rows and convert to []T
	ScanAll(pgx.Rows) ([]T, error)

	// scan all rows in the response of a query.
	QueryAll(context.Context, Queryer, string, ...interface{}) ([]T, error)
}

func New[T any]() Scanner[T] {
	tval := reflect.TypeOf(*new(T))

	if tval.AssignableTo(reflect.TypeOf(time.Time{})) || tval.AssignableTo(reflect.TypeOf([]byte{})) {
		return &scalarScanner[T]{}
	}
	switch tval.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return &scalarScanner[T]{}
	}

	byTag := map[string]reflect.StructField{}
	byName := map[string]reflect.StructField{}
	for i := 0; i < tval.NumField(); i++ {
		f := tval.Field(i)
		byName[f.Name] = f
		if tag, ok := f.Tag.Lookup("sql"); ok {
			byTag[tag] = f
		}
	}
	return &structScanner[T]{byTag: byTag, byName: byName}
}

type structScanner[T any] struct {
	byTag  map[string]reflect.StructField
	byName map[string]reflect.StructField
}

func (s *structScanner[T]) field(column string) (reflect.StructField, error) {
	if f, ok := s.byTag[column]; ok {
		return f, nil
	}
	if f, ok := s.byName[column]; ok {
		return f, nil
	}
	if f, ok := s.byName[camel(column)]; ok {
		return f, nil
	}
	return reflect.StructField{}, fmt.Errorf(
		`field for column "%s" is not found in type "%T"`, column, *new(T),
	)
}

func (s *structScanner[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	fields := make([]reflect.StructField, 0, len(rows.FieldDescriptions()))
	for _, fd := range rows.FieldDescriptions() {
		f, err := s.field(string(fd.Name))
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}

	ret := []T{}
	for rows.Next() {
		elem := new(T)
		re := reflect.ValueOf(elem).Elem()

		dest := make([]interface{}, len(fields))
		for nth, f := range fields {
			dest[nth] = re.FieldByName(f.Name).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		ret = append(ret, *elem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *structScanner[T]) QueryAll(ctx context.Context, conn Queryer, q string, params ...interface{}) ([]T, error) {
	rows, err := conn.Query(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.ScanAll(rows)
}

type scalarScanner[T any] struct{}

func (s *scalarScanner[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	columns := rows.FieldDescriptions()
	if len(columns) != 1 {
		return nil, fmt.Errorf(`too many columns for %T`, *new(T))
	}

	ret := []T{}
	for rows.Next() {
		elem := new(T)
		field := reflect.ValueOf(elem).Elem()

		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		v := reflect.ValueOf(values[0])
		if !v.CanConvert(field.Type()) {
			return nil, fmt.Errorf(
				`column "%s" (type: %s in sql, %T in golang) can not be converted to "%T"`,
				columns[0].Name, pgOIDName(columns[0].DataTypeOID), values[0], *elem,
			)
		}
		field.Set(v.Convert(field.Type()))
		ret = append(ret, *elem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *scalarScanner[T]) QueryAll(ctx context.Context, conn Queryer, q string, params ...interface{}) ([]T, error) {
	rows, err := conn.Query(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.ScanAll(rows)
}

func camel(s string) string {
	b := &strings.Builder{}
	for _, part := range strings.Split(s, "_") {
		if len(part) == 0 {
			b.WriteString("_")
			continue
		}
		b.WriteString(strings.ToUpper(part[0:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

func pgOIDName(oid uint32) string {
	switch oid {
	case pgtype.BoolOID:
		return "bool"
	case pgtype.Int2OID:
		return "int2"
	case pgtype.Int4OID:
		return "int4"
	case pgtype.Int8OID:
		return "int8"
	case pgtype.Float4OID:
		return "float4"
	case pgtype.Float8OID:
		return "float8"
	case pgtype.TextOID:
		return "text"
	case pgtype.VarcharOID:
		return "varchar"
	case pgtype.ByteaOID:
		return "bytea"
	case pgtype.TimestampOID:
		return "timestamp"
	case pgtype.TimestamptzOID:
		return "timestamptz"
	default:
		return fmt.Sprintf("oid:%d", oid)
	}
}
