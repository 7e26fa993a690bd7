package columnar

import (
	"bytes"
	"io"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/vecops/pkg/errors"
)

// avroPrimitives maps the Avro numeric primitives to Arrow types.
var avroPrimitives = map[string]arrow.DataType{
	"int":    arrow.PrimitiveTypes.Int32,
	"long":   arrow.PrimitiveTypes.Int64,
	"float":  arrow.PrimitiveTypes.Float32,
	"double": arrow.PrimitiveTypes.Float64,
}

type avroRecordSchema struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Fields []struct {
		Name string      `json:"name"`
		Type interface{} `json:"type"`
	} `json:"fields"`
}

// avroColumn describes how one record field maps to an Arrow column.
type avroColumn struct {
	name         string
	nullable     bool   // field is a ["null", T] union
	branch       string // union branch name of T
	list         bool
	elem         string // Avro primitive of the value or list items
	elemNullable bool   // list items are ["null", elem] unions
}

func (c avroColumn) arrowType() arrow.DataType {
	elem := avroPrimitives[c.elem]
	if c.list {
		return arrow.ListOf(elem)
	}
	return elem
}

// unwrapNullable returns the non-null branch of a ["null", T] union.
func unwrapNullable(t interface{}) (interface{}, bool) {
	union, ok := t.([]interface{})
	if !ok || len(union) != 2 {
		return t, false
	}
	for i, branch := range union {
		if branch == "null" {
			return union[1-i], true
		}
	}
	return t, false
}

func classifyAvroField(name string, t interface{}) (avroColumn, error) {
	col := avroColumn{name: name}
	t, col.nullable = unwrapNullable(t)

	switch v := t.(type) {
	case string:
		if _, ok := avroPrimitives[v]; ok {
			col.elem, col.branch = v, v
			return col, nil
		}
	case map[string]interface{}:
		if v["type"] == "array" {
			items, nullable := unwrapNullable(v["items"])
			if prim, ok := items.(string); ok {
				if _, ok := avroPrimitives[prim]; ok {
					col.list, col.branch = true, "array"
					col.elem, col.elemNullable = prim, nullable
					return col, nil
				}
			}
		}
	}
	return col, errors.Newf(errors.ErrorTypeType, "unsupported Avro type for field %q: only numeric values and arrays of numbers are supported", name).
		WithDetail("column", name)
}

func readAvro(r io.Reader, mem memory.Allocator) (arrow.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read Avro data")
	}

	ocf, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Avro reader")
	}

	var rs avroRecordSchema
	if err := json.Unmarshal([]byte(ocf.Codec().Schema()), &rs); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to parse Avro schema")
	}
	if rs.Type != "record" {
		return nil, errors.Newf(errors.ErrorTypeType, "Avro schema must be a record, got %q", rs.Type)
	}

	cols := make([]avroColumn, len(rs.Fields))
	fields := make([]arrow.Field, len(rs.Fields))
	for i, f := range rs.Fields {
		col, err := classifyAvroField(f.Name, f.Type)
		if err != nil {
			return nil, err
		}
		cols[i] = col
		fields[i] = arrow.Field{Name: f.Name, Type: col.arrowType(), Nullable: true}
	}

	b := array.NewRecordBuilder(mem, arrow.NewSchema(fields, nil))
	defer b.Release()

	row := 0
	for ocf.Scan() {
		datum, err := ocf.Read()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read Avro datum").
				WithDetail("row", row)
		}
		rec, ok := datum.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeFile, "Avro datum at row %d is not a record", row)
		}
		for i, col := range cols {
			if err := appendAvroValue(b.Field(i), col, rec[col.name]); err != nil {
				return nil, err.WithDetail("row", row).WithDetail("column", col.name)
			}
		}
		row++
	}
	if err := ocf.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to scan Avro blocks")
	}
	return b.NewRecord(), nil
}

func appendAvroValue(b array.Builder, col avroColumn, v interface{}) *errors.Error {
	if col.nullable {
		if v == nil {
			b.AppendNull()
			return nil
		}
		union, ok := v.(map[string]interface{})
		if !ok {
			return errors.Newf(errors.ErrorTypeFile, "expected Avro union value, got %T", v)
		}
		v = union[col.branch]
	}

	if !col.list {
		return appendNumber(b, v)
	}

	items, ok := v.([]interface{})
	if !ok {
		return errors.Newf(errors.ErrorTypeFile, "expected Avro array, got %T", v)
	}
	lb := b.(*array.ListBuilder)
	lb.Append(true)
	vb := lb.ValueBuilder()
	for _, item := range items {
		if col.elemNullable {
			if item == nil {
				vb.AppendNull()
				continue
			}
			union, ok := item.(map[string]interface{})
			if !ok {
				return errors.Newf(errors.ErrorTypeFile, "expected Avro union item, got %T", item)
			}
			item = union[col.elem]
		}
		if err := appendNumber(vb, item); err != nil {
			return err
		}
	}
	return nil
}

func appendNumber(b array.Builder, v interface{}) *errors.Error {
	var ok bool
	switch b := b.(type) {
	case *array.Int32Builder:
		var n int32
		if n, ok = v.(int32); ok {
			b.Append(n)
		}
	case *array.Int64Builder:
		var n int64
		if n, ok = v.(int64); ok {
			b.Append(n)
		}
	case *array.Float32Builder:
		var n float32
		if n, ok = v.(float32); ok {
			b.Append(n)
		}
	case *array.Float64Builder:
		var n float64
		if n, ok = v.(float64); ok {
			b.Append(n)
		}
	}
	if !ok {
		return errors.Newf(errors.ErrorTypeFile, "unexpected Avro value %v (%T)", v, v)
	}
	return nil
}

// avroPrimitiveFor returns the narrowest Avro primitive holding every value
// of an Arrow numeric type.
func avroPrimitiveFor(dt arrow.DataType) (string, bool) {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.UINT8, arrow.UINT16:
		return "int", true
	case arrow.INT64, arrow.UINT32, arrow.UINT64:
		return "long", true
	case arrow.FLOAT32:
		return "float", true
	case arrow.FLOAT64:
		return "double", true
	}
	return "", false
}

func avroSchemaFor(schema *arrow.Schema) ([]avroColumn, string, error) {
	cols := make([]avroColumn, schema.NumFields())
	fields := make([]map[string]interface{}, schema.NumFields())
	for i, f := range schema.Fields() {
		col := avroColumn{name: f.Name, nullable: true}
		dt := f.Type
		switch lt := dt.(type) {
		case *arrow.ListType:
			dt = lt.Elem()
		case *arrow.LargeListType:
			dt = lt.Elem()
		case *arrow.FixedSizeListType:
			dt = lt.Elem()
		}
		if dt != f.Type {
			col.list, col.branch, col.elemNullable = true, "array", true
		}
		prim, ok := avroPrimitiveFor(dt)
		if !ok {
			return nil, "", errors.Newf(errors.ErrorTypeType, "cannot write column %q of type %s to Avro", f.Name, f.Type).
				WithDetail("column", f.Name)
		}
		col.elem = prim
		if !col.list {
			col.branch = prim
		}
		cols[i] = col

		var t interface{} = prim
		if col.list {
			t = map[string]interface{}{"type": "array", "items": []interface{}{"null", prim}}
		}
		fields[i] = map[string]interface{}{"name": f.Name, "type": []interface{}{"null", t}}
	}

	raw, err := json.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   "vecops",
		"fields": fields,
	})
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode Avro schema")
	}
	return cols, string(raw), nil
}

func writeAvro(w io.Writer, rec arrow.Record) error {
	cols, schema, err := avroSchemaFor(rec.Schema())
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeType, "failed to create Avro codec")
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: goavro.CompressionSnappyLabel,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Avro writer")
	}

	rows := make([]interface{}, rec.NumRows())
	for i := range rows {
		datum := make(map[string]interface{}, len(cols))
		for j, col := range cols {
			v, err := avroDatum(rec.Column(j), col, i)
			if err != nil {
				return err.WithDetail("row", i).WithDetail("column", col.name)
			}
			datum[col.name] = v
		}
		rows[i] = datum
	}
	if err := ocf.Append(rows); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Avro records")
	}
	return nil
}

func avroDatum(arr arrow.Array, col avroColumn, i int) (interface{}, *errors.Error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	if !col.list {
		v, err := avroNumber(arr, i)
		if err != nil {
			return nil, err
		}
		return goavro.Union(col.branch, v), nil
	}

	list := arr.(array.ListLike)
	values := list.ListValues()
	start, end := list.ValueOffsets(i)
	items := make([]interface{}, 0, end-start)
	for j := int(start); j < int(end); j++ {
		if values.IsNull(j) {
			items = append(items, nil)
			continue
		}
		v, err := avroNumber(values, j)
		if err != nil {
			return nil, err
		}
		items = append(items, goavro.Union(col.elem, v))
	}
	return goavro.Union("array", items), nil
}

func avroNumber(arr arrow.Array, i int) (interface{}, *errors.Error) {
	switch a := arr.(type) {
	case *array.Int8:
		return int32(a.Value(i)), nil
	case *array.Int16:
		return int32(a.Value(i)), nil
	case *array.Int32:
		return a.Value(i), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Uint8:
		return int32(a.Value(i)), nil
	case *array.Uint16:
		return int32(a.Value(i)), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Uint64:
		v := a.Value(i)
		if v > math.MaxInt64 {
			return nil, errors.Newf(errors.ErrorTypeNumericOverflow, "uint64 value %d does not fit an Avro long", v)
		}
		return int64(v), nil
	case *array.Float32:
		return a.Value(i), nil
	case *array.Float64:
		return a.Value(i), nil
	}
	return nil, errors.Newf(errors.ErrorTypeType, "cannot write %s values to Avro", arr.DataType())
}
