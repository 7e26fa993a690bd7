package columnar

import (
	"bufio"
	"bytes"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/goccy/go-json"

	"github.com/ajitpratap0/vecops/pkg/errors"
)

const maxJSONLine = 64 << 20

// jsonColumn accumulates the raw values of one key across all lines.
type jsonColumn struct {
	name   string
	list   bool
	scalar bool
	float  bool
	rows   []interface{}
}

func (c *jsonColumn) observe(row int, v interface{}) error {
	switch v := v.(type) {
	case nil:
	case json.Number:
		c.scalar = true
		c.float = c.float || !isIntegral(v)
	case []interface{}:
		c.list = true
		for k, item := range v {
			switch n := item.(type) {
			case nil:
			case json.Number:
				c.float = c.float || !isIntegral(n)
			default:
				return errors.Newf(errors.ErrorTypeType, "non-numeric list element %v at row %d position %d of %q", item, row, k, c.name)
			}
		}
	default:
		return errors.Newf(errors.ErrorTypeType, "unsupported JSON value %v at row %d of %q: expected a number, an array of numbers or null", v, row, c.name)
	}
	if c.list && c.scalar {
		return errors.Newf(errors.ErrorTypeType, "column %q mixes arrays and scalars", c.name)
	}
	return nil
}

func isIntegral(n json.Number) bool {
	if strings.ContainsAny(string(n), ".eE") {
		return false
	}
	_, err := n.Int64()
	return err == nil
}

func (c *jsonColumn) elemType(override arrow.DataType) arrow.DataType {
	switch {
	case override != nil:
		return override
	case c.float:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.PrimitiveTypes.Int64
	}
}

func readJSONL(r io.Reader, opts ReadOptions) (arrow.Record, error) {
	if opts.ElemType != nil && !isNumericType(opts.ElemType) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "element type %s is not numeric", opts.ElemType)
	}

	columns := map[string]*jsonColumn{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJSONLine)

	rows := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var obj map[string]interface{}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to decode JSON line").
				WithDetail("row", rows)
		}
		for name, v := range obj {
			col, ok := columns[name]
			if !ok {
				col = &jsonColumn{name: name, rows: make([]interface{}, rows)}
				columns[name] = col
			}
			if err := col.observe(rows, v); err != nil {
				return nil, err
			}
			col.rows = append(col.rows, v)
		}
		rows++
		// keys absent from this line are null
		for _, col := range columns {
			if len(col.rows) < rows {
				col.rows = append(col.rows, nil)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read JSON lines")
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		col := columns[name]
		dt := col.elemType(opts.ElemType)
		// all-null columns are read as lists
		if !col.scalar {
			dt = arrow.ListOf(dt)
		}
		fields[i] = arrow.Field{Name: name, Type: dt, Nullable: true}
	}

	b := array.NewRecordBuilder(opts.allocator(), arrow.NewSchema(fields, nil))
	defer b.Release()
	for i, name := range names {
		if err := buildJSONColumn(b.Field(i), columns[name]); err != nil {
			return nil, err
		}
	}
	return b.NewRecord(), nil
}

func buildJSONColumn(b array.Builder, col *jsonColumn) error {
	for row, v := range col.rows {
		switch v := v.(type) {
		case nil:
			b.AppendNull()
		case json.Number:
			if err := appendJSONNumber(b, v); err != nil {
				return err.WithDetail("row", row).WithDetail("column", col.name)
			}
		case []interface{}:
			lb := b.(*array.ListBuilder)
			lb.Append(true)
			vb := lb.ValueBuilder()
			for _, item := range v {
				if item == nil {
					vb.AppendNull()
					continue
				}
				if err := appendJSONNumber(vb, item.(json.Number)); err != nil {
					return err.WithDetail("row", row).WithDetail("column", col.name)
				}
			}
		}
	}
	return nil
}

func appendJSONNumber(b array.Builder, n json.Number) *errors.Error {
	s := string(n)
	var err error
	switch b := b.(type) {
	case *array.Int8Builder:
		var v int64
		if v, err = strconv.ParseInt(s, 10, 8); err == nil {
			b.Append(int8(v))
		}
	case *array.Int16Builder:
		var v int64
		if v, err = strconv.ParseInt(s, 10, 16); err == nil {
			b.Append(int16(v))
		}
	case *array.Int32Builder:
		var v int64
		if v, err = strconv.ParseInt(s, 10, 32); err == nil {
			b.Append(int32(v))
		}
	case *array.Int64Builder:
		var v int64
		if v, err = strconv.ParseInt(s, 10, 64); err == nil {
			b.Append(v)
		}
	case *array.Uint8Builder:
		var v uint64
		if v, err = strconv.ParseUint(s, 10, 8); err == nil {
			b.Append(uint8(v))
		}
	case *array.Uint16Builder:
		var v uint64
		if v, err = strconv.ParseUint(s, 10, 16); err == nil {
			b.Append(uint16(v))
		}
	case *array.Uint32Builder:
		var v uint64
		if v, err = strconv.ParseUint(s, 10, 32); err == nil {
			b.Append(uint32(v))
		}
	case *array.Uint64Builder:
		var v uint64
		if v, err = strconv.ParseUint(s, 10, 64); err == nil {
			b.Append(v)
		}
	case *array.Float32Builder:
		var v float64
		if v, err = strconv.ParseFloat(s, 32); err == nil {
			b.Append(float32(v))
		}
	case *array.Float64Builder:
		var v float64
		if v, err = strconv.ParseFloat(s, 64); err == nil {
			b.Append(v)
		}
	default:
		return errors.Newf(errors.ErrorTypeType, "cannot read JSON numbers into %s", b.Type())
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeType, "number "+s+" does not fit "+b.Type().String())
	}
	return nil
}

func isNumericType(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}

// writeJSONL writes one object per row, keys in schema order.
func writeJSONL(w io.Writer, rec arrow.Record) error {
	keys := make([][]byte, rec.NumCols())
	for i, f := range rec.Schema().Fields() {
		k, err := json.Marshal(f.Name)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode column name")
		}
		keys[i] = k
	}

	bw := bufio.NewWriter(w)
	for row := 0; row < int(rec.NumRows()); row++ {
		bw.WriteByte('{')
		for i, col := range rec.Columns() {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.Write(keys[i])
			bw.WriteByte(':')
			v, err := json.Marshal(col.GetOneForMarshal(row))
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to encode JSON value").
					WithDetail("row", row).
					WithDetail("column", rec.ColumnName(i))
			}
			bw.Write(v)
		}
		bw.WriteString("}\n")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write JSON lines")
	}
	return nil
}

// columnJSON is one line of WriteJSON output.
type columnJSON struct {
	Name string          `json:"name"`
	Type string          `json:"type"`
	Rows json.RawMessage `json:"rows"`
}

// WriteJSON writes one JSON object per column of rec:
//
//	{"name":"a","type":"list<item: int64, nullable>","rows":[[1,3,5]]}
func WriteJSON(w io.Writer, rec arrow.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, col := range rec.Columns() {
		rows, err := col.MarshalJSON()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to encode column").
				WithDetail("column", rec.ColumnName(i))
		}
		if err := enc.Encode(columnJSON{
			Name: rec.ColumnName(i),
			Type: col.DataType().String(),
			Rows: rows,
		}); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write column").
				WithDetail("column", rec.ColumnName(i))
		}
	}
	return nil
}
