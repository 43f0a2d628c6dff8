package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jetsetgo/warehouse-console/internal/records"
)

// Shape tells which JSON form the remote body had.
type Shape int

const (
	ShapeObject Shape = iota
	ShapeArray
)

// ListShape records where a normalized list was found.
type ListShape string

const (
	ListArray  ListShape = "array"
	ListData   ListShape = "data"
	ListResult ListShape = "result"
	ListItems  ListShape = "items"
	ListNone   ListShape = "none"
)

// listFields are the wrapper fields probed, in order, for an object body.
var listFields = []struct {
	name  string
	shape ListShape
}{
	{"data", ListData},
	{"result", ListResult},
	{"items", ListItems},
}

// CodeAuthRequired is the failure code for a missing or expired session.
const CodeAuthRequired = "AUTH_REQUIRED"

// Response is a decoded remote reply: either a bare array or an object.
// The gateway never interprets success; callers check Failed themselves.
type Response struct {
	shape  Shape
	fields map[string]json.RawMessage
	items  []records.Row
}

// List is a normalized record list.
type List struct {
	Shape ListShape
	Rows  []records.Row
}

// Decode parses a remote body.
func Decode(body []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}

	if trimmed[0] == '[' {
		items, err := decodeRows(trimmed)
		if err != nil {
			return nil, fmt.Errorf("decode array body: %w", err)
		}
		return &Response{shape: ShapeArray, items: items}, nil
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("decode object body: %w", err)
	}
	return &Response{shape: ShapeObject, fields: fields}, nil
}

// Shape reports the body form.
func (r *Response) Shape() Shape {
	return r.shape
}

func (r *Response) success() (value, present bool) {
	raw, ok := r.fields["success"]
	if !ok {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}

// Failed reports an explicit success:false.
func (r *Response) Failed() bool {
	v, ok := r.success()
	return ok && !v
}

// Succeeded reports an explicit success:true.
func (r *Response) Succeeded() bool {
	v, ok := r.success()
	return ok && v
}

// Message is the server-provided message, if any.
func (r *Response) Message() string {
	return r.String("message")
}

// Code is the server-provided failure code, if any.
func (r *Response) Code() string {
	return r.String("code")
}

// String returns a top-level field as text.
func (r *Response) String(key string) string {
	raw, ok := r.fields[key]
	if !ok {
		return ""
	}
	var v any
	if err := unmarshalNumber(raw, &v); err != nil {
		return ""
	}
	return records.Row{key: v}.String(key)
}

// Object returns a nested object field; absent or non-object fields yield an empty row.
func (r *Response) Object(key string) records.Row {
	raw, ok := r.fields[key]
	if !ok {
		return records.Row{}
	}
	var row records.Row
	if err := unmarshalNumber(raw, &row); err != nil || row == nil {
		return records.Row{}
	}
	return row
}

// Rows returns a nested array field; anything else yields nil.
func (r *Response) Rows(key string) []records.Row {
	raw, ok := r.fields[key]
	if !ok {
		return nil
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return nil
	}
	return rows
}

// Decode unmarshals a top-level field into v.
func (r *Response) Decode(key string, v any) error {
	raw, ok := r.fields[key]
	if !ok {
		return fmt.Errorf("field %q missing", key)
	}
	return json.Unmarshal(raw, v)
}

// List normalizes every accepted list shape: a bare array, or an object
// wrapping the array under data, result or items.
func (r *Response) List() List {
	if r == nil {
		return List{Shape: ListNone}
	}
	if r.shape == ShapeArray {
		return List{Shape: ListArray, Rows: r.items}
	}
	for _, f := range listFields {
		raw, ok := r.fields[f.name]
		if !ok {
			continue
		}
		rows, err := decodeRows(raw)
		if err != nil {
			continue
		}
		return List{Shape: f.shape, Rows: rows}
	}
	return List{Shape: ListNone}
}

// decodeRows accepts only a JSON array; non-object elements become empty rows.
func decodeRows(raw json.RawMessage) ([]records.Row, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	if elems == nil {
		return nil, errors.New("not an array")
	}
	rows := make([]records.Row, 0, len(elems))
	for _, e := range elems {
		var row records.Row
		if err := unmarshalNumber(e, &row); err != nil || row == nil {
			row = records.Row{}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func unmarshalNumber(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
