package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrDecode matches every error returned by Decoder.Decode.
var ErrDecode = errors.New("record: decode")

// DecodeError reports a payload that is not a single JSON object.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("record: decode: %s: %v", e.Reason, e.Err)
	}
	return "record: decode: " + e.Reason
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// Decoder normalizes raw payloads. It is safe for concurrent use; the geo
// value is fixed at construction.
type Decoder struct {
	geo map[string]any
}

// NewDecoder captures geo for every record it produces.
func NewDecoder(geo Geo) *Decoder {
	return &Decoder{geo: geo.value()}
}

// Decode parses raw as a JSON object, flattens a nested "data" object into
// the top level (data's values win on collisions) and sets "geo".
func (d *Decoder) Decode(raw []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &DecodeError{Reason: "malformed json", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Reason: "trailing data after json value"}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("top-level value is %s, want object", kind(v))}
	}

	if nested, ok := obj[DataKey].(map[string]any); ok {
		delete(obj, DataKey)
		for k, val := range nested {
			obj[k] = val
		}
	}

	obj[GeoKey] = cloneValue(d.geo)
	return Record(obj), nil
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
