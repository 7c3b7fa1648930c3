package record

import (
	"bytes"
	"encoding/json"
)

// Record is one normalized price update: field name to JSON-compatible value.
// Numbers are held as json.Number so they serialize exactly as received.
type Record map[string]any

// Keys with special meaning during decoding.
const (
	DataKey = "data"
	GeoKey  = "geo"
)

// Geo is the static enrichment value attached to every record. Nil fields
// serialize as JSON null.
type Geo struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// Known reports whether both coordinates are present.
func (g Geo) Known() bool { return g.Lat != nil && g.Lon != nil }

func (g Geo) value() map[string]any {
	m := map[string]any{"lat": nil, "lon": nil}
	if g.Lat != nil {
		m["lat"] = *g.Lat
	}
	if g.Lon != nil {
		m["lon"] = *g.Lon
	}
	return m
}

// Clone returns a deep copy so the store and the hub never share mutable
// state with the relay.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return cloneValue(map[string]any(r)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Record:
		return Record(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Marshal returns the canonical JSON text of r: keys sorted at every level,
// no HTML escaping, no trailing newline.
func Marshal(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(r)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
