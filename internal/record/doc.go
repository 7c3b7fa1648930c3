// Package record turns raw bus payloads into normalized price records.
//
// Decoding parses one JSON object, flattens a nested "data" object into the
// top level once, and attaches the startup geolocation under "geo". It has no
// side effects and never panics on malformed input.
//
// Example:
//
//	dec := record.NewDecoder(record.Geo{})
//	rec, err := dec.Decode([]byte(`{"price":100,"data":{"symbol":"X"}}`))
//	// rec: {"geo":{"lat":null,"lon":null},"price":100,"symbol":"X"}
package record
