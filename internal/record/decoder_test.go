package record

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func ptr(f float64) *float64 { return &f }

func mustJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("bad fixture %q: %v", s, err)
	}
	return m
}

// normalize re-encodes through Marshal so comparisons ignore json.Number vs float64.
func normalize(t *testing.T, r Record) map[string]any {
	t.Helper()
	b, err := Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return mustJSON(t, string(b))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		geo  Geo
		want string
	}{
		{
			name: "plain object gains geo",
			in:   `{"price":100,"symbol":"X"}`,
			want: `{"price":100,"symbol":"X","geo":{"lat":null,"lon":null}}`,
		},
		{
			name: "nested data is flattened",
			in:   `{"price":100,"data":{"symbol":"X"}}`,
			want: `{"price":100,"symbol":"X","geo":{"lat":null,"lon":null}}`,
		},
		{
			name: "data wins on collision",
			in:   `{"price":100,"data":{"price":101}}`,
			want: `{"price":101,"geo":{"lat":null,"lon":null}}`,
		},
		{
			name: "flatten once only",
			in:   `{"data":{"data":{"deep":true},"a":1}}`,
			want: `{"a":1,"data":{"deep":true},"geo":{"lat":null,"lon":null}}`,
		},
		{
			name: "non-object data left alone",
			in:   `{"data":[1,2],"price":3}`,
			want: `{"data":[1,2],"price":3,"geo":{"lat":null,"lon":null}}`,
		},
		{
			name: "null data left alone",
			in:   `{"data":null}`,
			want: `{"data":null,"geo":{"lat":null,"lon":null}}`,
		},
		{
			name: "other nested objects untouched",
			in:   `{"meta":{"src":"x"},"price":1}`,
			want: `{"meta":{"src":"x"},"price":1,"geo":{"lat":null,"lon":null}}`,
		},
		{
			name: "known geo overrides incoming geo",
			in:   `{"price":1,"geo":"spoofed"}`,
			geo:  Geo{Lat: ptr(52.5), Lon: ptr(13.4)},
			want: `{"price":1,"geo":{"lat":52.5,"lon":13.4}}`,
		},
		{
			name: "partial geo",
			in:   `{}`,
			geo:  Geo{Lat: ptr(1.5)},
			want: `{"geo":{"lat":1.5,"lon":null}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewDecoder(tt.geo).Decode([]byte(tt.in))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got, want := normalize(t, rec), mustJSON(t, tt.want); !reflect.DeepEqual(got, want) {
				t.Fatalf("got %v\nwant %v", got, want)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	inputs := []string{
		``,
		`{"price":`,
		`not json`,
		`[1,2,3]`,
		`42`,
		`"str"`,
		`null`,
		`true`,
		`{"a":1} trailing`,
		`{"a":1}{"b":2}`,
		"\xff\xfe",
	}
	dec := NewDecoder(Geo{})
	for _, in := range inputs {
		rec, err := dec.Decode([]byte(in))
		if err == nil {
			t.Fatalf("Decode(%q) = %v, want error", in, rec)
		}
		if !errors.Is(err, ErrDecode) {
			t.Fatalf("Decode(%q) error %v does not match ErrDecode", in, err)
		}
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("Decode(%q) error %T is not *DecodeError", in, err)
		}
	}
}

func TestDecodePreservesNumberText(t *testing.T) {
	rec, err := NewDecoder(Geo{}).Decode([]byte(`{"price":12345678901234567890,"qty":1.50}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b, err := Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"geo":{"lat":null,"lon":null},"price":12345678901234567890,"qty":1.50}`
	if string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}
}

func TestDecodedGeoIsIndependent(t *testing.T) {
	dec := NewDecoder(Geo{Lat: ptr(1), Lon: ptr(2)})
	a, _ := dec.Decode([]byte(`{}`))
	a[GeoKey].(map[string]any)["lat"] = 99.0
	b, _ := dec.Decode([]byte(`{}`))
	if b[GeoKey].(map[string]any)["lat"] != 1.0 {
		t.Fatalf("mutating one record's geo leaked into the decoder")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Record{"a": map[string]any{"b": []any{1.0, map[string]any{"c": "d"}}}}
	cp := orig.Clone()
	cp["a"].(map[string]any)["b"].([]any)[1].(map[string]any)["c"] = "changed"
	if orig["a"].(map[string]any)["b"].([]any)[1].(map[string]any)["c"] != "d" {
		t.Fatalf("clone shares nested state")
	}
	if Record(nil).Clone() != nil {
		t.Fatalf("nil clone should be nil")
	}
}

func TestMarshalCanonical(t *testing.T) {
	r := Record{"z": 1, "a": map[string]any{"y": "<b>", "b": nil}}
	b, err := Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `{"a":{"b":null,"y":"<b>"},"z":1}`; string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}
}

func TestGeoKnown(t *testing.T) {
	if (Geo{}).Known() {
		t.Fatalf("zero geo is unknown")
	}
	if !(Geo{Lat: ptr(0), Lon: ptr(0)}).Known() {
		t.Fatalf("0,0 is a known location")
	}
}
