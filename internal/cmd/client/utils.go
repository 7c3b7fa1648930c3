package client

import (
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/rzbill/pricerelay/pkg/id"
)

var errStop = errors.New("stop")

// decodedEvent returns a map with id, the event time when the id carries one,
// and one of payload_json or payload_text.
func decodedEvent(evID string, payload []byte) map[string]any {
	out := map[string]any{"id": evID}
	if parsed, err := id.Parse(evID); err == nil {
		out["time"] = parsed.Time().UTC().Format(time.RFC3339Nano)
	}
	if len(payload) > 0 && payload[0] == '{' {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
	}
	return out
}
