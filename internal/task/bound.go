package task

import (
	"encoding/json"
	"fmt"
)

const (
	// DefaultValueCap is the maximum serialized size, in bytes, stored
	// verbatim for args, kwargs and results.
	DefaultValueCap = 4000

	// ErrorCap is the maximum length of a persisted error message.
	ErrorCap = 2000
)

// BoundValue serializes v and enforces the size cap: values within the
// cap are stored verbatim, oversized values are replaced by a
// truncation marker carrying the approximate serialized length.
func BoundValue(v interface{}, cap int) json.RawMessage {
	if v == nil {
		return nil
	}
	if cap <= 0 {
		cap = DefaultValueCap
	}

	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"unserializable":true}`)
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if len(data) > cap {
		return json.RawMessage(fmt.Sprintf(`{"truncated":true,"approx_len":%d}`, len(data)))
	}
	return data
}

// BoundError caps an error message so a pathological failure cannot
// bloat the record.
func BoundError(msg string) string {
	if len(msg) > ErrorCap {
		return msg[:ErrorCap]
	}
	return msg
}
