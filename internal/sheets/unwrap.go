package sheets

import (
	"bytes"
	"encoding/json"
	"fmt"

	"fennixdash/pkg/contracts/domain"
)

// Unwrap decodes a backend body into rows. It accepts the {"rows":[...]}
// envelope and a bare array. Numbers keep their textual form as json.Number
// so large amounts are not rounded on the way in. Elements that are not JSON
// objects are dropped.
func Unwrap(body []byte) ([]domain.Row, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnexpectedShape)
	}

	switch trimmed[0] {
	case '[':
		return decodeRows(trimmed)
	case '{':
		var envelope map[string]json.RawMessage
		if err := decode(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		raw, ok := envelope["rows"]
		if !ok {
			return nil, fmt.Errorf("%w: object without rows%s", ErrUnexpectedShape, describeError(envelope))
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			return nil, fmt.Errorf("%w: rows is not an array", ErrUnexpectedShape)
		}
		return decodeRows(raw)
	default:
		return nil, fmt.Errorf("%w: body is not an object or array", ErrUnexpectedShape)
	}
}

func decodeRows(raw []byte) ([]domain.Row, error) {
	var items []any
	if err := decode(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	rows := make([]domain.Row, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			rows = append(rows, domain.Row(obj))
		}
	}
	return rows, nil
}

func decode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// describeError surfaces the message Apps Script puts in {"error": "..."}.
func describeError(envelope map[string]json.RawMessage) string {
	raw, ok := envelope["error"]
	if !ok {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ""
	}
	return fmt.Sprintf(" (error: %s)", msg)
}
