/*
Package jsonx holds JSON helpers for payloads that carry typed fields next to
arbitrary client-supplied members which must be relayed untouched.
*/
package jsonx

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

// Field is a typed member written ahead of any extra members.
type Field struct {
	Key   string
	Value any
}

// Extras decodes data as a JSON object and returns every member whose key is
// not in known. It returns nil when there are none or data is null.
func Extras(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}

	for _, key := range known {
		delete(members, key)
	}
	if len(members) == 0 {
		return nil, nil
	}
	return members, nil
}

// MarshalObject encodes fields in order, followed by the members of extra
// sorted by key. Extra members named like a field are skipped, so fields win.
func MarshalObject(extra map[string]json.RawMessage, fields ...Field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	written := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		if err := writeMember(&buf, f.Key, value); err != nil {
			return nil, err
		}
		written[f.Key] = struct{}{}
	}

	for _, key := range slices.Sorted(maps.Keys(extra)) {
		if _, dup := written[key]; dup {
			continue
		}
		if err := writeMember(&buf, key, extra[key]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value []byte) error {
	name, err := json.Marshal(key)
	if err != nil {
		return err
	}

	if buf.Len() > 1 {
		buf.WriteByte(',')
	}
	buf.Write(name)
	buf.WriteByte(':')
	buf.Write(value)
	return nil
}
