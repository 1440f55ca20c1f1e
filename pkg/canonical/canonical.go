// Package canonical serializes values into a deterministic JSON form for
// hashing. Object keys are emitted in sorted order at every depth, so the
// same logical content always produces the same bytes regardless of map
// iteration order. The output format is frozen: changing it invalidates
// every previously stored hash.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal returns the canonical JSON encoding of v.
func Marshal(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := writeCanonical(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, value interface{}) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return writeScalar(buf, v)
	case json.Number:
		buf.WriteString(v.String())
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return writeScalar(buf, v)
	case map[string]interface{}:
		return writeObject(buf, v)
	case []interface{}:
		return writeArray(buf, v)
	default:
		// Round-trip through encoding/json so structs and named types
		// reduce to the shapes handled above.
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("canonical: marshal %T: %w", v, err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var decoded interface{}
		if err := dec.Decode(&decoded); err != nil {
			return fmt.Errorf("canonical: decode %T: %w", v, err)
		}
		return writeCanonical(buf, decoded)
	}
	return nil
}

func writeScalar(buf *bytes.Buffer, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("canonical: marshal scalar: %w", err)
	}
	buf.Write(raw)
	return nil
}

func writeObject(buf *bytes.Buffer, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeScalar(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeArray(buf *bytes.Buffer, arr []interface{}) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}
