package util

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// JSONBuilder assembles a flat JSON object field by field, the same
// low-ceremony way the teacher's wire types render themselves for humans
// (logs, debug endpoints) without pulling in a templating or struct-tag
// based encoder for what is, in the end, a handful of fields.
type JSONBuilder struct {
	Encode strings.Builder
}

func (j *JSONBuilder) putGeneral(fieldName, value string) {
	if j.Encode.Len() > 0 {
		fmt.Fprintf(&j.Encode, `,"%v":%v`, fieldName, value)
	} else {
		fmt.Fprintf(&j.Encode, `"%v":%v`, fieldName, value)
	}
}

func (j *JSONBuilder) PutTime(fieldName string, t time.Time) {
	j.putGeneral(fieldName, t.Format(time.RFC3339))
}

func (j *JSONBuilder) PutUint64(fieldName string, value uint64) {
	j.putGeneral(fieldName, fmt.Sprintf("%v", value))
}

func (j *JSONBuilder) PutInt64(fieldName string, value int64) {
	j.putGeneral(fieldName, fmt.Sprintf("%v", value))
}

func (j *JSONBuilder) PutHex(fieldName string, value []byte) {
	if len(value) == 0 {
		return
	}
	j.putGeneral(fieldName, fmt.Sprintf(`"0x%v"`, hex.EncodeToString(value)))
}

func (j *JSONBuilder) PutBase64(fieldName string, value []byte) {
	if len(value) == 0 {
		return
	}
	j.putGeneral(fieldName, fmt.Sprintf(`"%v"`, base64.StdEncoding.EncodeToString(value)))
}

func (j *JSONBuilder) PutString(fieldName, value string) {
	j.putGeneral(fieldName, fmt.Sprintf(`"%v"`, value))
}

func (j *JSONBuilder) PutJSON(fieldName, value string) {
	j.putGeneral(fieldName, value)
}

func (j *JSONBuilder) ToString() string {
	return fmt.Sprintf(`{%v}`, j.Encode.String())
}

func PrintJson(v any) {
	text, _ := json.Marshal(v)
	fmt.Println(string(text))
}

// CanonicalJSON marshals v to JSON in a stable, byte-for-byte reproducible
// form: object keys sorted lexicographically, no insignificant whitespace.
// encoding/json already sorts the keys of any map[string]T on Marshal, so
// canonicalization here means running ordinary Marshal and then asserting
// that guarantee by round-tripping through a key-sorted generic value; this
// catches any nested map whose concrete type isn't map[string]T (e.g. a
// map[string]any embedded inside an any-typed field) and is cheap enough to
// run on every digest.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := encodeCanonical(&out, generic); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func encodeCanonical(out *bytes.Buffer, v any) error {
	switch value := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				out.WriteByte(',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return err
			}
			out.Write(keyBytes)
			out.WriteByte(':')
			if err := encodeCanonical(out, value[k]); err != nil {
				return err
			}
		}
		out.WriteByte('}')
		return nil
	case []any:
		out.WriteByte('[')
		for i, item := range value {
			if i > 0 {
				out.WriteByte(',')
			}
			if err := encodeCanonical(out, item); err != nil {
				return err
			}
		}
		out.WriteByte(']')
		return nil
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		out.Write(raw)
		return nil
	}
}
