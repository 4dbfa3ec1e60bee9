package mfsstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Key identifies a record. Keys order lexicographically by byte value.
type Key string

// UnmarshalJSON accepts both string and number keys; numbers are rendered in
// their shortest decimal form.
func (k *Key) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = Key(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("key must be a string or number: %w", err)
	}
	*k = Key(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Document is a record value. Field values are JSON-shaped: nil, bool,
// float64, string, []any or map[string]any.
type Document map[string]any

// Field returns the value of a top-level field. A field set to null is
// present with a nil value.
func (d Document) Field(name string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d[name]
	return v, ok
}

// normalizeDocument round-trips a document through JSON so that the
// in-memory form matches what a later read would decode.
func normalizeDocument(doc Document) (Document, []byte, error) {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	out, err := decodeDocument("", data)
	if err != nil {
		return nil, nil, err
	}
	return out, data, nil
}

func decodeDocument(path string, data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed(path, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// normalizeValue converts an arbitrary Go value into its JSON-decoded form so
// it compares equal to stored field values.
func normalizeValue(v any) (any, error) {
	switch v.(type) {
	case nil, bool, float64, string:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// recordPath maps a key to "<dbname>/<escaped key>.json"
func recordPath(dbname string, key Key) string {
	return joinPath(dbname, url.PathEscape(string(key))+RecordExtension)
}

// keyFromName reverses recordPath for a listing entry name
func keyFromName(name string) (Key, bool) {
	if !strings.HasSuffix(name, RecordExtension) {
		return "", false
	}
	raw, err := url.PathUnescape(strings.TrimSuffix(name, RecordExtension))
	if err != nil {
		return "", false
	}
	return Key(raw), true
}
