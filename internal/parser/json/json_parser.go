// Package json decodes line-delimited JSON (NDJSON) into Object maps.
//
// It is deliberately strict:
//
//   - Each non-blank line must hold exactly one JSON object:
//     {"song":"a","ts":1541105830796}
//     {"song":"b","ts":1541106106796}
//   - A line that is not valid JSON, holds a non-object value, or carries
//     trailing data is an error. Callers decide whether that aborts the file;
//     the decoder never skips it.
//   - Numbers are kept as json.Number so typed accessors on Object can decide
//     between integer and decimal without float rounding.
package json

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxLineBytes bounds a single NDJSON line.
const maxLineBytes = 4 << 20

// Decoder reads one JSON object per line from an io.Reader.
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

// NewDecoder constructs a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{sc: sc}
}

// Next decodes the next non-blank line and returns it with its 1-based line
// number. io.EOF is returned when the stream is exhausted. On a decode error
// the returned line number is the offending line.
func (d *Decoder) Next() (Object, int, error) {
	for d.sc.Scan() {
		d.line++
		raw := bytes.TrimSpace(d.sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		obj, err := decodeObject(raw)
		if err != nil {
			return nil, d.line, err
		}
		return obj, d.line, nil
	}
	if err := d.sc.Err(); err != nil {
		return nil, d.line + 1, fmt.Errorf("json parser: read line: %w", err)
	}
	return nil, d.line, io.EOF
}

// DecodeAll is a helper for small inputs. It reads every object from r in
// order. The returned int is the line number of the failing line when err is
// non-nil.
func DecodeAll(r io.Reader) ([]Object, int, error) {
	d := NewDecoder(r)
	var out []Object
	for {
		obj, line, err := d.Next()
		if errors.Is(err, io.EOF) {
			return out, 0, nil
		}
		if err != nil {
			return nil, line, err
		}
		out = append(out, obj)
	}
}

func decodeObject(raw []byte) (Object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("json parser: decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("json parser: trailing data after object")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("json parser: line is not a JSON object (got %T)", v)
	}
	return Object(m), nil
}
