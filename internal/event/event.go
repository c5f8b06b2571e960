package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"lumi/internal/weight"
)

// Event is one reconstructed or simulated collision record, keyed by variable name.
type Event map[string]any

// DatasetID returns the dataset identifier stored in field.
func (e Event) DatasetID(field string) (weight.DatasetID, bool) {
	v, found := e[field]
	if !found {
		return 0, false
	}
	id, ok := v.(int64)
	if !ok {
		return 0, false
	}
	return weight.DatasetID(id), true
}

// Variable types understood by Schema.
const (
	TypeInt    = "int"
	TypeDouble = "double"
	TypeBool   = "bool"
	TypeString = "string"
)

// Schema declares the variables of an event and their types.
type Schema map[string]string

// Validate checks that every variable has a supported type.
func (s Schema) Validate() error {
	for name, typ := range s {
		switch typ {
		case TypeInt, TypeDouble, TypeBool, TypeString:
		default:
			return fmt.Errorf("variable %s: unsupported type '%s'", name, typ)
		}
	}
	return nil
}

// Coerce converts decoded JSON values into the declared types. Fields missing
// from the schema are dropped.
func (s Schema) Coerce(raw map[string]any) (Event, error) {
	e := make(Event, len(s))
	for name, value := range raw {
		typ, declared := s[name]
		if !declared {
			continue
		}
		v, err := coerce(typ, value)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		e[name] = v
	}
	return e, nil
}

func coerce(typ string, value any) (any, error) {
	switch typ {
	case TypeInt:
		switch v := value.(type) {
		case json.Number:
			return v.Int64()
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		}
	case TypeDouble:
		switch v := value.(type) {
		case json.Number:
			return v.Float64()
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		}
	case TypeBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	case TypeString:
		if v, ok := value.(string); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("cannot use %v (%T) as %s", value, value, typ)
}

// DecodeError is returned by Reader.Next for a line that is not a valid event.
// The reader can continue past it.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Reader reads JSON-lines encoded events, one object per line.
type Reader struct {
	scanner *bufio.Scanner
	schema  Schema
	line    int
}

// NewReader creates a Reader over r that coerces every event with schema.
func NewReader(r io.Reader, schema Schema) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Reader{scanner: scanner, schema: schema}
}

// Next returns the next event. io.EOF is returned at the end of input.
// A *DecodeError does not stop the reader; any other error is final.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		decoder := json.NewDecoder(bytes.NewReader(line))
		decoder.UseNumber()
		var raw map[string]any
		if err := decoder.Decode(&raw); err != nil {
			return nil, &DecodeError{Line: r.line, Err: err}
		}

		e, err := r.schema.Coerce(raw)
		if err != nil {
			return nil, &DecodeError{Line: r.line, Err: err}
		}
		return e, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Line returns the number of the line read last.
func (r *Reader) Line() int {
	return r.line
}
