package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO date format the API expects.
const DateLayout = "2006-01-02"

// Values are raw user input keyed by field name. A missing or blank entry means the
// user left the field unset; "0" is an explicit zero.
type Values map[string]string

// Reasons carried by ValidationError.
const (
	ReasonMissing  = "required fields missing"
	ReasonInvalid  = "invalid values"
	ReasonNoFields = "no fields to update"
	ReasonBadID    = "id must be >= 1"
)

// ValidationError is raised before any network call when input is incomplete or
// malformed.
type ValidationError struct {
	Resource string
	Fields   []string
	Reason   string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Resource, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Resource, e.Reason, strings.Join(e.Fields, ", "))
}

type entry struct {
	key   string
	value any
}

// Payload is a JSON object that keeps its keys in schema order.
type Payload struct {
	entries []entry
}

// Keys returns the keys present in the payload.
func (p Payload) Keys() []string {
	keys := make([]string, len(p.entries))
	for i, e := range p.entries {
		keys[i] = e.key
	}
	return keys
}

// Get returns the coerced value stored under key.
func (p Payload) Get(key string) (any, bool) {
	for _, e := range p.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// Len reports the number of keys.
func (p Payload) Len() int {
	return len(p.entries)
}

func (p *Payload) set(key string, value any) {
	p.entries = append(p.entries, entry{key: key, value: value})
}

// MarshalJSON writes keys in insertion order. Floats always carry a fractional part
// so 1000 is sent as 1000.0.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		switch v := e.value.(type) {
		case float64:
			buf.WriteString(formatFloat(v))
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// BuildAdd coerces values for a create request. Every required field must be filled.
// Blank optional fields are left out.
func BuildAdd(res Resource, values Values) (Payload, error) {
	var missing []string
	for _, f := range res.Fields {
		if f.Required && isBlank(values[f.Name]) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return Payload{}, &ValidationError{Resource: res.Name, Fields: missing, Reason: ReasonMissing}
	}
	return build(res, values)
}

// BuildUpdate coerces values for a partial update. Only non-blank fields are kept
// and at least one is required.
func BuildUpdate(res Resource, id int, values Values) (Payload, error) {
	if id < 1 {
		return Payload{}, &ValidationError{Resource: res.Name, Fields: []string{"id"}, Reason: ReasonBadID}
	}
	payload, err := build(res, values)
	if err != nil {
		return Payload{}, err
	}
	if payload.Len() == 0 {
		return Payload{}, &ValidationError{Resource: res.Name, Reason: ReasonNoFields}
	}
	return payload, nil
}

func build(res Resource, values Values) (Payload, error) {
	var payload Payload
	var invalid []string
	for _, f := range res.Fields {
		raw := values[f.Name]
		if isBlank(raw) {
			continue
		}
		v, err := coerce(f, raw)
		if err != nil {
			invalid = append(invalid, f.Name)
			continue
		}
		payload.set(f.Name, v)
	}
	if len(invalid) > 0 {
		return Payload{}, &ValidationError{Resource: res.Name, Fields: invalid, Reason: ReasonInvalid}
	}
	return payload, nil
}

func coerce(f Field, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch f.Kind {
	case Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(f, float64(n)); err != nil {
			return nil, err
		}
		return n, nil
	case Float:
		n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%s: not a finite number", f.Name)
		}
		if err := checkBounds(f, n); err != nil {
			return nil, err
		}
		return n, nil
	case Date:
		d, err := time.Parse(DateLayout, raw)
		if err != nil {
			return nil, err
		}
		return d.Format(DateLayout), nil
	default:
		return raw, nil
	}
}

func checkBounds(f Field, n float64) error {
	if f.Min != nil && n < *f.Min {
		return fmt.Errorf("%s below %v", f.Name, *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return fmt.Errorf("%s above %v", f.Name, *f.Max)
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
