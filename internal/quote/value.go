package quote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindSequence
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindSequence:
		return "sequence"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a component value as submitted by a supplier or produced by the model.
// Only KindNumber values take part in scoring.
type Value struct {
	kind  Kind
	num   float64
	items []Value
	text  string
}

// Null returns the empty value.
func Null() Value { return Value{} }

// Number wraps a float.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Sequence wraps a list of values, typically a quoted range.
func Sequence(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindSequence, items: cp}
}

// Numbers is a shorthand for a sequence of numeric values.
func Numbers(fs ...float64) Value {
	items := make([]Value, 0, len(fs))
	for _, f := range fs {
		items = append(items, Number(f))
	}
	return Value{kind: KindSequence, items: items}
}

// Text wraps a free-form string.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// ValueOf converts a loosely typed decoded JSON/YAML value into a Value.
// Booleans and objects become Text holding their JSON form; numeric strings stay Text.
func ValueOf(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case float64:
		return numberOrText(val)
	case float32:
		return numberOrText(float64(val))
	case int:
		return Number(float64(val))
	case int32:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case uint:
		return Number(float64(val))
	case uint64:
		return Number(float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Text(val.String())
		}
		return numberOrText(f)
	case string:
		return Text(val)
	case []float64:
		return Numbers(val...)
	case []any:
		items := make([]Value, 0, len(val))
		for _, item := range val {
			items = append(items, ValueOf(item))
		}
		return Value{kind: KindSequence, items: items}
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return Text(fmt.Sprintf("%v", val))
		}
		return Text(string(raw))
	}
}

func numberOrText(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Text(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return Number(f)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric payload and whether the value is numeric.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Items returns a copy of the sequence elements.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp
}

func (v Value) TextValue() string { return v.text }

// Mean averages a sequence of numbers. It fails on non-sequences, empty
// sequences and sequences with any non-numeric element.
func (v Value) Mean() (float64, bool) {
	if v.kind != KindSequence || len(v.items) == 0 {
		return 0, false
	}
	var sum float64
	for _, item := range v.items {
		f, ok := item.Float()
		if !ok {
			return 0, false
		}
		sum += f
	}
	return sum / float64(len(v.items)), true
}

// Interface converts the value back into plain Go data.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindSequence:
		out := make([]any, 0, len(v.items))
		for _, item := range v.items {
			out = append(out, item.Interface())
		}
		return out
	case KindText:
		return v.text
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.text)
	default:
		raw, _ := json.Marshal(v)
		return string(raw)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	*v = ValueOf(normalizeNumbers(raw))
	return nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		for i := range val {
			val[i] = normalizeNumbers(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeNumbers(val[k])
		}
		return val
	default:
		return v
	}
}
