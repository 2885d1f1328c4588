package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the type of a column, decided once when a document is parsed.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindNumber
	KindBool
)

var kindNames = map[Kind]string{
	KindNull:    "null",
	KindString:  "string",
	KindInteger: "integer",
	KindNumber:  "number",
	KindBool:    "bool",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNull, fmt.Errorf("unknown column kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Value is a single typed cell.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
}

// NullValue returns an empty cell.
func NullValue() Value { return Value{} }

// StringValue returns a text cell.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// IntValue returns an integer cell.
func IntValue(i int64) Value { return Value{kind: KindInteger, i: i} }

// NumberValue returns a floating point cell.
func NumberValue(f float64) Value { return Value{kind: KindNumber, f: f} }

// BoolValue returns a boolean cell.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the kind of the cell, KindNull for empty cells.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is empty.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the value as an integer. Numbers are only accepted when they are integral.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInteger:
		return v.i, true
	case KindNumber:
		if v.f == math.Trunc(v.f) {
			return int64(v.f), true
		}
	}
	return 0, false
}

// Float returns the value as a float for integers and numbers.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindNumber:
		return v.f, true
	}
	return 0, false
}

// Bool returns the value for boolean cells.
func (v Value) Bool() (bool, bool) {
	if v.kind == KindBool {
		return v.b, true
	}
	return false, false
}

// String returns the canonical text form of the value. Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindNumber:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	return v == o
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInteger:
		return json.Marshal(v.i)
	case KindNumber:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// sqlArg returns the value as a database/sql argument.
func (v Value) sqlArg() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInteger:
		return v.i
	case KindNumber:
		return v.f
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// parseCell converts raw document text into a value of the given kind.
// Blank cells are null regardless of kind.
func parseCell(raw string, kind Kind) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NullValue()
	}
	switch kind {
	case KindInteger:
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return IntValue(i)
		}
	case KindNumber:
		if f, ok := parseFloat(trimmed); ok {
			return NumberValue(f)
		}
	case KindBool:
		if b, ok := parseBool(trimmed); ok {
			return BoolValue(b)
		}
	}
	return StringValue(raw)
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// fromSQL converts a scanned database value into a value of the column kind.
func fromSQL(v any, kind Kind) Value {
	if v == nil {
		return NullValue()
	}
	switch x := v.(type) {
	case []byte:
		return parseCell(string(x), kind)
	case string:
		if kind == KindString {
			return StringValue(x)
		}
		return parseCell(x, kind)
	case bool:
		if kind == KindBool {
			return BoolValue(x)
		}
		return parseCell(strconv.FormatBool(x), kind)
	case int64:
		switch kind {
		case KindBool:
			return BoolValue(x != 0)
		case KindNumber:
			return NumberValue(float64(x))
		case KindString:
			return StringValue(strconv.FormatInt(x, 10))
		default:
			return IntValue(x)
		}
	case float64:
		switch kind {
		case KindInteger:
			if x == math.Trunc(x) {
				return IntValue(int64(x))
			}
			return NumberValue(x)
		case KindString:
			return StringValue(strconv.FormatFloat(x, 'f', -1, 64))
		case KindBool:
			return BoolValue(x != 0)
		default:
			return NumberValue(x)
		}
	default:
		return parseCell(fmt.Sprint(x), kind)
	}
}

// fromJSON decodes a snapshot cell of the given kind.
// Cells that do not match the column kind are kept as text.
func fromJSON(raw json.RawMessage, kind Kind) (Value, error) {
	if string(raw) == "null" {
		return NullValue(), nil
	}
	switch kind {
	case KindInteger:
		var i int64
		if err := json.Unmarshal(raw, &i); err == nil {
			return IntValue(i), nil
		}
	case KindNumber:
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return NumberValue(f), nil
		}
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return BoolValue(b), nil
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Value{}, fmt.Errorf("cannot decode %s cell %s: %w", kind, raw, err)
	}
	return StringValue(s), nil
}
