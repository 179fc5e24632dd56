package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind discriminates the JSON kind a Value was decoded from.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	}
	return "invalid"
}

// Value is a scalar from the loosely-typed parts of the message (event pair
// values, sensor readings). The wire format mixes kinds freely in the same
// array position, so consumers switch on Kind instead of assuming one.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

func StringValue(s string) Value  { return Value{Kind: ValueString, Str: s} }
func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Num: n} }
func BoolValue(b bool) Value      { return Value{Kind: ValueBool, Bool: b} }
func NullValue() Value            { return Value{Kind: ValueNull} }

// decodeValue inspects the JSON kind of a raw scalar at runtime. Arrays and
// objects are rejected: the format only allows scalars in value position.
func decodeValue(raw json.RawMessage) (Value, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, err
	}
	switch x := v.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(x), nil
	case float64:
		return NumberValue(x), nil
	case bool:
		return BoolValue(x), nil
	}
	return Value{}, fmt.Errorf("expected scalar, got %s", string(raw))
}

// MarshalJSON re-emits the value with its original JSON kind so a decoded
// record can be serialized back without collapsing kinds.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNull:
		return []byte("null"), nil
	case ValueString:
		return json.Marshal(v.Str)
	case ValueNumber:
		return json.Marshal(v.Num)
	case ValueBool:
		return json.Marshal(v.Bool)
	}
	return nil, fmt.Errorf("invalid value kind %d", v.Kind)
}

// UnmarshalJSON allows Value to live inside structs that go through the
// standard decoder, e.g. re-decoding a forwarded record.
func (v *Value) UnmarshalJSON(raw []byte) error {
	dec, err := decodeValue(raw)
	if err != nil {
		return err
	}
	*v = dec
	return nil
}

// Display renders the value for console output.
func (v Value) Display() string {
	switch v.Kind {
	case ValueNull:
		return "null"
	case ValueString:
		return v.Str
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	}
	return "?"
}
