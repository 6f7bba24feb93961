package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

// Value is a property value tagged with its runtime kind. Structured values
// carry either named Fields or ordered Items.
type Value struct {
	Kind   types.ValueKind
	Number float64
	Text   string
	Bool   bool
	Fields map[string]Value
	Items  []Value
}

// Number returns a numeric Value
func Number(n float64) Value {
	return Value{Kind: types.ValueKindNumber, Number: n}
}

// Text returns a text Value
func Text(s string) Value {
	return Value{Kind: types.ValueKindText, Text: s}
}

// Bool returns a boolean Value
func Bool(b bool) Value {
	return Value{Kind: types.ValueKindBoolean, Bool: b}
}

// Structured returns a structured Value holding named fields
func Structured(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{Kind: types.ValueKindStructured, Fields: fields}
}

// List returns a structured Value holding ordered items
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: types.ValueKindStructured, Items: items}
}

// NewValue converts a loosely typed value (as produced by JSON, TOML or a
// language model) into a tagged Value.
func NewValue(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x.Clone(), nil
	case *Value:
		if x == nil {
			return Value{}, goerr.Wrap(ErrTypeMismatch, "nil value")
		}
		return x.Clone(), nil
	case float64:
		return finiteNumber(x)
	case float32:
		return finiteNumber(float64(x))
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, goerr.Wrap(ErrTypeMismatch, "invalid number", goerr.V(ValueKey, x.String()))
		}
		return finiteNumber(f)
	case string:
		return Text(x), nil
	case bool:
		return Bool(x), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			fv, err := NewValue(item)
			if err != nil {
				return Value{}, goerr.Wrap(err, "invalid structured field", goerr.V(PropertyKey, k))
			}
			fields[k] = fv
		}
		return Structured(fields), nil
	case map[string]Value:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			fields[k] = item.Clone()
		}
		return Structured(fields), nil
	case []any:
		items := make([]Value, 0, len(x))
		for i, item := range x {
			iv, err := NewValue(item)
			if err != nil {
				return Value{}, goerr.Wrap(err, "invalid list item", goerr.V("index", i))
			}
			items = append(items, iv)
		}
		return List(items...), nil
	case []string:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			items = append(items, Text(item))
		}
		return List(items...), nil
	case []float64:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			iv, err := finiteNumber(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, iv)
		}
		return List(items...), nil
	case nil:
		return Value{}, goerr.Wrap(ErrTypeMismatch, "value is null")
	default:
		return Value{}, goerr.Wrap(ErrTypeMismatch, "unsupported value type", goerr.V("type", fmt.Sprintf("%T", v)))
	}
}

func finiteNumber(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, goerr.Wrap(ErrTypeMismatch, "number is not finite", goerr.V(ValueKey, f))
	}
	return Number(f), nil
}

// IsZero reports whether the value carries no kind at all
func (v Value) IsZero() bool {
	return v.Kind == ""
}

// IsList reports whether the value is a structured list
func (v Value) IsList() bool {
	return v.Kind == types.ValueKindStructured && v.Fields == nil
}

// AsNumber returns the numeric content of a number value
func (v Value) AsNumber() (float64, bool) {
	if v.Kind != types.ValueKindNumber {
		return 0, false
	}
	return v.Number, true
}

// AsText returns the textual content of a text value
func (v Value) AsText() (string, bool) {
	if v.Kind != types.ValueKindText {
		return "", false
	}
	return v.Text, true
}

// Any converts the value back to plain Go types (float64, string, bool,
// map[string]any, []any).
func (v Value) Any() any {
	switch v.Kind {
	case types.ValueKindNumber:
		return v.Number
	case types.ValueKindText:
		return v.Text
	case types.ValueKindBoolean:
		return v.Bool
	case types.ValueKindStructured:
		if v.Fields == nil {
			items := make([]any, len(v.Items))
			for i, item := range v.Items {
				items[i] = item.Any()
			}
			return items
		}
		fields := make(map[string]any, len(v.Fields))
		for k, f := range v.Fields {
			fields[k] = f.Any()
		}
		return fields
	default:
		return nil
	}
}

// Clone returns a deep copy of the value
func (v Value) Clone() Value {
	out := v
	if v.Fields != nil {
		out.Fields = make(map[string]Value, len(v.Fields))
		for k, f := range v.Fields {
			out.Fields[k] = f.Clone()
		}
	}
	if v.Items != nil {
		out.Items = make([]Value, len(v.Items))
		for i, item := range v.Items {
			out.Items[i] = item.Clone()
		}
	}
	return out
}

// Equal reports deep equality of two values, including their kinds
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case types.ValueKindNumber:
		return v.Number == o.Number
	case types.ValueKindText:
		return v.Text == o.Text
	case types.ValueKindBoolean:
		return v.Bool == o.Bool
	case types.ValueKindStructured:
		if (v.Fields == nil) != (o.Fields == nil) || len(v.Fields) != len(o.Fields) || len(v.Items) != len(o.Items) {
			return false
		}
		for k, f := range v.Fields {
			of, ok := o.Fields[k]
			if !ok || !f.Equal(of) {
				return false
			}
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the value for prompts and searchable text
func (v Value) String() string {
	switch v.Kind {
	case types.ValueKindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case types.ValueKindText:
		return v.Text
	case types.ValueKindBoolean:
		return strconv.FormatBool(v.Bool)
	case types.ValueKindStructured:
		var sb strings.Builder
		if v.Fields == nil {
			sb.WriteString("[")
			for i, item := range v.Items {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(item.String())
			}
			sb.WriteString("]")
			return sb.String()
		}
		keys := make([]string, 0, len(v.Fields))
		for k := range v.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(v.Fields[k].String())
		}
		sb.WriteString("}")
		return sb.String()
	default:
		return ""
	}
}

type valueJSON struct {
	Kind   types.ValueKind  `json:"kind"`
	Number *float64         `json:"number,omitempty"`
	Text   *string          `json:"text,omitempty"`
	Bool   *bool            `json:"bool,omitempty"`
	Fields map[string]Value `json:"fields,omitempty"`
	Items  []Value          `json:"items,omitempty"`
	List   bool             `json:"list,omitempty"`
}

// MarshalJSON encodes the value together with its kind tag so a round trip
// reproduces the same kind.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsZero() {
		return []byte("null"), nil
	}
	out := valueJSON{Kind: v.Kind}
	switch v.Kind {
	case types.ValueKindNumber:
		out.Number = &v.Number
	case types.ValueKindText:
		out.Text = &v.Text
	case types.ValueKindBoolean:
		out.Bool = &v.Bool
	case types.ValueKindStructured:
		if v.Fields == nil {
			out.List = true
			out.Items = v.Items
		} else {
			out.Fields = v.Fields
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a tagged value
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return goerr.Wrap(err, "failed to decode value")
	}
	if !in.Kind.IsValid() {
		return goerr.Wrap(ErrTypeMismatch, "unknown value kind", goerr.V("kind", in.Kind))
	}

	out := Value{Kind: in.Kind}
	switch in.Kind {
	case types.ValueKindNumber:
		if in.Number != nil {
			out.Number = *in.Number
		}
	case types.ValueKindText:
		if in.Text != nil {
			out.Text = *in.Text
		}
	case types.ValueKindBoolean:
		if in.Bool != nil {
			out.Bool = *in.Bool
		}
	case types.ValueKindStructured:
		if in.List {
			out.Items = in.Items
			if out.Items == nil {
				out.Items = []Value{}
			}
		} else {
			out.Fields = in.Fields
			if out.Fields == nil {
				out.Fields = map[string]Value{}
			}
		}
	}
	*v = out
	return nil
}
