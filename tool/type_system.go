package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parameter type literals.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeAny     = "any"
)

var validTypes = map[string]struct{}{
	TypeString:  {},
	TypeInteger: {},
	TypeNumber:  {},
	TypeBoolean: {},
	TypeArray:   {},
	TypeObject:  {},
	TypeAny:     {},
}

func isValidType(typeName string) bool {
	_, ok := validTypes[typeName]
	return ok
}

// Coerce converts value to the declared type. Only unambiguous conversions
// are performed: numeric strings and integral floats to integer, numeric
// strings and integers to number, "true"/"false" to boolean, JSON strings to
// object or array. Anything else reports ok=false.
//
// Integers are normalized to int64 and numbers to float64.
func Coerce(typeName string, value any) (any, bool) {
	switch typeName {
	case TypeAny:
		return value, true
	case TypeString:
		s, ok := value.(string)
		return s, ok
	case TypeInteger:
		return coerceInteger(value)
	case TypeNumber:
		return coerceNumber(value)
	case TypeBoolean:
		return coerceBoolean(value)
	case TypeObject:
		return coerceObject(value)
	case TypeArray:
		return coerceArray(value)
	default:
		return nil, false
	}
}

func coerceInteger(value any) (any, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.Trunc(v) != v || math.IsInf(v, 0) || v >= 1<<63 || v < -(1<<63) {
			return nil, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return nil, false
	}
}

func coerceNumber(value any) (any, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

func coerceBoolean(value any) (any, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return nil, false
}

func coerceObject(value any) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err != nil || obj == nil {
			return nil, false
		}
		return obj, true
	default:
		return nil, false
	}
}

func coerceArray(value any) (any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case string:
		var arr []any
		if err := json.Unmarshal([]byte(v), &arr); err != nil || arr == nil {
			return nil, false
		}
		return arr, true
	default:
		return nil, false
	}
}

// ParseScalar interprets a command-line value: booleans, integers, floats
// and JSON objects/arrays are decoded, anything else stays a raw string.
func ParseScalar(raw string) any {
	clean := strings.TrimSpace(raw)
	switch strings.ToLower(clean) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(clean, 64); err == nil {
		return f
	}
	if strings.HasPrefix(clean, "{") || strings.HasPrefix(clean, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(clean), &decoded); err == nil {
			return decoded
		}
	}
	return raw
}

func describeValueType(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case int, int32, int64:
		return TypeInteger
	case float32, float64, json.Number:
		return TypeNumber
	case map[string]any:
		return TypeObject
	case []any:
		return TypeArray
	default:
		return fmt.Sprintf("%T", value)
	}
}
