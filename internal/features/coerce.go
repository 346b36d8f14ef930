package features

import (
	"math"
	"strconv"
	"strings"
)

// valueKind classifies a raw cell after coercion
type valueKind int

const (
	kindNumber valueKind = iota
	kindMissing
	kindInvalid
)

// placeholders seen in source extracts that stand for "no value"
var placeholders = map[string]struct{}{
	"":     {},
	".":    {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

// coerce converts a raw record value into a float.
// Numbers and bools pass through, numeric strings are parsed, placeholder
// strings and NaN are missing, anything else is invalid.
func coerce(raw interface{}) (float64, valueKind) {
	switch v := raw.(type) {
	case nil:
		return 0, kindMissing
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), kindNumber
	case int32:
		return float64(v), kindNumber
	case int64:
		return float64(v), kindNumber
	case uint8:
		return float64(v), kindNumber
	case uint32:
		return float64(v), kindNumber
	case uint64:
		return float64(v), kindNumber
	case bool:
		if v {
			return 1, kindNumber
		}
		return 0, kindNumber
	case string:
		s := strings.TrimSpace(v)
		if _, ok := placeholders[strings.ToLower(s)]; ok {
			return 0, kindMissing
		}
		switch strings.ToLower(s) {
		case "true", "yes", "y":
			return 1, kindNumber
		case "false", "no", "n":
			return 0, kindNumber
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, kindInvalid
		}
		return finite(f)
	}
	return 0, kindInvalid
}

func finite(f float64) (float64, valueKind) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, kindMissing
	}
	return f, kindNumber
}
