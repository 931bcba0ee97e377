package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Flag is a boolean-like setting as the caller supplied it: unset, a bool,
// or a string such as "true" or "False".
type Flag struct {
	raw string
	set bool
}

// FlagOf returns a set flag holding b.
func FlagOf(b bool) Flag {
	return Flag{raw: strconv.FormatBool(b), set: true}
}

// FlagString returns a set flag holding the raw string s.
func FlagString(s string) Flag {
	return Flag{raw: s, set: true}
}

// IsSet reports whether a value was supplied.
func (f Flag) IsSet() bool { return f.set }

// Raw returns the supplied text.
func (f Flag) Raw() string { return f.raw }

// BoolOr returns true only for a case-insensitive "true"; an unset flag
// yields def and anything else yields false.
func (f Flag) BoolOr(def bool) bool {
	if !f.set {
		return def
	}
	return strings.EqualFold(f.raw, "true")
}

// Decode implements envconfig.Decoder.
func (f *Flag) Decode(value string) error {
	*f = FlagString(value)
	return nil
}

// UnmarshalYAML accepts YAML booleans, strings and numbers.
func (f *Flag) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = Flag{}
	case bool:
		*f = FlagOf(t)
	case string:
		*f = FlagString(t)
	default:
		*f = FlagString(fmt.Sprint(t))
	}
	return nil
}

// Number is a numeric setting as the caller supplied it. A value that does
// not parse is kept as not-a-number so the resolver can replace it.
type Number struct {
	value float64
	set   bool
}

// NumberOf returns a set number.
func NumberOf(v float64) Number {
	return Number{value: v, set: true}
}

// NumberString parses s, keeping NaN when it is not numeric.
func NumberString(s string) Number {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		v = math.NaN()
	}
	return Number{value: v, set: true}
}

// IsSet reports whether a value was supplied.
func (n Number) IsSet() bool { return n.set }

// Value returns the number and whether it is usable (set and not NaN).
func (n Number) Value() (float64, bool) {
	if !n.set || math.IsNaN(n.value) {
		return 0, false
	}
	return n.value, true
}

// Decode implements envconfig.Decoder.
func (n *Number) Decode(value string) error {
	*n = NumberString(value)
	return nil
}

// UnmarshalYAML accepts YAML numbers and numeric strings.
func (n *Number) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*n = Number{}
	case int:
		*n = NumberOf(float64(t))
	case int64:
		*n = NumberOf(float64(t))
	case uint64:
		*n = NumberOf(float64(t))
	case float64:
		*n = NumberOf(t)
	case string:
		*n = NumberString(t)
	default:
		*n = NumberString(fmt.Sprint(t))
	}
	return nil
}
