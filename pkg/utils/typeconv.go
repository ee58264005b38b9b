package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field value types understood by ConvertValue.
const (
	TypeString = "string"
	TypeTrim   = "trim"
	TypeUpper  = "upper"
	TypeLower  = "lower"
	TypeInt    = "int"
	TypeDate   = "date"
)

// KnownType reports whether t is a value type ConvertValue handles.
func KnownType(t string) bool {
	switch t {
	case "", TypeString, TypeTrim, TypeUpper, TypeLower, TypeInt, TypeDate:
		return true
	}
	return false
}

// ConvertValue normalises a raw field value according to its declared type.
// Empty values are passed through untouched.
func ConvertValue(val, typ, format string) (string, error) {
	if val == "" {
		return val, nil
	}
	switch typ {
	case "", TypeString:
		return val, nil
	case TypeTrim:
		return strings.TrimSpace(val), nil
	case TypeUpper:
		return strings.ToUpper(strings.TrimSpace(val)), nil
	case TypeLower:
		return strings.ToLower(strings.TrimSpace(val)), nil
	case TypeInt:
		n, err := ConvertToInt(val)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	case TypeDate:
		t, err := ConvertDateTime(val)
		if err != nil {
			return "", err
		}
		if format == "" {
			format = "2006-01-02"
		}
		return t.Format(format), nil
	default:
		return "", fmt.Errorf("unknown value type %q", typ)
	}
}

// ConvertDateTime parses the date layouts commonly found in exports.
func ConvertDateTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"01/02/2006",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse datetime: %s", v)
}

func ConvertToInt(val string) (int, error) {
	v := strings.TrimSpace(val)
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	// Exports sometimes render integers as "12.0".
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("cannot convert %q to int", val)
	}
	return int(f), nil
}
