package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name   string
		val    string
		typ    string
		format string
		want   string
	}{
		{"passthrough", " a ", "", "", " a "},
		{"trim", "  a b ", TypeTrim, "", "a b"},
		{"upper", " abc", TypeUpper, "", "ABC"},
		{"lower", "ABC ", TypeLower, "", "abc"},
		{"int", " 042", TypeInt, "", "42"},
		{"int from float", "12.0", TypeInt, "", "12"},
		{"date default layout", "2013-11-18 10:15:00", TypeDate, "", "2013-11-18"},
		{"date custom layout", "11/18/2013", TypeDate, "20060102", "20131118"},
		{"empty stays empty", "", TypeInt, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertValue(tt.val, tt.typ, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertValueErrors(t *testing.T) {
	_, err := ConvertValue("12.5", TypeInt, "")
	assert.Error(t, err)

	_, err = ConvertValue("yesterday", TypeDate, "")
	assert.Error(t, err)

	_, err = ConvertValue("x", "blob", "")
	assert.Error(t, err)
}

func TestKnownType(t *testing.T) {
	assert.True(t, KnownType(""))
	assert.True(t, KnownType(TypeDate))
	assert.False(t, KnownType("blob"))
}
