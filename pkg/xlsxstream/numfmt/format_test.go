package numfmt

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDates(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		code  string
		want  string
	}{
		{"day month year", 31682, "DD/MM/YYYY", "27/09/1986"},
		{"builtin 14", 31682, "m/d/yy", "9/27/86"},
		{"builtin 15", 31682, "d-mmm-yy", "27-Sep-86"},
		{"builtin 17", 45412, "mmm-yy", "Apr-24"},
		{"iso date", 45412, "yyyy-mm-dd", "2024-04-30"},
		{"iso date time", 43831.5, "yyyy-mm-dd hh:mm:ss", "2020-01-01 12:00:00"},
		{"full month", 32888, "mmmm d, yyyy", "January 15, 1990"},
		{"weekday", 45285, "dddd", "Monday"},
		{"clock", 0.75, "h:mm", "18:00"},
		{"twelve hour", 44927.75, "h:mm AM/PM", "6:00 PM"},
		{"twelve hour morning", 0.25, "h:mm:ss AM/PM", "6:00:00 AM"},
		{"minutes seconds", 0.5 / 24, "mm:ss", "30:00"},
		{"elapsed hours", 1.5, "[h]:mm:ss", "36:00:00"},
		{"tenths of a second", 1.5 / 86400, "mmss.0", "0001.5"},
	}

	f := New(false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Format(tt.value, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatNumbers(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		code  string
		want  string
	}{
		{"integer", 3.7, "0", "4"},
		{"two decimals", 3.14159, "0.00", "3.14"},
		{"negative two decimals", -3.5, "0.00", "-3.50"},
		{"thousands", 1234567.891, "#,##0.00", "1,234,567.89"},
		{"thousands integer", 999, "#,##0", "999"},
		{"percent", 0.256, "0%", "26%"},
		{"percent decimals", 0.5, "0.00%", "50.00%"},
		{"scientific", 12345, "0.00E+00", "1.23E+04"},
		{"scientific small", 0.00012, "0.00E+00", "1.20E-04"},
		{"engineering", 12345, "##0.0E+0", "12.3E+3"},
		{"accounting positive", 1234, "#,##0 ;(#,##0)", "1,234 "},
		{"accounting negative", -1234, "#,##0 ;(#,##0)", "(1,234)"},
		{"red negative", -1234.5, "#,##0.00;[Red](#,##0.00)", "(1,234.50)"},
		{"currency prefix", 1234.5, "$#,##0.00", "$1,234.50"},
		{"optional decimals", 2.5, "0.##", "2.5"},
		{"leading hash", 0.5, "#.00", ".50"},
		{"fraction", 1.25, "# ?/?", "1 1/4"},
		{"fraction two digits", 0.3333, "# ??/??", "  1/3 "},
		{"whole fraction", 2, "# ?/?", "2    "},
		{"zero section", 0, `0;-0;"zero"`, "zero"},
		{"general", 0.1 + 0.2, "General", "0.3"},
		{"general integer", 42, "General", "42"},
	}

	f := New(false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Format(tt.value, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatUnsupported(t *testing.T) {
	f := New(false)

	_, err := f.Format(12, "@")
	assert.ErrorIs(t, err, ErrUnsupported, "text-only format")

	_, err = f.Format(-1, "yyyy-mm-dd")
	assert.ErrorIs(t, err, ErrUnsupported, "negative date")
}

func TestFormatDate1904(t *testing.T) {
	// Serial 0 in the 1904 system is 1904-01-01.
	f := New(true)
	got, err := f.Format(0, "yyyy-mm-dd")
	require.NoError(t, err)
	assert.Equal(t, "1904-01-01", got)

	f.SetDate1904(false)
	got, err = f.Format(31682, "DD/MM/YYYY")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), got)
}

func TestBuiltIn(t *testing.T) {
	tests := []struct {
		id   int
		want string
		ok   bool
	}{
		{0, "General", true},
		{14, "m/d/yy", true},
		{22, "m/d/yy h:mm", true},
		{49, "@", true},
		{164, "", false},
	}
	for _, tt := range tests {
		got, ok := BuiltIn(tt.id)
		assert.Equal(t, tt.ok, ok, "id %d", tt.id)
		assert.Equal(t, tt.want, got, "id %d", tt.id)
	}

	assert.True(t, IsGeneral(""))
	assert.True(t, IsGeneral("general"))
	assert.False(t, IsGeneral("0.00"))
}
