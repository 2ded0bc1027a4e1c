// Package numfmt renders numeric cell values through spreadsheet number
// format codes.
package numfmt

import "strings"

// General is the format code that leaves values untouched.
const General = "General"

// builtIn holds the standard format codes implied by a numFmtId when the
// styles part does not declare them.
var builtIn = map[int]string{
	0:  General,
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	9:  "0%",
	10: "0.00%",
	11: "0.00E+00",
	12: "# ?/?",
	13: "# ??/??",
	14: "m/d/yy",
	15: "d-mmm-yy",
	16: "d-mmm",
	17: "mmm-yy",
	18: "h:mm AM/PM",
	19: "h:mm:ss AM/PM",
	20: "h:mm",
	21: "h:mm:ss",
	22: "m/d/yy h:mm",
	37: "#,##0 ;(#,##0)",
	38: "#,##0 ;[Red](#,##0)",
	39: "#,##0.00;(#,##0.00)",
	40: "#,##0.00;[Red](#,##0.00)",
	45: "mm:ss",
	46: "[h]:mm:ss",
	47: "mmss.0",
	48: "##0.0E+0",
	49: "@",
}

// BuiltIn returns the standard format code for id.
func BuiltIn(id int) (string, bool) {
	code, ok := builtIn[id]
	return code, ok
}

// IsGeneral reports whether code applies no transformation.
func IsGeneral(code string) bool {
	return code == "" || strings.EqualFold(code, General)
}
