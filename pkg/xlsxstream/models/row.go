// Package models defines the records produced by the streaming parser.
package models

// Row represents one reconstructed worksheet row.
type Row struct {
	// Number is the row index (1-based).
	Number int `json:"r"`
	// Values holds cell values by column index (0-based). Entries are nil,
	// string or float64.
	Values []any `json:"values"`
	// Formulas holds formula text by column index, "" where absent.
	Formulas []string `json:"formulas,omitempty"`
	// Formats holds the applied number format codes by column index (optional).
	Formats []string `json:"formats,omitempty"`
}

// IsEmpty reports whether every value in the row is nil or "".
func (r Row) IsEmpty() bool {
	for _, v := range r.Values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		return false
	}
	return true
}
