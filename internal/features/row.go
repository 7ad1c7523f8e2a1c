// Package features turns raw questionnaire answers into the exact feature row
// the classifier was trained on. It normalizes each answer into the model's
// categorical vocabulary and assembles a row that matches the model's column
// contract in both set and order.
//
// Nothing in this package fails on user input: anything unrecognised
// resolves to a default. It imports only the questionnaire package and can be
// tested without any external service.
package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ─── VALUE ────────────────────────────────────────────────────────────────────

// Value is one canonical feature value: an integer for numeric columns, a
// string label for categorical ones.
type Value struct {
	Text    string
	Number  int
	Numeric bool
}

// Text returns a categorical value.
func Text(s string) Value { return Value{Text: s} }

// Number returns a numeric value.
func Number(n int) Value { return Value{Number: n, Numeric: true} }

// String formats the value the way it is logged and shown.
func (v Value) String() string {
	if v.Numeric {
		return strconv.Itoa(v.Number)
	}
	return v.Text
}

// Any returns the value as int or string.
func (v Value) Any() any {
	if v.Numeric {
		return v.Number
	}
	return v.Text
}

// MarshalJSON encodes numeric values as JSON numbers and labels as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON accepts a JSON number (integers only) or string.
func (v *Value) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = Text(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("features: value must be a string or an integer: %s", b)
	}
	*v = Number(n)
	return nil
}

// ─── ROW ──────────────────────────────────────────────────────────────────────

// Row is a single model input: Values[i] belongs to Columns[i].
type Row struct {
	Columns []string
	Values  []Value
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.Columns) }

// Get returns the value of col.
func (r Row) Get(col string) (Value, bool) {
	for i, c := range r.Columns {
		if c == col {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

// MarshalJSON encodes the row as a JSON object whose keys keep column order.
func (r Row) MarshalJSON() ([]byte, error) {
	if len(r.Columns) != len(r.Values) {
		return nil, fmt.Errorf("features: row has %d columns but %d values", len(r.Columns), len(r.Values))
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := r.Values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ─── CONTRACT ─────────────────────────────────────────────────────────────────

// Contract is the ordered column list a fitted model declares, plus which of
// those columns are numeric. It is fixed when the model is loaded.
type Contract struct {
	Columns []string
	numeric map[string]bool
}

// NewContract validates and builds a Contract. Columns must be non-empty and
// unique; every numeric column must be one of the columns.
func NewContract(columns, numeric []string) (Contract, error) {
	if len(columns) == 0 {
		return Contract{}, fmt.Errorf("features: contract has no columns")
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c == "" {
			return Contract{}, fmt.Errorf("features: contract has an empty column name")
		}
		if seen[c] {
			return Contract{}, fmt.Errorf("features: contract lists column %q twice", c)
		}
		seen[c] = true
	}
	num := make(map[string]bool, len(numeric))
	for _, c := range numeric {
		if !seen[c] {
			return Contract{}, fmt.Errorf("features: numeric column %q is not in the contract", c)
		}
		num[c] = true
	}
	return Contract{Columns: append([]string(nil), columns...), numeric: num}, nil
}

// Len returns the number of columns.
func (c Contract) Len() int { return len(c.Columns) }

// IsNumeric reports whether col carries integers.
func (c Contract) IsNumeric(col string) bool { return c.numeric[col] }

// Equal reports whether both contracts declare the same columns, order and
// numeric set.
func (c Contract) Equal(o Contract) bool {
	if len(c.Columns) != len(o.Columns) {
		return false
	}
	for i := range c.Columns {
		if c.Columns[i] != o.Columns[i] || c.IsNumeric(c.Columns[i]) != o.IsNumeric(o.Columns[i]) {
			return false
		}
	}
	return true
}
