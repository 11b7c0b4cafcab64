package fundreq

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Fields is the normalized request body: a plain field map as decoded from
// JSON (numbers arrive as json.Number).
type Fields map[string]any

// present reports whether the key carries a value. A literal 0 and the
// literal "0.00%" count as present; only an absent key or an empty string
// does not.
func (f Fields) present(key string) bool {
	v, ok := f[key]
	if !ok {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return v != nil
}

// str returns the trimmed string value for key; non-string values are
// rendered through fmt.
func (f Fields) str(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s)
	}
	if n, isNum := v.(json.Number); isNum {
		return n.String()
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// amount parses key as a decimal quantity rounded to two places. Absent
// keys default to zero; negative or unparseable values are rejected.
func (f Fields) amount(key string) (decimal.Decimal, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return decimal.Zero, nil
	}
	raw := ""
	switch t := v.(type) {
	case json.Number:
		raw = t.String()
	case string:
		raw = strings.TrimSpace(t)
	default:
		return decimal.Zero, errInvalidAmount(key)
	}
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errInvalidAmount(key)
	}
	if d.IsNegative() {
		return decimal.Zero, errInvalidAmount(key)
	}
	return d.Round(2), nil
}

// checkRequired enforces the family's required key list.
func checkRequired(family Family, fields Fields) error {
	for _, name := range requiredFields[family] {
		if !fields.present(name) {
			return errMissingField(name)
		}
	}
	return nil
}
