package collector

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// flexFloat decodes the numeric shapes providers emit: plain numbers, numeric strings
// ("1,234.5", "None") and Yahoo's {"raw": 1.2, "fmt": "1.2"} objects. Anything that is not
// a finite number decodes as invalid instead of failing the whole payload.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	*f = flexFloat{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case 'n':
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		f.Value, f.Valid = parseNumber(s)
	case '{':
		var obj struct {
			Raw flexFloat `json:"raw"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return nil
		}
		*f = obj.Raw
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return nil
		}
		f.Value, f.Valid = n, isFinite(n)
	}
	return nil
}

// Ptr returns nil for an invalid value.
func (f flexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// or returns f when valid, otherwise g.
func (f flexFloat) or(g flexFloat) flexFloat {
	if f.Valid {
		return f
	}
	return g
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(n) {
		return 0, false
	}
	return n, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// isJSONObject reports whether body looks like a JSON object.
func isJSONObject(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(body, " \t\r\n"), []byte("{"))
}

// parseFiscalDate accepts "2023-09-30" and returns the date and its year.
func parseFiscalDate(s string) (time.Time, int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return time.Time{}, 0, false
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, t.Year(), true
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return time.Time{}, 0, false
	}
	return time.Time{}, y, true
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
