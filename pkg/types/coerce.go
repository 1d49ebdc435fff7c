package types

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseDecimal reads a number typed by a person: whitespace is ignored, a
// currency prefix and a unit suffix are stripped ("12,5kg", "€ 1 250,00"),
// and either '.' or ',' may be the decimal mark. When both occur, the last
// one is the decimal mark and the other groups thousands. A repeated mark of
// the same kind is a grouping separator.
func ParseDecimal(s string) (float64, bool) {
	num, ok := normalizeNumber(s)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseInteger reads an integer with the same tolerance as ParseDecimal.
// Integral decimals ("12.0") are accepted; fractions are a miss.
func ParseInteger(s string) (int64, bool) {
	num, ok := normalizeNumber(s)
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseInt(num, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return floatToInt64(f)
}

// normalizeNumber reduces s to a string strconv can parse, or reports false.
// The number is the first run of digits and marks, with spaces or
// apostrophes allowed between digit groups. A suffix set apart by a space
// may contain digits ("12,5 m2"); one glued to the number may not ("12a5").
func normalizeNumber(s string) (string, bool) {
	start := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsDigit(r) || r == '-' || r == '+' || r == '.' || r == ','
	})
	if start < 0 {
		return "", false
	}
	rs := []rune(s[start:])
	var b strings.Builder
	end := len(rs)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
			continue
		case i == 0 && (r == '-' || r == '+'):
			b.WriteRune(r)
			continue
		case isGroupSeparator(r):
			j := i
			for j < len(rs) && isGroupSeparator(rs[j]) {
				j++
			}
			if j < len(rs) && rs[j] >= '0' && rs[j] <= '9' {
				i = j - 1
				continue
			}
		}
		end = i
		break
	}
	if rest := rs[end:]; len(rest) > 0 && !isGroupSeparator(rest[0]) &&
		strings.ContainsFunc(string(rest), unicode.IsDigit) {
		return "", false
	}
	s = strings.TrimRight(b.String(), ".,")
	if s == "" {
		return "", false
	}

	sign := ""
	if s[0] == '-' || s[0] == '+' {
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	digits := 0
	marks := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			marks++
		default:
			return "", false
		}
	}
	if digits == 0 || marks > 1 {
		return "", false
	}
	return sign + s, true
}

func isGroupSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '\u00a0' || r == '\u202f' || r == '\''
}

// ParseBool reads a yes/no answer from edit input. It is more lenient than
// Record.GetBool, which only recognises stored booleans.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "oui", "1", "on":
		return true, true
	case "false", "no", "n", "non", "0", "off":
		return false, true
	}
	return false, false
}

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2/1/2006",
}

// ParseDate reads a calendar date. ISO dates, RFC 3339 timestamps and
// day-first slash dates are accepted; a longer string whose first ten
// characters are an ISO date is read as that date.
func ParseDate(s string) (Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), true
		}
	}
	if len(s) > len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return DateOf(t), true
		}
	}
	return Date{}, false
}
