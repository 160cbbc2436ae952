package flow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	timePattern  = regexp.MustCompile(`(\d{1,2})(?:[:.](\d{2}))?`)
	isoDate      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	dottedDate   = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})(?:[./-](\d{4}))?$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitRun     = regexp.MustCompile(`\d+`)
)

var wordNumerals = map[string]int{
	"bir": 1, "iki": 2, "üç": 3, "dört": 4, "beş": 5,
	"altı": 6, "yedi": 7, "sekiz": 8, "dokuz": 9, "on": 10,
}

// Validate canonicalises a raw answer for the given validation kind. An
// empty kind behaves like text. ok=false means the answer does not parse and
// must not be stored.
func Validate(kind, raw string) (string, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", false
	}
	switch kind {
	case ValidateTime:
		return validateTime(value)
	case ValidateDate:
		return validateDate(value)
	case ValidatePhone:
		return validatePhone(value)
	case ValidateEmail:
		return validateEmail(value)
	case ValidateNumber:
		return validateNumber(value)
	default:
		return value, true
	}
}

// validateTime accepts "9", "9.30", "09:30", "sabah 9" and "akşam 7" forms
// and canonicalises to 24-hour HH:MM.
func validateTime(raw string) (string, bool) {
	s := turkishLower(raw)

	evening := strings.Contains(s, "akşam") || strings.Contains(s, "öğleden sonra") || strings.Contains(s, "gece")

	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil {
			return "", false
		}
	}
	if evening && hour < 12 {
		hour += 12
	}
	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// validateDate accepts ISO dates plus the dotted Turkish forms "15.06.2026"
// and "15/06" (current year) and canonicalises to YYYY-MM-DD.
func validateDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	if m := isoDate.FindStringSubmatch(s); m != nil {
		return canonicalDate(m[1], m[2], m[3])
	}
	if m := dottedDate.FindStringSubmatch(s); m != nil {
		year := m[3]
		if year == "" {
			year = strconv.Itoa(time.Now().Year())
		}
		return canonicalDate(year, m[2], m[1])
	}
	return "", false
}

func canonicalDate(year, month, day string) (string, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	candidate := fmt.Sprintf("%04d-%02d-%02d", y, m, d)
	if _, err := time.Parse("2006-01-02", candidate); err != nil {
		return "", false
	}
	return candidate, true
}

// validatePhone strips separators and requires at least ten digits, keeping
// an optional leading plus.
func validatePhone(raw string) (string, bool) {
	plus := strings.HasPrefix(strings.TrimSpace(raw), "+")
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() < 10 {
		return "", false
	}
	if plus {
		return "+" + digits.String(), true
	}
	return digits.String(), true
}

func validateEmail(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// validateNumber accepts digits or the Turkish word numerals bir..on.
func validateNumber(raw string) (string, bool) {
	s := turkishLower(raw)

	if m := digitRun.FindString(s); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			return "", false
		}
		return strconv.Itoa(n), true
	}

	for _, word := range strings.Fields(s) {
		if n, ok := wordNumerals[word]; ok {
			return strconv.Itoa(n), true
		}
	}
	return "", false
}

// NormalizeOption maps a free-form answer into a field's closed option set,
// ignoring case and Turkish diacritics. Exact folded equality wins over
// substring containment.
func NormalizeOption(options []string, raw string) (string, bool) {
	answer := asciiFold(turkishLower(raw))
	if answer == "" {
		return "", false
	}
	for _, opt := range options {
		if asciiFold(turkishLower(opt)) == answer {
			return opt, true
		}
	}
	for _, opt := range options {
		if strings.Contains(answer, asciiFold(turkishLower(opt))) {
			return opt, true
		}
	}
	return "", false
}

// turkishLower lowercases with the Turkish dotted/dotless I handled before
// the generic fold, so "İzel" becomes "izel" rather than carrying a
// combining mark.
func turkishLower(s string) string {
	s = strings.NewReplacer("İ", "i", "I", "ı").Replace(s)
	return strings.ToLower(strings.TrimSpace(s))
}

var diacriticFolder = strings.NewReplacer(
	"ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u",
)

func asciiFold(s string) string {
	return diacriticFolder.Replace(s)
}

func foldEqual(a, b string) bool {
	return asciiFold(turkishLower(a)) == asciiFold(turkishLower(b))
}

// Fold lowercases, trims and strips Turkish diacritics so callers can
// compare customer text against fixed word lists.
func Fold(s string) string {
	return asciiFold(turkishLower(s))
}
