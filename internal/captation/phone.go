package captation

import "strings"

const countryCode = "55"

// NormalizePhone reduces a phone string to digits, prefixed with the country
// code when the number carries an area code. It never fails; unusable input
// yields "".
func NormalizePhone(raw string) string {
	digits := onlyDigits(raw)
	if digits == "" {
		return ""
	}

	if strings.HasPrefix(digits, countryCode) {
		if n := len(digits); n == 12 || n == 13 {
			return digits
		}
		// Any other length carrying the prefix is read without it.
		digits = digits[len(countryCode):]
	}

	digits = strings.TrimPrefix(digits, "0")

	switch len(digits) {
	case 10, 11:
		return countryCode + digits
	default:
		// 8 or 9 digits have no area code to infer; other lengths are kept
		// as-is on a best-effort basis.
		return digits
	}
}

// PhoneSuffix returns the last n digits of phone, or "" if it is shorter.
func PhoneSuffix(phone string, n int) string {
	digits := onlyDigits(phone)
	if len(digits) < n {
		return ""
	}
	return digits[len(digits)-n:]
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
