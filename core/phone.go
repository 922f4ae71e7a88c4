package core

import "strings"

// NormalizePhone converts a raw phone number into a digits-only, E.164-like
// string for the given country code prefix (e.g. "260") and national
// significant-number length (e.g. 9).
//
// Pure function; same input always yields same output:
//   - all non-digit characters are stripped;
//   - a number already starting with the country code is returned as-is;
//   - a single leading "0" is replaced with the country code;
//   - a bare national number (exactly nationalLen digits) gets the country
//     code prepended;
//   - anything else is returned stripped but otherwise unchanged
//     (best effort; not guaranteed valid).
func NormalizePhone(raw, countryCode string, nationalLen int) string {
	digits := stripNonDigits(raw)
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, countryCode):
		return digits
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	case len(digits) == nationalLen:
		return countryCode + digits
	}
	return digits
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
