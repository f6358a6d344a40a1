package validator

import (
	"regexp"
	"strings"
)

// digitsOnly matches a string of decimal digits
var digitsOnly = regexp.MustCompile(`^\d+$`)

// validPrefixes are the Tanzanian mobile operator prefixes accepted for
// registration, in local 0XX form
var validPrefixes = []string{
	"061", "062", // Halotel
	"065", "067", "071", // Tigo
	"068", "069", "078", // Airtel
	"074", "075", "076", // Vodacom
	"073",        // TTCL
	"077", "079", // Zantel
}

// NormalizePhone validates a Tanzanian mobile number and returns it in
// +255XXXXXXXXX form. Accepts "+255712345678", "255712345678" and
// "0712345678", with spaces and dashes ignored.
func NormalizePhone(phone string) (string, bool) {
	s := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	if s == "" {
		return "", false
	}

	switch {
	case strings.HasPrefix(s, "+255"):
		s = "0" + s[4:]
	case strings.HasPrefix(s, "255"):
		s = "0" + s[3:]
	}

	if len(s) != 10 || !digitsOnly.MatchString(s) {
		return "", false
	}

	prefix := s[:3]
	for _, p := range validPrefixes {
		if prefix == p {
			return "+255" + s[1:], true
		}
	}
	return "", false
}
