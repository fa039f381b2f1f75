package records

import "strings"

// NormalizeISBN strips spaces and hyphens from value and reports whether the
// result is a valid ISBN-10 or ISBN-13. A trailing ISBN-10 check digit "x" is
// upper-cased.
func NormalizeISBN(value string) (string, bool) {
	cleaned := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(value)))
	switch len(cleaned) {
	case 10:
		return cleaned, validISBN10(cleaned)
	case 13:
		return cleaned, validISBN13(cleaned)
	default:
		return cleaned, false
	}
}

func validISBN10(isbn string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		c := isbn[i]
		var digit int
		switch {
		case c >= '0' && c <= '9':
			digit = int(c - '0')
		case c == 'X' && i == 9:
			digit = 10
		default:
			return false
		}
		sum += digit * (10 - i)
	}
	return sum%11 == 0
}

func validISBN13(isbn string) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		c := isbn[i]
		if c < '0' || c > '9' {
			return false
		}
		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		sum += int(c-'0') * weight
	}
	return sum%10 == 0
}
