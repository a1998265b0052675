package orders

// NormalizePhone strips an arbitrary phone string down to its ASCII digits.
// Empty input yields an empty string. No locale awareness, no validation.
func NormalizePhone(input string) string {
	out := make([]byte, 0, len(input))
	for i := 0; i < len(input); i++ {
		if input[i] >= '0' && input[i] <= '9' {
			out = append(out, input[i])
		}
	}
	return string(out)
}

// phoneMatches decides whether two normalized digit strings represent the
// same subscriber, tolerating country-code prefixes ("91" on Indian numbers
// being the common case: a 12-digit and a 10-digit record sharing the last
// ten digits are the same phone). Suffix containment keeps the heuristic
// permissive across inconsistently formatted data sources; it is not an
// identity check.
func phoneMatches(userPhone, orderPhone string) bool {
	if orderPhone == "" {
		return false
	}
	if userPhone == orderPhone {
		return true
	}
	if len(userPhone) >= 10 && len(orderPhone) >= 10 {
		if userPhone[len(userPhone)-10:] == orderPhone[len(orderPhone)-10:] {
			return true
		}
	}
	if len(userPhone) >= len(orderPhone) && hasSuffix(userPhone, orderPhone) {
		return true
	}
	if len(orderPhone) >= len(userPhone) && hasSuffix(orderPhone, userPhone) {
		return true
	}
	return false
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
