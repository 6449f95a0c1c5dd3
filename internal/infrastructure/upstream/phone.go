package upstream

import "strings"

// NormalizePhone strips every non-digit character. Applied on every
// phone-carrying route before the value leaves the gateway, verify included.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
