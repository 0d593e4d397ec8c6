package domain

import (
	"regexp"
	"strings"
)

// Angola mobile numbers, optionally prefixed with +244 or 00244.
var angolaPhone = regexp.MustCompile(`^(?:\+244|00244)?(9)([12349])(\d{7})$`)

// NormalizePhone validates an Angola mobile number and returns its 9-digit local form.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.TrimSpace(phone)
	m := angolaPhone.FindStringSubmatch(cleaned)
	if m == nil {
		return "", NewInvalidPhoneError(phone)
	}
	return m[1] + m[2] + m[3], nil
}
