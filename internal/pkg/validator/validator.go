package validator

import (
	"net/mail"
	"regexp"
	"strings"
)

var (
	// 07XXXXXXXX / 01XXXXXXXX, with optional 254 or +254 prefix
	kenyanPhone = regexp.MustCompile(`^(?:\+?254|0)?([17]\d{8})$`)
	nationalID  = regexp.MustCompile(`^\d{6,10}$`)
	phoneStrip  = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// NormalizeEmail trims and case-folds an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsEmail performs a syntactic email check
func IsEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at:], ".")
}

// NormalizePhone returns the +254XXXXXXXXX form of a Kenyan mobile number
func NormalizePhone(phone string) (string, bool) {
	m := kenyanPhone.FindStringSubmatch(phoneStrip.Replace(strings.TrimSpace(phone)))
	if m == nil {
		return "", false
	}
	return "+254" + m[1], true
}

// IsNationalID checks the national id format
func IsNationalID(id string) bool {
	return nationalID.MatchString(id)
}

// IsName checks a first/last name
func IsName(name string) bool {
	n := len(strings.TrimSpace(name))
	return n >= 2 && n <= 50
}

// Errors collects field-level validation failures
type Errors map[string]string

// Add records a failure for field
func (e Errors) Add(field, message string) {
	if _, exists := e[field]; !exists {
		e[field] = message
	}
}

// Check adds message for field when ok is false
func (e Errors) Check(ok bool, field, message string) {
	if !ok {
		e.Add(field, message)
	}
}

// Empty reports whether no failures were recorded
func (e Errors) Empty() bool {
	return len(e) == 0
}
