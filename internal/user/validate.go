package user

import (
	"regexp"
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest password accepted at registration and reset.
const MinPasswordLength = 8

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}$`)

// ValidEmail accepts local@domain.tld with no whitespace and at least one dot
// in the domain part.
func ValidEmail(email string) bool {
	if len(email) > 254 || strings.Contains(email, "..") {
		return false
	}
	return emailPattern.MatchString(email)
}

// StrongPassword requires MinPasswordLength characters, at most
// MaxPasswordBytes bytes of UTF-8, and at least one lowercase letter, one
// uppercase letter, one digit and one symbol.
func StrongPassword(pw string) bool {
	if len([]rune(pw)) < MinPasswordLength || len(pw) > MaxPasswordBytes {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}
