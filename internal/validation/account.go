// Package validation checks account fields and artwork post content.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	digitRegex    = regexp.MustCompile(`[0-9]`)
	specialRegex  = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?]`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// reservedUsernames collide with API path segments or impersonate staff.
var reservedUsernames = map[string]struct{}{
	"admin":       {},
	"api":         {},
	"auth":        {},
	"search":      {},
	"settings":    {},
	"users":       {},
	"posts":       {},
	"artists":     {},
	"comments":    {},
	"exhibitions": {},
	"media":       {},
	"swagger":     {},
	"metrics":     {},
	"login":       {},
	"signup":      {},
}

// passwordRules are checked in order; the first failing rule is reported.
var passwordRules = []struct {
	ok  func(string) bool
	msg string
}{
	{func(p string) bool { return len(p) >= 12 }, "password must be at least 12 characters long"},
	{func(p string) bool { return len(p) <= 128 }, "password must not exceed 128 characters"},
	{func(p string) bool { return strings.IndexFunc(p, unicode.IsUpper) >= 0 }, "password must contain at least one uppercase letter"},
	{func(p string) bool { return strings.IndexFunc(p, unicode.IsLower) >= 0 }, "password must contain at least one lowercase letter"},
	{digitRegex.MatchString, "password must contain at least one digit"},
	{specialRegex.MatchString, "password must contain at least one special character (!@#$%^&*)"},
}

// ValidatePassword enforces length and character-class rules on new passwords.
func ValidatePassword(password string) error {
	for _, rule := range passwordRules {
		if !rule.ok(password) {
			return errors.New(rule.msg)
		}
	}
	return nil
}

// ValidateUsername checks length, charset, edges, and reserved names.
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return errors.New("username must be at least 3 characters long")
	}
	if len(username) > 30 {
		return errors.New("username must not exceed 30 characters")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username can only contain letters, numbers, underscores, and hyphens")
	}
	first, last := username[0], username[len(username)-1]
	if first == '_' || first == '-' || last == '_' || last == '-' {
		return errors.New("username cannot start or end with underscore or hyphen")
	}
	if _, reserved := reservedUsernames[strings.ToLower(username)]; reserved {
		return errors.New("username is reserved")
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}
	if len(email) > 254 {
		return errors.New("email must not exceed 254 characters")
	}
	return nil
}
