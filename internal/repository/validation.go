package repository

import (
	"net/mail"
	"strings"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 3

// Validation error codes.
const (
	CodeInvalidEmail      = "InvalidEmail"
	CodePasswordTooShort  = "PasswordTooShort"
	CodeDuplicateUserName = "DuplicateUserName"
)

// ValidationError describes one reason a user could not be created.
type ValidationError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ValidationErrors is returned by Create when the input is rejected.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Description)
	}
	return "invalid user: " + strings.Join(msgs, "; ")
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateNewUser checks registration input shared by every store.
func validateNewUser(email, password string) ValidationErrors {
	var errs ValidationErrors
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errs = append(errs, ValidationError{
			Code:        CodeInvalidEmail,
			Description: "Email '" + email + "' is invalid.",
		})
	}
	if len(password) < MinPasswordLength {
		errs = append(errs, ValidationError{
			Code:        CodePasswordTooShort,
			Description: "Passwords must be at least 3 characters.",
		})
	}
	return errs
}

func duplicateUserName(email string) ValidationErrors {
	return ValidationErrors{{
		Code:        CodeDuplicateUserName,
		Description: "Username '" + email + "' is already taken.",
	}}
}
