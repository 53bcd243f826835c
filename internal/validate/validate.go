// Package validate checks the syntax of user supplied customer fields.
package validate

import (
	"regexp"

	"github.com/maruel/localcrm/internal/models"
)

var (
	phoneRE = regexp.MustCompile(`^0\d{1,4}-?\d{1,4}-?\d{4}$`)
	emailRE = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

// Messages shown to the user when a field fails validation.
const (
	PhoneMessage = "電話番号の形式が不正です（例：090-1234-5678）"
	EmailMessage = "メールアドレスの形式が不正です（例：name@example.com）"
	IDMessage    = "CustomerIDが空です"
)

// Phone reports whether s is empty or a local format phone number like 090-1234-5678.
func Phone(s string) bool {
	return s == "" || phoneRE.MatchString(s)
}

// Email reports whether s is empty or a syntactically valid email address.
func Email(s string) bool {
	return s == "" || emailRE.MatchString(s)
}

// ValidationError is returned when a field fails validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Record checks the user supplied fields of r. Phone is checked before email; only
// the first failure is reported.
func Record(r models.Record) error {
	if !Phone(r[models.FieldPhone]) {
		return &ValidationError{Field: models.FieldPhone, Message: PhoneMessage}
	}
	if !Email(r[models.FieldEmail]) {
		return &ValidationError{Field: models.FieldEmail, Message: EmailMessage}
	}
	return nil
}
