package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/harlequingg/nearhelp/internal/data"
)

var EmailRX = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

type Validator struct {
	errors map[string]string
}

func New() *Validator {
	return &Validator{
		errors: make(map[string]string),
	}
}

// Err returns nil when every check passed, a *data.ValidationError otherwise.
func (v *Validator) Err() error {
	if v == nil || !v.HasErrors() {
		return nil
	}
	return &data.ValidationError{Fields: v.errors}
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) != 0
}

// Check records msg under key when cond is false. The first message per key wins.
func (v *Validator) Check(cond bool, key, msg string) {
	if cond {
		return
	}
	if _, ok := v.errors[key]; !ok {
		v.errors[key] = msg
	}
}

func (v *Validator) CheckName(name string) {
	v.Check(strings.TrimSpace(name) != "", "name", "must be provided")
	v.Check(utf8.RuneCountInString(name) <= 255, "name", "must be atmost 255 characters")
}

func (v *Validator) CheckEmail(email string) {
	v.Check(email != "", "email", "must be provided")
	v.Check(EmailRX.MatchString(email), "email", "must be a valid email address")
}

func (v *Validator) CheckPassword(password string) {
	v.Check(password != "", "password", "must be provided")
	v.Check(len(password) >= 8, "password", "must be atleast 8 characters long")
	v.Check(len(password) <= 72, "password", "must be atmost 72 characters long")
}
