// Package validate checks Person field formats before they reach a store.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

const nifLetters = "TRWAGMYFPDXBNJZSQVHLCKE"

var (
	nifPattern    = regexp.MustCompile(`^[0-9]{8}[A-Z]$`)
	phonePattern  = regexp.MustCompile(`^(\+34)?[6789][0-9]{8}$`)
	postalPattern = regexp.MustCompile(`^(0[1-9]|[1-4][0-9]|5[0-2])[0-9]{3}$`)
)

// ErrInvalid is wrapped by every error returned from Person.
var ErrInvalid = errors.New("invalid field")

// Validator wraps a validator.Validate with the person rules registered.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// New returns a Validator with the nif, phone, postalcode, personname and
// notfuture tags registered.
func New() *Validator {
	pv := &Validator{v: validator.New(validator.WithRequiredStructEnabled()), now: time.Now}
	mustRegister(pv.v, "nif", func(fl validator.FieldLevel) bool { return IsNIF(fl.Field().String()) })
	mustRegister(pv.v, "phone", func(fl validator.FieldLevel) bool { return phonePattern.MatchString(fl.Field().String()) })
	mustRegister(pv.v, "postalcode", func(fl validator.FieldLevel) bool { return postalPattern.MatchString(fl.Field().String()) })
	mustRegister(pv.v, "personname", func(fl validator.FieldLevel) bool { return IsName(fl.Field().String()) })
	// Birth dates are calendar days; compare them with today's date where
	// the process runs, not with the current instant.
	mustRegister(pv.v, "notfuture", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && !models.DateOnly(t).After(models.DateOnly(pv.now()))
	})
	return pv
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validate: register %q: %v", tag, err))
	}
}

// Person validates every field of p and returns one error listing all
// failures, wrapping ErrInvalid.
func (pv *Validator) Person(p *models.Person) error {
	if p == nil {
		return errors.Wrap(ErrInvalid, "person is nil")
	}
	err := pv.v.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "validate person")
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.Wrap(ErrInvalid, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "nif":
		return fe.Field() + " must be 8 digits followed by the matching control letter"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "phone":
		return fe.Field() + " must be a 9 digit Spanish phone number"
	case "postalcode":
		return fe.Field() + " must be a 5 digit postal code between 01000 and 52999"
	case "personname":
		return fe.Field() + " may only contain letters, spaces and hyphens"
	case "notfuture":
		return fe.Field() + " cannot be in the future"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	}
	return fe.Field() + " failed " + fe.Tag()
}

// NIFLetter returns the control letter for the 8 digit number part of a NIF.
func NIFLetter(digits string) (byte, error) {
	if len(digits) != 8 {
		return 0, errors.Errorf("nif number must have 8 digits, got %q", digits)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, errors.Wrapf(err, "nif number %q", digits)
	}
	return nifLetters[n%len(nifLetters)], nil
}

// CompleteNIF appends the control letter to an 8 digit number.
func CompleteNIF(digits string) (string, error) {
	letter, err := NIFLetter(digits)
	if err != nil {
		return "", err
	}
	return digits + string(letter), nil
}

// IsNIF reports whether s is 8 digits followed by the right control letter.
func IsNIF(s string) bool {
	if !nifPattern.MatchString(s) {
		return false
	}
	letter, err := NIFLetter(s[:8])
	return err == nil && letter == s[8]
}

// NormalizeNIF trims and upper-cases user input.
func NormalizeNIF(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsName accepts letters, spaces and hyphens.
func IsName(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' {
			return false
		}
	}
	return true
}
