package models

import (
	"fmt"
	"time"
)

// DateLayout is the textual form of a date of birth in files and flags.
const DateLayout = "2006-01-02"

// Person is one record of the people set. NIF is the identity: two values
// with the same NIF are the same person whatever their other fields hold.
type Person struct {
	NIF         string     `yaml:"nif" validate:"required,nif"`
	Name        string     `yaml:"name,omitempty" validate:"omitempty,max=50,personname"`
	DateOfBirth *time.Time `yaml:"dateOfBirth,omitempty" validate:"omitempty,notfuture"`
	Photo       []byte     `yaml:"-" validate:"-"`
	Email       string     `yaml:"email,omitempty" validate:"omitempty,max=100,email"`
	PhoneNumber string     `yaml:"phoneNumber,omitempty" validate:"omitempty,phone"`
	PostalCode  string     `yaml:"postalCode,omitempty" validate:"omitempty,postalcode"`
}

// Key returns the value records are indexed by.
func (p *Person) Key() string { return p.NIF }

// Equal reports whether both values identify the same person.
func (p *Person) Equal(other *Person) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.NIF == other.NIF
}

// Clone returns a deep copy so stores never share memory with callers.
func (p *Person) Clone() *Person {
	if p == nil {
		return nil
	}
	c := *p
	if p.DateOfBirth != nil {
		d := *p.DateOfBirth
		c.DateOfBirth = &d
	}
	if p.Photo != nil {
		c.Photo = append([]byte(nil), p.Photo...)
	}
	return &c
}

func (p *Person) String() string {
	dob := ""
	if p.DateOfBirth != nil {
		dob = p.DateOfBirth.Format(DateLayout)
	}
	return fmt.Sprintf("Person{NIF=%s, Name=%s, DateOfBirth=%s, Photo=%t}", p.NIF, p.Name, dob, len(p.Photo) > 0)
}

// DateOnly drops the clock part of t and pins it to UTC, the form every
// store persists.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a DateLayout string; the empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
