package models_test

import (
	"testing"
	"time"

	"github.com/Skryldev/people/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerson_EqualByNIFOnly(t *testing.T) {
	a := &models.Person{NIF: "12345678Z", Name: "Ann"}
	b := &models.Person{NIF: "12345678Z", Name: "Someone else", Email: "x@y.es"}
	c := &models.Person{NIF: "87654321X", Name: "Ann"}

	assert.True(t, a.Equal(a))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestPerson_CloneIsDeep(t *testing.T) {
	dob := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	p := &models.Person{NIF: "12345678Z", DateOfBirth: &dob, Photo: []byte{1, 2, 3}}

	c := p.Clone()
	c.Photo[0] = 9
	*c.DateOfBirth = c.DateOfBirth.AddDate(1, 0, 0)

	assert.Equal(t, byte(1), p.Photo[0])
	assert.Equal(t, 1990, p.DateOfBirth.Year())
}

func TestPerson_String(t *testing.T) {
	dob := time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC)
	p := &models.Person{NIF: "12345678Z", Name: "John Doe", DateOfBirth: &dob, Photo: []byte{1}}
	assert.Equal(t, "Person{NIF=12345678Z, Name=John Doe, DateOfBirth=2001-02-03, Photo=true}", p.String())
}

func TestParseDate(t *testing.T) {
	d, err := models.ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = models.ParseDate("1999-12-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC), *d)

	_, err = models.ParseDate("31/12/1999")
	assert.Error(t, err)
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2000, 1, 2, 15, 4, 5, 6, time.FixedZone("CET", 3600))
	assert.Equal(t, time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC), models.DateOnly(in))
}
