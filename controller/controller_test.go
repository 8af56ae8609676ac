package controller_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/people/controller"
	"github.com/Skryldev/people/dao"
	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

type fakeCredentials struct {
	admins map[string]string
	users  map[string]string
	err    error
	calls  []string
}

func (f *fakeCredentials) find(table map[string]string, username string) (*models.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	pw, ok := table[username]
	if !ok {
		return nil, errors.Wrap(db.ErrNotFound, "credential")
	}
	return &models.Credential{Username: username, Password: pw}, nil
}

func (f *fakeCredentials) FindAdmin(_ context.Context, username string) (*models.Credential, error) {
	f.calls = append(f.calls, "admin")
	return f.find(f.admins, username)
}

func (f *fakeCredentials) FindUser(_ context.Context, username string) (*models.Credential, error) {
	f.calls = append(f.calls, "user")
	return f.find(f.users, username)
}

func (f *fakeCredentials) SetPassword(context.Context, models.Role, string, string) error {
	return nil
}

func newFixture(t *testing.T) (*controller.Controller, *fakeCredentials) {
	t.Helper()
	creds := &fakeCredentials{
		admins: map[string]string{"zoeadmin": "1010"},
		users:  map[string]string{"zoef": "1234", "zoeadmin": "user-side"},
	}
	open := func(_ context.Context, kind dao.Kind) (dao.Store, error) {
		if kind == dao.KindRedis {
			return nil, errors.New("redis down")
		}
		return dao.NewListStore(), nil
	}
	return controller.New(creds, open, nil), creds
}

func session(t *testing.T, c *controller.Controller, username, password string) *controller.Session {
	t.Helper()
	ctx := context.Background()
	s, err := c.Login(ctx, username, password)
	require.NoError(t, err)
	s, err = c.SelectStorage(ctx, s, "list")
	require.NoError(t, err)
	return s
}

func ann() *models.Person {
	dob := time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC)
	return &models.Person{
		NIF:         "12345678z",
		Name:        "Ann",
		DateOfBirth: &dob,
		Email:       "ann@example.com",
		PhoneNumber: "612345678",
		PostalCode:  "28001",
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("admin", func(t *testing.T) {
		c, creds := newFixture(t)
		s, err := c.Login(ctx, "zoeadmin", "1010")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, s.Role)
		assert.NotEqual(t, [16]byte{}, [16]byte(s.ID))
		assert.False(t, s.HasStorage())
		assert.Equal(t, []string{"admin"}, creds.calls)
	})

	t.Run("user", func(t *testing.T) {
		c, creds := newFixture(t)
		s, err := c.Login(ctx, "zoef", "1234")
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, s.Role)
		assert.Equal(t, []string{"admin", "user"}, creds.calls)
	})

	t.Run("wrong admin password does not fall back", func(t *testing.T) {
		c, creds := newFixture(t)
		_, err := c.Login(ctx, "zoeadmin", "user-side")
		assert.ErrorIs(t, err, controller.ErrInvalidCredentials)
		assert.True(t, controller.IsDomain(err))
		assert.Equal(t, []string{"admin"}, creds.calls)
	})

	t.Run("unknown user", func(t *testing.T) {
		c, _ := newFixture(t)
		_, err := c.Login(ctx, "nobody", "x")
		assert.ErrorIs(t, err, controller.ErrInvalidCredentials)
	})

	t.Run("empty username", func(t *testing.T) {
		c, creds := newFixture(t)
		_, err := c.Login(ctx, "  ", "x")
		assert.ErrorIs(t, err, controller.ErrInvalidCredentials)
		assert.Empty(t, creds.calls)
	})

	t.Run("bcrypt hash", func(t *testing.T) {
		c, creds := newFixture(t)
		hash, err := controller.HashPassword("s3cret")
		require.NoError(t, err)
		creds.users["hashed"] = hash

		s, err := c.Login(ctx, "hashed", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, s.Role)

		_, err = c.Login(ctx, "hashed", "wrong")
		assert.ErrorIs(t, err, controller.ErrInvalidCredentials)
	})

	t.Run("infrastructure failure is fatal", func(t *testing.T) {
		c, creds := newFixture(t)
		creds.err = errors.New("connection refused")
		_, err := c.Login(ctx, "zoeadmin", "1010")
		require.Error(t, err)
		assert.False(t, controller.IsDomain(err))
	})
}

func TestSelectStorage(t *testing.T) {
	ctx := context.Background()
	c, _ := newFixture(t)
	s, err := c.Login(ctx, "zoef", "1234")
	require.NoError(t, err)

	_, err = c.SelectStorage(ctx, s, "tape")
	assert.ErrorIs(t, err, controller.ErrUnknownStorage)
	assert.True(t, controller.IsDomain(err))

	_, err = c.SelectStorage(ctx, s, "redis")
	require.Error(t, err)
	assert.False(t, controller.IsDomain(err))

	selected, err := c.SelectStorage(ctx, s, "MAP")
	require.NoError(t, err)
	assert.Equal(t, dao.KindMap, selected.Kind)
	assert.Equal(t, s.ID, selected.ID)
	assert.False(t, s.HasStorage())
}

func TestOperationsNeedStorage(t *testing.T) {
	ctx := context.Background()
	c, _ := newFixture(t)
	s, err := c.Login(ctx, "zoeadmin", "1010")
	require.NoError(t, err)

	_, err = c.ReadAll(ctx, s)
	assert.ErrorIs(t, err, controller.ErrNoStorage)
	assert.ErrorIs(t, c.Insert(ctx, s, ann()), controller.ErrNoStorage)
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()
	c, _ := newFixture(t)
	admin := session(t, c, "zoeadmin", "1010")
	user := session(t, c, "zoef", "1234")

	assert.Equal(t, controller.AllActions(), admin.Actions())
	assert.Equal(t, []controller.Action{controller.ActionRead, controller.ActionList, controller.ActionCount}, user.Actions())

	assert.ErrorIs(t, c.Insert(ctx, user, ann()), controller.ErrForbidden)
	assert.ErrorIs(t, c.Update(ctx, user, ann()), controller.ErrForbidden)
	assert.ErrorIs(t, c.Delete(ctx, user, "12345678Z"), controller.ErrForbidden)
	assert.ErrorIs(t, c.DeleteAll(ctx, user), controller.ErrForbidden)

	_, err := c.ReadAll(ctx, user)
	assert.NoError(t, err)
	_, err = c.Count(ctx, user)
	assert.NoError(t, err)
}

func TestPersonLifecycle(t *testing.T) {
	ctx := context.Background()
	c, _ := newFixture(t)
	s := session(t, c, "zoeadmin", "1010")

	require.NoError(t, c.Insert(ctx, s, ann()))

	got, err := c.Read(ctx, s, " 12345678z ")
	require.NoError(t, err)
	assert.Equal(t, "12345678Z", got.NIF)
	assert.Equal(t, "Ann", got.Name)

	err = c.Insert(ctx, s, &models.Person{NIF: "12345678Z", Name: "Other"})
	assert.ErrorIs(t, err, controller.ErrAlreadyExists)
	assert.True(t, controller.IsDomain(err))

	require.NoError(t, c.Update(ctx, s, &models.Person{NIF: "12345678Z", Name: "Anna"}))
	got, err = c.Read(ctx, s, "12345678Z")
	require.NoError(t, err)
	assert.Equal(t, "Anna", got.Name)
	assert.Nil(t, got.DateOfBirth)

	n, err := c.Count(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, c.Delete(ctx, s, "12345678Z"))
	assert.ErrorIs(t, c.Delete(ctx, s, "12345678Z"), controller.ErrNotRegistered)

	_, err = c.Read(ctx, s, "12345678Z")
	assert.ErrorIs(t, err, controller.ErrNotRegistered)
}

func TestUpdateMissing(t *testing.T) {
	ctx := context.Background()
	c, _ := newFixture(t)
	s := session(t, c, "zoeadmin", "1010")

	err := c.Update(ctx, s, ann())
	assert.ErrorIs(t, err, controller.ErrNotRegistered)

	all, err := c.ReadAll(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	c, _ := newFixture(t)
	s := session(t, c, "zoeadmin", "1010")

	bad := ann()
	bad.NIF = "12345678A"
	bad.Email = "not-an-email"
	err := c.Insert(ctx, s, bad)
	assert.ErrorIs(t, err, controller.ErrInvalidField)
	assert.True(t, controller.IsDomain(err))
	assert.NotContains(t, err.Error(), "invalid field: invalid field")

	_, err = c.Read(ctx, s, "123")
	assert.ErrorIs(t, err, controller.ErrInvalidField)

	all, err := c.ReadAll(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	c, _ := newFixture(t)
	s := session(t, c, "zoeadmin", "1010")

	require.NoError(t, c.Insert(ctx, s, ann()))
	require.NoError(t, c.Insert(ctx, s, &models.Person{NIF: "87654321X"}))
	require.NoError(t, c.DeleteAll(ctx, s))

	all, err := c.ReadAll(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPasswordMatches(t *testing.T) {
	ok, err := controller.PasswordMatches("1234", "1234")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = controller.PasswordMatches("1234", "12345")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = controller.PasswordMatches("$2a$broken", "x")
	assert.Error(t, err)
}
