// Package controller authenticates callers against the credential tables,
// gates mutations on the admin role, validates input and runs the person
// operations on the store a session selected.
package controller

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skryldev/people/dao"
	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
	"github.com/Skryldev/people/repo"
	"github.com/Skryldev/people/validate"
)

// StoreOpener opens the backend a session selects.
type StoreOpener func(ctx context.Context, kind dao.Kind) (dao.Store, error)

// Controller holds no per-caller state; everything a caller did so far is in
// the Session it passes back in.
type Controller struct {
	credentials repo.CredentialRepository
	open        StoreOpener
	validator   *validate.Validator
	logger      *slog.Logger
}

func New(credentials repo.CredentialRepository, open StoreOpener, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		credentials: credentials,
		open:        open,
		validator:   validate.New(),
		logger:      logger,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Authentication
// ─────────────────────────────────────────────────────────────────────────────

// Login checks the admin table first. An admin row with a wrong password
// fails without looking at the user table.
func (c *Controller) Login(ctx context.Context, username, password string) (*Session, error) {
	if strings.TrimSpace(username) == "" {
		return nil, domainError(ErrInvalidCredentials, nil, "empty username")
	}

	role, err := c.authenticate(ctx, username, password)
	if err != nil {
		if IsDomain(err) {
			c.logger.WarnContext(ctx, "login rejected", slog.String("username", username))
		}
		return nil, err
	}

	s := &Session{ID: uuid.New(), Username: username, Role: role}
	c.logger.InfoContext(ctx, "login",
		slog.String("session", s.ID.String()),
		slog.String("username", username),
		slog.String("role", string(role)),
	)
	return s, nil
}

func (c *Controller) authenticate(ctx context.Context, username, password string) (models.Role, error) {
	admin, err := c.credentials.FindAdmin(ctx, username)
	switch {
	case err == nil:
		return checkPassword(models.RoleAdmin, admin.Password, password)
	case !db.IsNotFound(err):
		return "", errors.Wrap(err, "login")
	}

	user, err := c.credentials.FindUser(ctx, username)
	switch {
	case err == nil:
		return checkPassword(models.RoleUser, user.Password, password)
	case db.IsNotFound(err):
		return "", domainError(ErrInvalidCredentials, nil, "")
	default:
		return "", errors.Wrap(err, "login")
	}
}

func checkPassword(role models.Role, stored, given string) (models.Role, error) {
	ok, err := PasswordMatches(stored, given)
	if err != nil {
		return "", errors.Wrap(err, "login")
	}
	if !ok {
		return "", domainError(ErrInvalidCredentials, nil, "")
	}
	return role, nil
}

// PasswordMatches compares given with a stored password. Stored bcrypt
// hashes are verified with bcrypt; anything else is plaintext and compared
// in constant time.
func PasswordMatches(stored, given string) (bool, error) {
	if isBcryptHash(stored) {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(given))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, errors.Wrap(err, "compare password hash")
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1, nil
}

// HashPassword returns the bcrypt hash to store for password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// ─────────────────────────────────────────────────────────────────────────────
// Storage selection
// ─────────────────────────────────────────────────────────────────────────────

// SelectStorage opens the named backend and returns a session bound to it.
// A store the session already held is closed.
func (c *Controller) SelectStorage(ctx context.Context, s *Session, kind string) (*Session, error) {
	if s == nil {
		return nil, domainError(ErrInvalidCredentials, nil, "not logged in")
	}
	k, err := dao.ParseKind(kind)
	if err != nil {
		return nil, domainError(ErrUnknownStorage, err, kind)
	}
	store, err := c.open(ctx, k)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s storage", k)
	}
	if err := s.Close(); err != nil {
		_ = store.Close()
		return nil, errors.Wrapf(err, "close %s storage", s.Kind)
	}

	next := *s
	next.Kind = k
	next.Store = store
	c.logger.DebugContext(ctx, "storage selected",
		slog.String("session", s.ID.String()),
		slog.String("kind", string(k)),
	)
	return &next, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Person operations
// ─────────────────────────────────────────────────────────────────────────────

// Insert validates p and stores it. The NIF is normalized first.
func (c *Controller) Insert(ctx context.Context, s *Session, p *models.Person) error {
	if err := c.allow(s, ActionInsert); err != nil {
		return err
	}
	p, err := c.checkPerson(p)
	if err != nil {
		return err
	}

	existing, err := s.Store.Read(ctx, p.NIF)
	if err != nil {
		return errors.Wrapf(err, "insert %s", p.NIF)
	}
	if existing != nil {
		return domainError(ErrAlreadyExists, nil, p.NIF)
	}

	err = s.Store.Insert(ctx, p)
	if errors.Is(err, dao.ErrDuplicate) {
		return domainError(ErrAlreadyExists, err, p.NIF)
	}
	return errors.Wrapf(err, "insert %s", p.NIF)
}

// Read returns the person stored under nif.
func (c *Controller) Read(ctx context.Context, s *Session, nif string) (*models.Person, error) {
	if err := c.allow(s, ActionRead); err != nil {
		return nil, err
	}
	nif, err := checkNIF(nif)
	if err != nil {
		return nil, err
	}
	p, err := s.Store.Read(ctx, nif)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", nif)
	}
	if p == nil {
		return nil, domainError(ErrNotRegistered, nil, nif)
	}
	return p, nil
}

// Update replaces every field of the stored person but the NIF.
func (c *Controller) Update(ctx context.Context, s *Session, p *models.Person) error {
	if err := c.allow(s, ActionUpdate); err != nil {
		return err
	}
	p, err := c.checkPerson(p)
	if err != nil {
		return err
	}

	existing, err := s.Store.Read(ctx, p.NIF)
	if err != nil {
		return errors.Wrapf(err, "update %s", p.NIF)
	}
	if existing == nil {
		return domainError(ErrNotRegistered, nil, p.NIF)
	}

	err = s.Store.Update(ctx, p)
	if errors.Is(err, dao.ErrNotFound) {
		return domainError(ErrNotRegistered, err, p.NIF)
	}
	return errors.Wrapf(err, "update %s", p.NIF)
}

func (c *Controller) Delete(ctx context.Context, s *Session, nif string) error {
	if err := c.allow(s, ActionDelete); err != nil {
		return err
	}
	nif, err := checkNIF(nif)
	if err != nil {
		return err
	}

	existing, err := s.Store.Read(ctx, nif)
	if err != nil {
		return errors.Wrapf(err, "delete %s", nif)
	}
	if existing == nil {
		return domainError(ErrNotRegistered, nil, nif)
	}
	return errors.Wrapf(s.Store.Delete(ctx, nif), "delete %s", nif)
}

func (c *Controller) ReadAll(ctx context.Context, s *Session) ([]*models.Person, error) {
	if err := c.allow(s, ActionList); err != nil {
		return nil, err
	}
	people, err := s.Store.ReadAll(ctx)
	return people, errors.Wrap(err, "read all")
}

func (c *Controller) DeleteAll(ctx context.Context, s *Session) error {
	if err := c.allow(s, ActionDeleteAll); err != nil {
		return err
	}
	if err := s.Store.DeleteAll(ctx); err != nil {
		return errors.Wrap(err, "delete all")
	}
	c.logger.InfoContext(ctx, "all people deleted",
		slog.String("session", s.ID.String()),
		slog.String("kind", string(s.Kind)),
	)
	return nil
}

// Count uses the store's own counter when it has one.
func (c *Controller) Count(ctx context.Context, s *Session) (int, error) {
	if err := c.allow(s, ActionCount); err != nil {
		return 0, err
	}
	if counter, ok := s.Store.(dao.Counter); ok {
		n, err := counter.Count(ctx)
		return n, errors.Wrap(err, "count")
	}
	people, err := s.Store.ReadAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return len(people), nil
}

func (c *Controller) allow(s *Session, a Action) error {
	if !s.HasStorage() {
		return domainError(ErrNoStorage, nil, "")
	}
	if !s.Can(a) {
		return domainError(ErrForbidden, nil, string(a))
	}
	return nil
}

// checkPerson returns a normalized copy of p or the validation failures.
func (c *Controller) checkPerson(p *models.Person) (*models.Person, error) {
	if p == nil {
		return nil, domainError(ErrInvalidField, nil, "no person given")
	}
	p = p.Clone()
	p.NIF = validate.NormalizeNIF(p.NIF)
	p.Name = strings.TrimSpace(p.Name)
	if p.DateOfBirth != nil {
		d := models.DateOnly(*p.DateOfBirth)
		p.DateOfBirth = &d
	}
	if err := c.validator.Person(p); err != nil {
		return nil, domainError(ErrInvalidField, err, validationDetail(err))
	}
	return p, nil
}

func checkNIF(nif string) (string, error) {
	nif = validate.NormalizeNIF(nif)
	if !validate.IsNIF(nif) {
		return "", domainError(ErrInvalidField, nil, "nif "+nif)
	}
	return nif, nil
}

// validationDetail keeps the field messages and drops the sentinel text.
func validationDetail(err error) string {
	msg := err.Error()
	return strings.TrimSuffix(msg, ": "+validate.ErrInvalid.Error())
}
