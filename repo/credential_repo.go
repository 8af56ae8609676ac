package repo

import (
	"context"

	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
)

// CredentialRepository reads the two credential tables. Both lookups return
// db.ErrNotFound when the username has no row.
type CredentialRepository interface {
	FindAdmin(ctx context.Context, username string) (*models.Credential, error)
	FindUser(ctx context.Context, username string) (*models.Credential, error)
	// SetPassword replaces the stored password of an existing account.
	SetPassword(ctx context.Context, role models.Role, username, password string) error
}

type credentialRepo struct {
	q db.Querier
}

// NewCredentialRepo returns a CredentialRepository backed by q.
func NewCredentialRepo(q db.Querier) CredentialRepository {
	return &credentialRepo{q: q}
}

const (
	sqlFindAdmin = `SELECT username, password FROM admin_account WHERE username = ?`
	sqlFindUser  = `SELECT username, password FROM user_account WHERE username = ?`

	sqlSetAdminPassword = `UPDATE admin_account SET password = ? WHERE username = ?`
	sqlSetUserPassword  = `UPDATE user_account SET password = ? WHERE username = ?`
)

func (r *credentialRepo) FindAdmin(ctx context.Context, username string) (*models.Credential, error) {
	c, err := scanCredential(r.q.QueryRow(ctx, sqlFindAdmin, username))
	return c, errors.Wrapf(err, "repo/credential: admin %s", username)
}

func (r *credentialRepo) FindUser(ctx context.Context, username string) (*models.Credential, error) {
	c, err := scanCredential(r.q.QueryRow(ctx, sqlFindUser, username))
	return c, errors.Wrapf(err, "repo/credential: user %s", username)
}

func (r *credentialRepo) SetPassword(ctx context.Context, role models.Role, username, password string) error {
	query := sqlSetUserPassword
	if role == models.RoleAdmin {
		query = sqlSetAdminPassword
	}
	res, err := r.q.Exec(ctx, query, password, username)
	if err != nil {
		return errors.Wrapf(err, "repo/credential: set %s password %s", role, username)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "repo/credential: set %s password %s", role, username)
	}
	if n == 0 {
		return errors.Wrapf(db.ErrNotFound, "repo/credential: set %s password %s", role, username)
	}
	return nil
}

func scanCredential(row *db.Row) (*models.Credential, error) {
	c := &models.Credential{}
	if err := row.Scan(&c.Username, &c.Password); err != nil {
		return nil, err
	}
	return c, nil
}

var _ CredentialRepository = (*credentialRepo)(nil)
