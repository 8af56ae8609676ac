package models

// Role is fixed for a session once the login succeeds.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Credential is a row of one of the two credential tables.
type Credential struct {
	Username string
	Password string
}
