package controller

import (
	"github.com/google/uuid"

	"github.com/Skryldev/people/dao"
	"github.com/Skryldev/people/models"
)

// Action is one operation a session may run.
type Action string

const (
	ActionInsert    Action = "insert"
	ActionRead      Action = "read"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionList      Action = "list"
	ActionDeleteAll Action = "delete-all"
	ActionCount     Action = "count"
)

// AllActions lists every action in menu order.
func AllActions() []Action {
	return []Action{ActionInsert, ActionRead, ActionUpdate, ActionDelete, ActionList, ActionDeleteAll, ActionCount}
}

var adminOnly = map[Action]bool{
	ActionInsert:    true,
	ActionUpdate:    true,
	ActionDelete:    true,
	ActionDeleteAll: true,
}

// Session is the state of one logged-in caller. Login yields a session
// without a store; SelectStorage yields one with a store, which every
// person operation requires. The role never changes.
type Session struct {
	ID       uuid.UUID
	Username string
	Role     models.Role
	Kind     dao.Kind
	Store    dao.Store
}

// Can reports whether the role allows a.
func (s *Session) Can(a Action) bool {
	if s == nil {
		return false
	}
	if adminOnly[a] {
		return s.Role == models.RoleAdmin
	}
	return s.Role == models.RoleAdmin || s.Role == models.RoleUser
}

// Actions lists the actions the role allows, in menu order.
func (s *Session) Actions() []Action {
	var out []Action
	for _, a := range AllActions() {
		if s.Can(a) {
			out = append(out, a)
		}
	}
	return out
}

// HasStorage reports whether a store has been selected.
func (s *Session) HasStorage() bool { return s != nil && s.Store != nil }

// Close releases the selected store, if any.
func (s *Session) Close() error {
	if !s.HasStorage() {
		return nil
	}
	return s.Store.Close()
}
