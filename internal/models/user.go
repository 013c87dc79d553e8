package models

import (
	"fmt"
	"strings"
	"time"
)

// User is an account created the first time someone signs in with Google.
// The id is the provider's stable subject identifier, not an email address.
type User struct {
	id        string
	sequence  int
	email     string
	name      string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewUser creates a user with the given sequence number, email and display name.
func NewUser(sequence int, email, name string) *User {
	now := time.Now()
	return &User{
		sequence:  sequence,
		email:     email,
		name:      name,
		createdAt: now,
		updatedAt: now,
	}
}

func (u *User) ID() string            { return u.id }
func (u *User) Sequence() int         { return u.sequence }
func (u *User) Email() string         { return u.email }
func (u *User) Name() string          { return u.name }
func (u *User) CreatedAt() time.Time  { return u.createdAt }
func (u *User) UpdatedAt() time.Time  { return u.updatedAt }
func (u *User) DeletedAt() *time.Time { return u.deletedAt }

func (u *User) SetID(id string)           { u.id = id }
func (u *User) SetEmail(email string)     { u.email = email }
func (u *User) SetName(name string)       { u.name = name }
func (u *User) SetCreatedAt(t time.Time)  { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)  { u.updatedAt = t }
func (u *User) SetDeletedAt(t *time.Time) { u.deletedAt = t }

// Validate checks that the user carries an identifier and a plausible email.
func (u *User) Validate() error {
	if u.id == "" {
		return fmt.Errorf("user id is required")
	}
	if u.email == "" || !strings.Contains(u.email, "@") {
		return fmt.Errorf("invalid email: %q", u.email)
	}
	return nil
}
