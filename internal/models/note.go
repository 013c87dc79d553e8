package models

import (
	"fmt"
	"time"
)

// Note is the single per-user scratch value shown on the notes dashboard.
type Note struct {
	id        string
	sequence  int
	userID    string
	value     string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewNote creates a note owned by the given user.
func NewNote(sequence int, userID, value string) *Note {
	now := time.Now()
	return &Note{
		sequence:  sequence,
		userID:    userID,
		value:     value,
		createdAt: now,
		updatedAt: now,
	}
}

func (n *Note) ID() string            { return n.id }
func (n *Note) Sequence() int         { return n.sequence }
func (n *Note) UserID() string        { return n.userID }
func (n *Note) Value() string         { return n.value }
func (n *Note) CreatedAt() time.Time  { return n.createdAt }
func (n *Note) UpdatedAt() time.Time  { return n.updatedAt }
func (n *Note) DeletedAt() *time.Time { return n.deletedAt }

func (n *Note) SetID(id string)           { n.id = id }
func (n *Note) SetValue(value string)     { n.value = value }
func (n *Note) SetCreatedAt(t time.Time)  { n.createdAt = t }
func (n *Note) SetUpdatedAt(t time.Time)  { n.updatedAt = t }
func (n *Note) SetDeletedAt(t *time.Time) { n.deletedAt = t }

// Validate checks that the note is attached to a user.
func (n *Note) Validate() error {
	if n.id == "" {
		return fmt.Errorf("note id is required")
	}
	if n.userID == "" {
		return fmt.Errorf("note user id is required")
	}
	return nil
}
