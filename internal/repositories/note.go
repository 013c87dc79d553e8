package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/khukmani/bettervisuals/internal/models"
	"github.com/khukmani/bettervisuals/internal/shared"
)

// NoteRepository implements [models.Repository] for [models.Note] persistence.
type NoteRepository struct {
	db *sql.DB
}

// NewNoteRepository creates a new [NoteRepository] with the given database connection
func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create inserts a new note into the database with generated ID and sequence
func (r *NoteRepository) Create(note *models.Note) error {
	sequence, err := NextSequence(r.db, "notes")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	note.SetID(shared.GenerateID())

	if err := note.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO notes (id, sequence, user_id, value, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, note.ID(), sequence, note.UserID(), note.Value(), note.CreatedAt(), note.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}

	return nil
}

// Get retrieves a note by ID, excluding soft-deleted notes
func (r *NoteRepository) Get(id string) (*models.Note, error) {
	query := `
		SELECT id, sequence, user_id, value, created_at, updated_at, deleted_at
		FROM notes
		WHERE id = ? AND deleted_at IS NULL
	`

	return scanNote(r.db.QueryRow(query, id))
}

// GetByUser retrieves a user's note, excluding soft-deleted notes
func (r *NoteRepository) GetByUser(userID string) (*models.Note, error) {
	query := `
		SELECT id, sequence, user_id, value, created_at, updated_at, deleted_at
		FROM notes
		WHERE user_id = ? AND deleted_at IS NULL
	`

	return scanNote(r.db.QueryRow(query, userID))
}

// Update modifies an existing note in the database
func (r *NoteRepository) Update(note *models.Note) error {
	if err := note.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	note.SetUpdatedAt(now)

	query := `
		UPDATE notes
		SET value = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, note.Value(), now, note.ID())
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: note %s", shared.ErrNotFound, note.ID())
	}

	return nil
}

// Delete soft-deletes a note by ID
func (r *NoteRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE notes
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: note %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves all notes matching the given criteria, excluding soft-deleted notes
func (r *NoteRepository) List(criteria map[string]any) ([]*models.Note, error) {
	query := `
		SELECT id, sequence, user_id, value, created_at, updated_at, deleted_at
		FROM notes
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		note, err := scanNoteRow(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return notes, nil
}

// Set stores a user's note value, creating the note on first write.
func (r *NoteRepository) Set(userID, value string) (*models.Note, error) {
	note, err := r.GetByUser(userID)
	if err == nil {
		note.SetValue(value)
		if err := r.Update(note); err != nil {
			return nil, err
		}
		return note, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	note = models.NewNote(0, userID, value)
	if err := r.Create(note); err != nil {
		return nil, err
	}
	return note, nil
}

func scanNote(row *sql.Row) (*models.Note, error) {
	note, err := scanNoteFields(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: note", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return note, nil
}

func scanNoteRow(rows *sql.Rows) (*models.Note, error) {
	note, err := scanNoteFields(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan note: %w", err)
	}
	return note, nil
}

func scanNoteFields(scanner rowScanner) (*models.Note, error) {
	var (
		id        string
		sequence  int
		userID    string
		value     string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	if err := scanner.Scan(&id, &sequence, &userID, &value, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	note := models.NewNote(sequence, userID, value)
	note.SetID(id)
	note.SetCreatedAt(createdAt)
	note.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		note.SetDeletedAt(&deletedAt.Time)
	}

	return note, nil
}
