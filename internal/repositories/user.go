package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/khukmani/bettervisuals/internal/models"
	"github.com/khukmani/bettervisuals/internal/shared"
)

// UserRepository implements [models.Repository] for [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. The caller sets the ID beforehand because it is
// the identity provider's subject identifier, not a generated value.
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO users (id, sequence, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, user.ID(), sequence, user.Email(), user.Name(), user.CreatedAt(), user.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `
		SELECT id, sequence, email, name, created_at, updated_at, deleted_at
		FROM users
		WHERE id = ? AND deleted_at IS NULL
	`

	return scanUser(r.db.QueryRow(query, id))
}

// GetByEmail retrieves a user by email, excluding soft-deleted users
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, sequence, email, name, created_at, updated_at, deleted_at
		FROM users
		WHERE email = ? AND deleted_at IS NULL
	`

	return scanUser(r.db.QueryRow(query, email))
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	user.SetUpdatedAt(now)

	query := `
		UPDATE users
		SET email = ?, name = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, user.Email(), user.Name(), now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", shared.ErrNotFound, user.ID())
	}

	return nil
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `
		SELECT id, sequence, email, name, created_at, updated_at, deleted_at
		FROM users
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// Upsert records a sign-in: it creates the user on first login and refreshes
// the email and display name on later ones.
func (r *UserRepository) Upsert(id, email, name string) (*models.User, error) {
	existing, err := r.Get(id)
	if err == nil {
		existing.SetEmail(email)
		existing.SetName(name)
		if err := r.Update(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	user := models.NewUser(0, email, name)
	user.SetID(id)
	if err := r.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row) (*models.User, error) {
	user, err := scanUserFields(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func scanUserRow(rows *sql.Rows) (*models.User, error) {
	user, err := scanUserFields(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

func scanUserFields(scanner rowScanner) (*models.User, error) {
	var (
		id        string
		sequence  int
		email     string
		name      string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	if err := scanner.Scan(&id, &sequence, &email, &name, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	user := models.NewUser(sequence, email, name)
	user.SetID(id)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}

	return user, nil
}
