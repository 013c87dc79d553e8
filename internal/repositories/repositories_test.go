package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/khukmani/bettervisuals/internal/models"
	"github.com/khukmani/bettervisuals/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, repo *UserRepository, id, email string) *models.User {
	t.Helper()

	user := models.NewUser(0, email, "Test User")
	user.SetID(id)
	if err := repo.Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	first, err := NextSequence(db, "users")
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}
	second, err := NextSequence(db, "users")
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}

	if second != first+1 {
		t.Errorf("expected consecutive sequences, got %d then %d", first, second)
	}
}

func TestUserRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		createTestUser(t, repo, "subject-123", "ada@example.com")

		got, err := repo.Get("subject-123")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ID() != "subject-123" {
			t.Errorf("expected id subject-123, got %s", got.ID())
		}
		if got.Email() != "ada@example.com" {
			t.Errorf("expected email ada@example.com, got %s", got.Email())
		}
		if got.Sequence() == 0 {
			t.Error("expected a non-zero sequence")
		}
	})

	t.Run("Create rejects missing ID", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		user := models.NewUser(0, "ada@example.com", "Ada")
		if err := repo.Create(user); err == nil {
			t.Error("expected validation error for user without id")
		}
	})

	t.Run("Get missing user", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		_, err := repo.Get("nope")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetByEmail", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		createTestUser(t, repo, "subject-123", "ada@example.com")

		got, err := repo.GetByEmail("ada@example.com")
		if err != nil {
			t.Fatalf("GetByEmail failed: %v", err)
		}
		if got.ID() != "subject-123" {
			t.Errorf("expected id subject-123, got %s", got.ID())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		user := createTestUser(t, repo, "subject-123", "ada@example.com")
		user.SetName("Ada Lovelace")
		if err := repo.Update(user); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, err := repo.Get("subject-123")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Name() != "Ada Lovelace" {
			t.Errorf("expected updated name, got %s", got.Name())
		}
	})

	t.Run("Delete is soft", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		createTestUser(t, repo, "subject-123", "ada@example.com")
		if err := repo.Delete("subject-123"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		if _, err := repo.Get("subject-123"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM users WHERE id = ?", "subject-123").Scan(&count); err != nil {
			t.Fatalf("count query failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected row to remain after soft delete, got %d rows", count)
		}
	})

	t.Run("List filters by email", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		createTestUser(t, repo, "subject-1", "ada@example.com")
		createTestUser(t, repo, "subject-2", "grace@example.com")

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 users, got %d", len(all))
		}
		if all[0].ID() != "subject-1" {
			t.Errorf("expected sequence ordering, got %s first", all[0].ID())
		}

		filtered, err := repo.List(map[string]any{"email": "grace@example.com"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(filtered) != 1 || filtered[0].ID() != "subject-2" {
			t.Errorf("expected only subject-2, got %d users", len(filtered))
		}
	})

	t.Run("Upsert creates then refreshes", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		created, err := repo.Upsert("subject-123", "ada@example.com", "Ada")
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if created.Sequence() == 0 {
			t.Error("expected created user to carry a sequence")
		}

		updated, err := repo.Upsert("subject-123", "ada@newdomain.com", "Ada L")
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if updated.Email() != "ada@newdomain.com" {
			t.Errorf("expected refreshed email, got %s", updated.Email())
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("expected a single user after repeated upserts, got %d", len(all))
		}
	})
}

func TestNoteRepository(t *testing.T) {
	t.Run("Create and GetByUser", func(t *testing.T) {
		db := setupTestDB(t)
		users := NewUserRepository(db)
		notes := NewNoteRepository(db)

		createTestUser(t, users, "subject-123", "ada@example.com")

		note := models.NewNote(0, "subject-123", "remember the milk")
		if err := notes.Create(note); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if note.ID() == "" {
			t.Error("expected a generated note id")
		}

		got, err := notes.GetByUser("subject-123")
		if err != nil {
			t.Fatalf("GetByUser failed: %v", err)
		}
		if got.Value() != "remember the milk" {
			t.Errorf("expected note value, got %q", got.Value())
		}
	})

	t.Run("Create requires existing user", func(t *testing.T) {
		db := setupTestDB(t)
		notes := NewNoteRepository(db)

		note := models.NewNote(0, "ghost", "orphan")
		if err := notes.Create(note); err == nil {
			t.Error("expected foreign key violation for unknown user")
		}
	})

	t.Run("GetByUser missing note", func(t *testing.T) {
		db := setupTestDB(t)
		users := NewUserRepository(db)
		notes := NewNoteRepository(db)

		createTestUser(t, users, "subject-123", "ada@example.com")

		_, err := notes.GetByUser("subject-123")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Set creates then updates", func(t *testing.T) {
		db := setupTestDB(t)
		users := NewUserRepository(db)
		notes := NewNoteRepository(db)

		createTestUser(t, users, "subject-123", "ada@example.com")

		first, err := notes.Set("subject-123", "draft")
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		second, err := notes.Set("subject-123", "final")
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if second.ID() != first.ID() {
			t.Errorf("expected the same note to be updated, got ids %s and %s", first.ID(), second.ID())
		}

		got, err := notes.GetByUser("subject-123")
		if err != nil {
			t.Fatalf("GetByUser failed: %v", err)
		}
		if got.Value() != "final" {
			t.Errorf("expected value final, got %q", got.Value())
		}
	})

	t.Run("Set isolates users", func(t *testing.T) {
		db := setupTestDB(t)
		users := NewUserRepository(db)
		notes := NewNoteRepository(db)

		createTestUser(t, users, "subject-1", "ada@example.com")
		createTestUser(t, users, "subject-2", "grace@example.com")

		if _, err := notes.Set("subject-1", "ada's note"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := notes.Set("subject-2", "grace's note"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		got, err := notes.GetByUser("subject-2")
		if err != nil {
			t.Fatalf("GetByUser failed: %v", err)
		}
		if got.Value() != "grace's note" {
			t.Errorf("expected grace's note, got %q", got.Value())
		}
	})

	t.Run("Delete is soft", func(t *testing.T) {
		db := setupTestDB(t)
		users := NewUserRepository(db)
		notes := NewNoteRepository(db)

		createTestUser(t, users, "subject-123", "ada@example.com")
		note, err := notes.Set("subject-123", "ephemeral")
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		if err := notes.Delete(note.ID()); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := notes.GetByUser("subject-123"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}

		recreated, err := notes.Set("subject-123", "again")
		if err != nil {
			t.Fatalf("Set after delete failed: %v", err)
		}
		if recreated.ID() == note.ID() {
			t.Error("expected a fresh note after the old one was deleted")
		}
	})
}
