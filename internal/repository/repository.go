package repository

import (
	"context"

	"github.com/yukikurage/team-taskboard/internal/models"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID
	FindByID(ctx context.Context, id string) (*models.Task, error)

	// List retrieves every task, newest first
	List(ctx context.Context) ([]models.Task, error)

	// Update writes the whole task back
	Update(ctx context.Context, task *models.Task) error

	// Delete permanently removes a task
	Delete(ctx context.Context, id string) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id string) (*models.User, error)

	// FindByIDs returns the users among ids that exist, in no particular order
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// FindByEmailOrUsername finds the user whose email or username equals login
	FindByEmailOrUsername(ctx context.Context, login string) (*models.User, error)
}
