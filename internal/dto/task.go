package dto

import (
	"time"

	"github.com/yukikurage/team-taskboard/internal/models"
)

// UserSummary is the public view of a user referenced by a task
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TaskDTO is a task with its user references expanded
type TaskDTO struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      models.TaskStatus `json:"status"`
	Creator     UserSummary       `json:"creator"`
	LastMovedBy *UserSummary      `json:"lastMovedBy"`
	LastMovedAt *time.Time        `json:"lastMovedAt"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// TaskDeletedDTO is the payload announcing a removed task
type TaskDeletedDTO struct {
	ID string `json:"id"`
}

// MessageDTO is a plain confirmation body
type MessageDTO struct {
	Message string `json:"message"`
}

// SuggestedTaskDTO is an unsaved task draft
type SuggestedTaskDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ToUserSummary converts a User model to UserSummary
func ToUserSummary(user models.User) UserSummary {
	return UserSummary{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}
}

// ToTaskDTO expands task using the given creator and, when the task has been
// moved, the user who moved it last
func ToTaskDTO(task models.Task, creator models.User, lastMovedBy *models.User) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Creator:     ToUserSummary(creator),
		LastMovedAt: task.LastMovedAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}

	if lastMovedBy != nil {
		mover := ToUserSummary(*lastMovedBy)
		dto.LastMovedBy = &mover
	}

	return dto
}
