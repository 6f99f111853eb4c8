package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusTodo  TaskStatus = "To Do"
	TaskStatusDoing TaskStatus = "Doing"
	TaskStatusDone  TaskStatus = "Done"
)

// TaskStatuses lists every status a task may hold, in workflow order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusDoing, TaskStatusDone}

// Valid reports whether s is one of TaskStatuses.
func (s TaskStatus) Valid() bool {
	return slices.Contains(TaskStatuses, s)
}

type Task struct {
	ID            string     `gorm:"type:varchar(36);primarykey" json:"id"`
	Title         string     `gorm:"not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	Status        TaskStatus `gorm:"type:varchar(20);not null;default:'To Do'" json:"status"`
	CreatorID     string     `gorm:"type:varchar(36);not null;index" json:"creator_id"`
	LastMovedByID *string    `gorm:"type:varchar(36)" json:"last_moved_by_id"`
	LastMovedAt   *time.Time `json:"last_moved_at"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BeforeCreate assigns the identifier and the initial status.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TaskStatusTodo
	}
	return nil
}
