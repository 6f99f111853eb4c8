package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yukikurage/team-taskboard/internal/broadcast"
	"github.com/yukikurage/team-taskboard/internal/constants"
	"github.com/yukikurage/team-taskboard/internal/dto"
	"github.com/yukikurage/team-taskboard/internal/models"
	"github.com/yukikurage/team-taskboard/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound           = errors.New("task not found")
	ErrInvalidTaskID          = errors.New("invalid task id")
	ErrTitleRequired          = errors.New("title is required")
	ErrInvalidStatus          = errors.New("invalid task status")
	ErrNoUpdatableFields      = errors.New("no updatable fields provided")
	ErrForbidden              = errors.New("not allowed")
	ErrDanglingUserReference  = errors.New("task references a missing user")
	ErrTextRequired           = errors.New("text is required")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
)

// TaskSuggester drafts tasks from free-form text.
type TaskSuggester interface {
	SuggestTasks(ctx context.Context, text string) ([]SuggestedTask, error)
}

// TaskService enforces the task permission rules and announces every
// successful mutation on the broadcast channel.
type TaskService struct {
	taskRepo  repository.TaskRepository
	userRepo  repository.UserRepository
	emitter   broadcast.Emitter
	suggester TaskSuggester
	now       func() time.Time
}

// NewTaskService creates a new TaskService. suggester may be nil.
func NewTaskService(taskRepo repository.TaskRepository, userRepo repository.UserRepository, emitter broadcast.Emitter, suggester TaskSuggester) *TaskService {
	if emitter == nil {
		emitter = broadcast.Nop{}
	}
	return &TaskService{
		taskRepo:  taskRepo,
		userRepo:  userRepo,
		emitter:   broadcast.Safe(emitter),
		suggester: suggester,
		now:       time.Now,
	}
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	ActorID     string
}

// UpdateTaskInput holds the fields a client submitted; nil means absent.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
}

// statusOnly reports whether status is the only field present.
func (in UpdateTaskInput) statusOnly() bool {
	return in.Status != nil && in.Title == nil && in.Description == nil
}

func (in UpdateTaskInput) empty() bool {
	return in.Status == nil && in.Title == nil && in.Description == nil
}

// ListTasks returns every task, newest first, with user references expanded
func (s *TaskService) ListTasks(ctx context.Context) ([]dto.TaskDTO, error) {
	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return s.expand(ctx, tasks)
}

// CreateTask stores a new task in the first workflow state
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*dto.TaskDTO, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	now := s.now()
	actorID := input.ActorID
	task := &models.Task{
		Title:         title,
		Description:   input.Description,
		Status:        models.TaskStatusTodo,
		CreatorID:     actorID,
		LastMovedByID: &actorID,
		LastMovedAt:   &now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	expanded, err := s.expandOne(ctx, *task)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(broadcast.EventTaskCreate, *expanded)
	return expanded, nil
}

// UpdateTask applies a partial update. Any authenticated actor may change
// only the status; editing title or description requires the creator or an
// admin. The mover fields change only when the status value changes.
func (s *TaskService) UpdateTask(ctx context.Context, id string, input UpdateTaskInput, actor models.Actor) (*dto.TaskDTO, error) {
	task, err := s.findTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.empty() {
		return nil, ErrNoUpdatableFields
	}
	if !input.statusOnly() && !canEdit(task, actor) {
		return nil, ErrForbidden
	}

	if input.Status != nil {
		status := models.TaskStatus(*input.Status)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		if status != task.Status {
			now := s.now()
			moverID := actor.UserID
			task.Status = status
			task.LastMovedByID = &moverID
			task.LastMovedAt = &now
		}
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		// deleted after it was read
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	expanded, err := s.expandOne(ctx, *task)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(broadcast.EventTaskUpdate, *expanded)
	return expanded, nil
}

// DeleteTask removes a task if the actor is its creator or an admin
func (s *TaskService) DeleteTask(ctx context.Context, id string, actor models.Actor) error {
	task, err := s.findTask(ctx, id)
	if err != nil {
		return err
	}

	if !canEdit(task, actor) {
		return ErrForbidden
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.emitter.Emit(broadcast.EventTaskDelete, dto.TaskDeletedDTO{ID: task.ID})
	return nil
}

// SuggestTasks drafts tasks from text without storing them
func (s *TaskService) SuggestTasks(ctx context.Context, text string) ([]dto.SuggestedTaskDTO, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrTextRequired
	}
	if s.suggester == nil {
		return nil, ErrAIServiceNotConfigured
	}

	drafts, err := s.suggester.SuggestTasks(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	result := make([]dto.SuggestedTaskDTO, 0, len(drafts))
	for _, d := range drafts {
		title := strings.TrimSpace(d.Title)
		if title == "" {
			continue
		}
		result = append(result, dto.SuggestedTaskDTO{
			Title:       title,
			Description: strings.TrimSpace(d.Description),
		})
		if len(result) == constants.MaxSuggestedTasks {
			break
		}
	}

	if len(result) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	return result, nil
}

func (s *TaskService) findTask(ctx context.Context, id string) (*models.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidTaskID
	}

	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// canEdit reports whether actor may change any field or delete task
func canEdit(task *models.Task, actor models.Actor) bool {
	return actor.IsAdmin() || task.CreatorID == actor.UserID
}

func (s *TaskService) expandOne(ctx context.Context, task models.Task) (*dto.TaskDTO, error) {
	expanded, err := s.expand(ctx, []models.Task{task})
	if err != nil {
		return nil, err
	}
	return &expanded[0], nil
}

// expand resolves creator and mover references with a single user lookup
func (s *TaskService) expand(ctx context.Context, tasks []models.Task) ([]dto.TaskDTO, error) {
	ids := make([]string, 0, len(tasks))
	seen := make(map[string]struct{}, len(tasks))
	addID := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, t := range tasks {
		addID(t.CreatorID)
		if t.LastMovedByID != nil {
			addID(*t.LastMovedByID)
		}
	}

	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load task users: %w", err)
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	result := make([]dto.TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		creator, ok := byID[t.CreatorID]
		if !ok {
			log.Printf("tasks: task %s has unknown creator %s", t.ID, t.CreatorID)
			return nil, fmt.Errorf("%w: creator %s", ErrDanglingUserReference, t.CreatorID)
		}

		var mover *models.User
		if t.LastMovedByID != nil {
			u, ok := byID[*t.LastMovedByID]
			if !ok {
				log.Printf("tasks: task %s has unknown mover %s", t.ID, *t.LastMovedByID)
				return nil, fmt.Errorf("%w: mover %s", ErrDanglingUserReference, *t.LastMovedByID)
			}
			mover = &u
		}

		result = append(result, dto.ToTaskDTO(t, creator, mover))
	}
	return result, nil
}
