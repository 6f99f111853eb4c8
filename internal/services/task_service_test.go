package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/team-taskboard/internal/broadcast"
	"github.com/yukikurage/team-taskboard/internal/dto"
	"github.com/yukikurage/team-taskboard/internal/models"
	"github.com/yukikurage/team-taskboard/internal/repository"
	"gorm.io/gorm"
)

// racingTaskRepository deletes each task right after reading it, as a
// concurrent DELETE landing between the read and the write would.
type racingTaskRepository struct {
	repository.TaskRepository
}

func (r racingTaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	task, err := r.TaskRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.TaskRepository.Delete(ctx, id); err != nil {
		return nil, err
	}
	return task, nil
}

type fakeSuggester struct {
	drafts []SuggestedTask
	err    error
}

func (f fakeSuggester) SuggestTasks(context.Context, string) ([]SuggestedTask, error) {
	return f.drafts, f.err
}

// TaskServiceTestSuite exercises the permission rules against sqlite
type TaskServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	events  *recordingEmitter
	service *TaskService
	ctx     context.Context

	alice models.User
	bob   models.User
	admin models.User
}

func (suite *TaskServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.events = &recordingEmitter{}
	suite.ctx = context.Background()

	userRepo := repository.NewUserRepository(suite.db)
	suite.service = NewTaskService(repository.NewTaskRepository(suite.db), userRepo, suite.events, nil)

	suite.alice = suite.createUser("alice", models.RoleUser)
	suite.bob = suite.createUser("bob", models.RoleUser)
	suite.admin = suite.createUser("root", models.RoleAdmin)
}

func (suite *TaskServiceTestSuite) createUser(name string, role models.Role) models.User {
	user := models.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hashedpassword",
		Role:         role,
	}
	suite.Require().NoError(suite.db.Create(&user).Error)
	return user
}

func actorOf(u models.User) models.Actor {
	return models.Actor{UserID: u.ID, Role: u.Role}
}

func strPtr(s string) *string { return &s }

func (suite *TaskServiceTestSuite) createTask(title string, creator models.User) *dto.TaskDTO {
	task, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{Title: title, Description: "details", ActorID: creator.ID})
	suite.Require().NoError(err)
	return task
}

func (suite *TaskServiceTestSuite) TestCreateTask() {
	task := suite.createTask("  Write docs ", suite.alice)

	suite.Equal("Write docs", task.Title)
	suite.Equal(models.TaskStatusTodo, task.Status)
	suite.Equal(suite.alice.ID, task.Creator.ID)
	suite.Equal("alice", task.Creator.Username)
	suite.Require().NotNil(task.LastMovedBy)
	suite.Equal(suite.alice.ID, task.LastMovedBy.ID)
	suite.NotNil(task.LastMovedAt)

	suite.Equal([]string{broadcast.EventTaskCreate}, suite.events.names())
	suite.Equal(*task, suite.events.last().Payload)
}

func (suite *TaskServiceTestSuite) TestCreateTask_TitleRequired() {
	_, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{Title: "   ", ActorID: suite.alice.ID})
	suite.ErrorIs(err, ErrTitleRequired)
	suite.Empty(suite.events.names())
}

func (suite *TaskServiceTestSuite) TestListTasks_NewestFirst() {
	first := suite.createTask("first", suite.alice)
	time.Sleep(5 * time.Millisecond)
	second := suite.createTask("second", suite.bob)

	tasks, err := suite.service.ListTasks(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 2)
	suite.Equal(second.ID, tasks[0].ID)
	suite.Equal(first.ID, tasks[1].ID)
	suite.Equal("bob", tasks[0].Creator.Username)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_StatusByAnyone() {
	task := suite.createTask("shared", suite.alice)

	updated, err := suite.service.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{Status: strPtr("Doing")}, actorOf(suite.bob))
	suite.Require().NoError(err)

	suite.Equal(models.TaskStatusDoing, updated.Status)
	suite.Require().NotNil(updated.LastMovedBy)
	suite.Equal(suite.bob.ID, updated.LastMovedBy.ID)
	suite.Equal(suite.alice.ID, updated.Creator.ID)
	suite.Equal([]string{broadcast.EventTaskCreate, broadcast.EventTaskUpdate}, suite.events.names())
}

func (suite *TaskServiceTestSuite) TestUpdateTask_SameStatusKeepsMover() {
	task := suite.createTask("shared", suite.alice)

	updated, err := suite.service.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{Status: strPtr("To Do")}, actorOf(suite.bob))
	suite.Require().NoError(err)

	suite.Require().NotNil(updated.LastMovedBy)
	suite.Equal(suite.alice.ID, updated.LastMovedBy.ID)
	suite.Equal(task.LastMovedAt.Unix(), updated.LastMovedAt.Unix())
}

func (suite *TaskServiceTestSuite) TestUpdateTask_EditRequiresCreatorOrAdmin() {
	task := suite.createTask("private", suite.alice)

	_, err := suite.service.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{Title: strPtr("hijacked")}, actorOf(suite.bob))
	suite.ErrorIs(err, ErrForbidden)

	// status alongside another field still needs edit rights
	_, err = suite.service.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{Status: strPtr("Done"), Description: strPtr("x")}, actorOf(suite.bob))
	suite.ErrorIs(err, ErrForbidden)

	stored, err := suite.service.ListTasks(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal("private", stored[0].Title)
	suite.Equal(models.TaskStatusTodo, stored[0].Status)

	updated, err := suite.service.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{Title: strPtr("renamed")}, actorOf(suite.alice))
	suite.Require().NoError(err)
	suite.Equal("renamed", updated.Title)

	updated, err = suite.service.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{Description: strPtr("by admin")}, actorOf(suite.admin))
	suite.Require().NoError(err)
	suite.Equal("by admin", updated.Description)
	suite.Equal(suite.alice.ID, updated.Creator.ID)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_EditDoesNotMoveTask() {
	task := suite.createTask("mine", suite.alice)

	updated, err := suite.service.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{Title: strPtr("still mine")}, actorOf(suite.admin))
	suite.Require().NoError(err)
	suite.Require().NotNil(updated.LastMovedBy)
	suite.Equal(suite.alice.ID, updated.LastMovedBy.ID)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_Validation() {
	task := suite.createTask("mine", suite.alice)

	_, err := suite.service.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{Status: strPtr("Blocked")}, actorOf(suite.alice))
	suite.ErrorIs(err, ErrInvalidStatus)

	_, err = suite.service.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{}, actorOf(suite.alice))
	suite.ErrorIs(err, ErrNoUpdatableFields)

	_, err = suite.service.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{Title: strPtr("  ")}, actorOf(suite.alice))
	suite.ErrorIs(err, ErrTitleRequired)

	_, err = suite.service.UpdateTask(suite.ctx, "not-a-uuid", UpdateTaskInput{Title: strPtr("x")}, actorOf(suite.alice))
	suite.ErrorIs(err, ErrInvalidTaskID)

	_, err = suite.service.UpdateTask(suite.ctx, uuid.NewString(), UpdateTaskInput{Title: strPtr("x")}, actorOf(suite.alice))
	suite.ErrorIs(err, ErrTaskNotFound)

	suite.Equal([]string{broadcast.EventTaskCreate}, suite.events.names())
}

func (suite *TaskServiceTestSuite) TestUpdateTask_DeletedConcurrently() {
	task := suite.createTask("racing", suite.alice)

	racing := NewTaskService(
		racingTaskRepository{repository.NewTaskRepository(suite.db)},
		repository.NewUserRepository(suite.db),
		suite.events,
		nil,
	)

	_, err := racing.UpdateTask(suite.ctx, task.ID, UpdateTaskInput{Status: strPtr("Doing")}, actorOf(suite.bob))
	suite.ErrorIs(err, ErrTaskNotFound)

	tasks, err := suite.service.ListTasks(suite.ctx)
	suite.Require().NoError(err)
	suite.Empty(tasks)
	suite.Equal([]string{broadcast.EventTaskCreate}, suite.events.names())
}

func (suite *TaskServiceTestSuite) TestDeleteTask() {
	task := suite.createTask("doomed", suite.alice)

	err := suite.service.DeleteTask(suite.ctx, task.ID, actorOf(suite.bob))
	suite.ErrorIs(err, ErrForbidden)

	suite.Require().NoError(suite.service.DeleteTask(suite.ctx, task.ID, actorOf(suite.alice)))
	suite.Equal(broadcast.EventTaskDelete, suite.events.last().Name)
	suite.Equal(dto.TaskDeletedDTO{ID: task.ID}, suite.events.last().Payload)

	err = suite.service.DeleteTask(suite.ctx, task.ID, actorOf(suite.alice))
	suite.ErrorIs(err, ErrTaskNotFound)

	tasks, err := suite.service.ListTasks(suite.ctx)
	suite.Require().NoError(err)
	suite.Empty(tasks)
}

func (suite *TaskServiceTestSuite) TestDeleteTask_Admin() {
	task := suite.createTask("doomed", suite.bob)
	suite.Require().NoError(suite.service.DeleteTask(suite.ctx, task.ID, actorOf(suite.admin)))
}

func (suite *TaskServiceTestSuite) TestListTasks_DanglingUser() {
	task := suite.createTask("orphan", suite.alice)
	suite.Require().NoError(suite.db.Exec("DELETE FROM users WHERE id = ?", suite.alice.ID).Error)

	_, err := suite.service.ListTasks(suite.ctx)
	suite.ErrorIs(err, ErrDanglingUserReference)
	suite.NotEmpty(task.ID)
}

func (suite *TaskServiceTestSuite) TestSuggestTasks() {
	_, err := suite.service.SuggestTasks(suite.ctx, "plan the launch")
	suite.ErrorIs(err, ErrAIServiceNotConfigured)

	suite.service.suggester = fakeSuggester{drafts: []SuggestedTask{
		{Title: " Book venue ", Description: "for Friday "},
		{Title: "  "},
		{Title: "Send invites"},
	}}

	_, err = suite.service.SuggestTasks(suite.ctx, "   ")
	suite.ErrorIs(err, ErrTextRequired)

	drafts, err := suite.service.SuggestTasks(suite.ctx, "plan the launch")
	suite.Require().NoError(err)
	suite.Equal([]dto.SuggestedTaskDTO{
		{Title: "Book venue", Description: "for Friday"},
		{Title: "Send invites"},
	}, drafts)

	suite.service.suggester = fakeSuggester{}
	_, err = suite.service.SuggestTasks(suite.ctx, "nothing here")
	suite.ErrorIs(err, ErrAINoTasksGenerated)

	suite.service.suggester = fakeSuggester{err: errors.New("upstream down")}
	_, err = suite.service.SuggestTasks(suite.ctx, "plan the launch")
	suite.Error(err)

	suite.Empty(suite.events.names())
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
