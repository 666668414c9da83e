package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/repositories"
)

type TaskInput struct {
	Title       *string `json:"title" validate:"required,notblank,max=90"`
	Description *string `json:"description" validate:"required,notblank,max=255"`
	AssignedTo  *string `json:"assigned_to" validate:"required,notblank,uuid"`
}

type taskPatch struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=90"`
	Description *string `json:"description" validate:"omitnil,notblank,max=255"`
	AssignedTo  *string `json:"assigned_to" validate:"omitnil,notblank,uuid"`
}

type TaskService interface {
	List(ctx context.Context) ([]models.Task, error)
	Get(ctx context.Context, id string) (*models.Task, error)
	Create(ctx context.Context, user *models.User, in TaskInput) (*models.Task, error)
	Update(ctx context.Context, user *models.User, id string, in TaskInput, partial bool) (*models.Task, error)
	Delete(ctx context.Context, user *models.User, id string) error
}

// CanWrite reports whether user may modify or delete task. Only the creator can.
func CanWrite(user *models.User, task *models.Task) bool {
	return user != nil && task != nil && task.IsCreatedBy(user.ID)
}

type TaskServiceImpl struct {
	tasks repositories.TaskRepository
	users repositories.UserRepository
}

func NewTaskService(tasks repositories.TaskRepository, users repositories.UserRepository) *TaskServiceImpl {
	return &TaskServiceImpl{tasks: tasks, users: users}
}

func (s *TaskServiceImpl) List(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskServiceImpl) Get(ctx context.Context, id string) (*models.Task, error) {
	taskID, err := uuid.FromString(id)
	if err != nil {
		return nil, apierrors.ErrNotFound
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apierrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}

func (s *TaskServiceImpl) Create(ctx context.Context, user *models.User, in TaskInput) (*models.Task, error) {
	if user == nil {
		return nil, apierrors.ErrNotAuthenticated
	}

	in = in.trimmed()
	ve, err := checkFields(in)
	if err != nil {
		return nil, err
	}
	assignee, err := s.checkReferences(ctx, ve, in, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if ve.HasErrors() {
		return nil, ve
	}

	task := &models.Task{
		Title:        *in.Title,
		Description:  *in.Description,
		CreatedByID:  user.ID,
		AssignedToID: assignee,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierrors.FieldError("title", apierrors.MsgTitleTaken)
		}
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (s *TaskServiceImpl) Update(ctx context.Context, user *models.User, id string, in TaskInput, partial bool) (*models.Task, error) {
	task, err := s.writable(ctx, user, id)
	if err != nil {
		return nil, err
	}

	in = in.trimmed()
	var ve *apierrors.ValidationError
	if partial {
		ve, err = checkFields(taskPatch(in))
	} else {
		ve, err = checkFields(in)
	}
	if err != nil {
		return nil, err
	}
	assignee, err := s.checkReferences(ctx, ve, in, task.ID)
	if err != nil {
		return nil, err
	}
	if ve.HasErrors() {
		return nil, ve
	}

	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.AssignedTo != nil {
		task.AssignedToID = assignee
	}

	if err := s.tasks.Save(ctx, task); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierrors.FieldError("title", apierrors.MsgTitleTaken)
		}
		return nil, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

func (s *TaskServiceImpl) Delete(ctx context.Context, user *models.User, id string) error {
	task, err := s.writable(ctx, user, id)
	if err != nil {
		return err
	}

	err = s.tasks.Delete(ctx, task.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return apierrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *TaskServiceImpl) writable(ctx context.Context, user *models.User, id string) (*models.Task, error) {
	if user == nil {
		return nil, apierrors.ErrNotAuthenticated
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanWrite(user, task) {
		return nil, apierrors.ErrPermissionDenied
	}
	return task, nil
}

// checkReferences adds uniqueness and foreign key errors for fields that
// passed format validation, and returns the parsed assignee id.
func (s *TaskServiceImpl) checkReferences(ctx context.Context, ve *apierrors.ValidationError, in TaskInput, self uuid.UUID) (uuid.UUID, error) {
	if in.Title != nil && !invalid(ve, "title") {
		taken, err := s.tasks.ExistsByTitle(ctx, *in.Title, self)
		if err != nil {
			return uuid.Nil, fmt.Errorf("check title: %w", err)
		}
		if taken {
			ve.Add("title", apierrors.MsgTitleTaken)
		}
	}

	if in.AssignedTo == nil || invalid(ve, "assigned_to") {
		return uuid.Nil, nil
	}

	assignee, err := uuid.FromString(*in.AssignedTo)
	if err != nil {
		ve.Add("assigned_to", apierrors.MsgInvalidUUID)
		return uuid.Nil, nil
	}

	_, err = s.users.FindByID(ctx, assignee)
	if errors.Is(err, repositories.ErrNotFound) {
		ve.Add("assigned_to", apierrors.DoesNotExistMessage(*in.AssignedTo))
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("find assignee: %w", err)
	}
	return assignee, nil
}

func (in TaskInput) trimmed() TaskInput {
	return TaskInput{
		Title:       trimmed(in.Title),
		Description: trimmed(in.Description),
		AssignedTo:  trimmed(in.AssignedTo),
	}
}
