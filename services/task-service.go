package services

import (
	"context"
	"fmt"

	"github.com/seking31/tms-server/models"
	"github.com/seking31/tms-server/validation"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type TaskService struct {
	tasksCollection *mongo.Collection
	breaker         *gobreaker.CircuitBreaker
	validator       *validation.Validator
}

func NewTaskService(tasksCollection *mongo.Collection, breaker *gobreaker.CircuitBreaker, validator *validation.Validator) *TaskService {
	return &TaskService{
		tasksCollection: tasksCollection,
		breaker:         breaker,
		validator:       validator,
	}
}

func (s *TaskService) FindAll(ctx context.Context) ([]models.Task, error) {
	tasks, err := findMany[models.Task](ctx, s.breaker, s.tasksCollection, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) FindByID(ctx context.Context, id string) (*models.Task, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	task, err := findOne[models.Task](ctx, s.breaker, s.tasksCollection, oid)
	if err != nil {
		return nil, fmt.Errorf("error fetching task %s: %w", id, err)
	}
	return task, nil
}

// Search matches term against title, description, status and priority.
func (s *TaskService) Search(ctx context.Context, term string) ([]models.Task, error) {
	filter, err := searchFilter(term, "title", "description", "status", "priority")
	if err != nil {
		return nil, err
	}
	tasks, err := findMany[models.Task](ctx, s.breaker, s.tasksCollection, filter)
	if err != nil {
		return nil, fmt.Errorf("error searching tasks: %w", err)
	}
	return tasks, nil
}

// Create stores a new task. Titles are unique across all tasks.
func (s *TaskService) Create(ctx context.Context, draft models.Task) (*models.Task, error) {
	task := draft
	task.ID = primitive.NewObjectID()
	task.DateModified = nil
	if task.DateCreated.IsZero() {
		task.DateCreated = models.Now()
	}
	if err := s.validator.Struct(task); err != nil {
		return nil, err
	}

	_, err := guard(s.breaker, func() (*mongo.InsertOneResult, error) {
		return s.tasksCollection.InsertOne(ctx, task)
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, duplicateTitle(task.Title)
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return &task, nil
}

// Update merges patch into the stored task and stamps dateModified.
func (s *TaskService) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	task, err := findOne[models.Task](ctx, s.breaker, s.tasksCollection, oid)
	if err != nil {
		return nil, fmt.Errorf("error fetching task %s: %w", id, err)
	}

	patch.Apply(task)
	task.DateModified = models.Now().Ptr()
	if err := s.validator.Struct(task); err != nil {
		return nil, err
	}

	if err := replaceOne(ctx, s.breaker, s.tasksCollection, oid, task); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, duplicateTitle(task.Title)
		}
		return nil, fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	if err := deleteOne(ctx, s.breaker, s.tasksCollection, oid); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

func duplicateTitle(title string) error {
	return validation.Problem("data/title must be unique, a task titled '%s' already exists", title)
}
