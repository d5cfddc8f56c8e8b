package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Task struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title        string             `json:"title" bson:"title" validate:"required,name"`
	Description  string             `json:"description" bson:"description" validate:"required,description"`
	Status       TaskStatus         `json:"status" bson:"status" validate:"required,taskstatus"`
	Priority     TaskPriority       `json:"priority" bson:"priority" validate:"required,taskpriority"`
	DueDate      *Timestamp         `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	ProjectID    string             `json:"projectId" bson:"projectId" validate:"required"`
	DateCreated  Timestamp          `json:"dateCreated" bson:"dateCreated"`
	DateModified *Timestamp         `json:"dateModified,omitempty" bson:"dateModified,omitempty"`
}

// AddTaskRequest is the body of POST /api/tasks/{projectId}. The project
// reference comes from the path, not the body.
type AddTaskRequest struct {
	Title       *string `json:"title" validate:"required,name"`
	Description *string `json:"description" validate:"required,description"`
	Status      *string `json:"status" validate:"required,taskstatus"`
	Priority    *string `json:"priority" validate:"required,taskpriority"`
	DueDate     *string `json:"dueDate" validate:"omitempty,timestamp"`
	DateCreated *string `json:"dateCreated" validate:"omitempty,timestamp"`
}

func (r AddTaskRequest) Task(projectID string) (Task, error) {
	task := Task{
		Title:       deref(r.Title),
		Description: deref(r.Description),
		Status:      TaskStatus(deref(r.Status)),
		Priority:    TaskPriority(deref(r.Priority)),
		ProjectID:   projectID,
	}
	var err error
	if task.DueDate, err = parseOptional(r.DueDate); err != nil {
		return Task{}, err
	}
	if r.DateCreated != nil {
		if task.DateCreated, err = ParseTimestamp(*r.DateCreated); err != nil {
			return Task{}, err
		}
	}
	return task, nil
}

// UpdateTaskRequest is the body of PATCH /api/tasks/{id}. Every field is
// optional, the stored task is merged with whatever is sent.
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,name"`
	Description *string `json:"description" validate:"omitempty,description"`
	Status      *string `json:"status" validate:"omitempty,taskstatus"`
	Priority    *string `json:"priority" validate:"omitempty,taskpriority"`
	DueDate     *string `json:"dueDate" validate:"omitempty,timestamp"`
}

func (r UpdateTaskRequest) Patch() (TaskPatch, error) {
	patch := TaskPatch{Title: r.Title, Description: r.Description}
	if r.Status != nil {
		status := TaskStatus(*r.Status)
		patch.Status = &status
	}
	if r.Priority != nil {
		priority := TaskPriority(*r.Priority)
		patch.Priority = &priority
	}
	var err error
	if patch.DueDate, err = parseOptional(r.DueDate); err != nil {
		return TaskPatch{}, err
	}
	return patch, nil
}

type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	DueDate     *Timestamp
}

func (p TaskPatch) Apply(task *Task) {
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.DueDate != nil {
		task.DueDate = p.DueDate
	}
}
