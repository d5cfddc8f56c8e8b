package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Project struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProjectID    string             `json:"projectId" bson:"projectId" validate:"required"`
	Name         string             `json:"name" bson:"name" validate:"required,name"`
	Description  string             `json:"description" bson:"description" validate:"required,description"`
	StartDate    Timestamp          `json:"startDate" bson:"startDate"`
	EndDate      *Timestamp         `json:"endDate,omitempty" bson:"endDate,omitempty"`
	DateCreated  Timestamp          `json:"dateCreated" bson:"dateCreated"`
	DateModified *Timestamp         `json:"dateModified,omitempty" bson:"dateModified,omitempty"`
}

// AddProjectRequest is the body of POST /api/projects.
type AddProjectRequest struct {
	Name        *string `json:"name" validate:"required,name"`
	Description *string `json:"description" validate:"required,description"`
	StartDate   *string `json:"startDate" validate:"omitempty,timestamp"`
	EndDate     *string `json:"endDate" validate:"omitempty,timestamp"`
	DateCreated *string `json:"dateCreated" validate:"omitempty,timestamp"`
}

// Project builds the draft handed to the store. Server assigned fields are
// left zero.
func (r AddProjectRequest) Project() (Project, error) {
	project := Project{
		Name:        deref(r.Name),
		Description: deref(r.Description),
	}
	var err error
	if r.StartDate != nil {
		if project.StartDate, err = ParseTimestamp(*r.StartDate); err != nil {
			return Project{}, err
		}
	}
	if project.EndDate, err = parseOptional(r.EndDate); err != nil {
		return Project{}, err
	}
	if r.DateCreated != nil {
		if project.DateCreated, err = ParseTimestamp(*r.DateCreated); err != nil {
			return Project{}, err
		}
	}
	return project, nil
}

// UpdateProjectRequest is the body of PATCH /api/projects/{id}.
type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,name"`
	Description *string `json:"description" validate:"omitempty,description"`
	StartDate   *string `json:"startDate" validate:"omitempty,timestamp"`
	EndDate     *string `json:"endDate" validate:"omitempty,timestamp"`
}

func (r UpdateProjectRequest) Patch() (ProjectPatch, error) {
	patch := ProjectPatch{Name: r.Name, Description: r.Description}
	var err error
	if patch.StartDate, err = parseOptional(r.StartDate); err != nil {
		return ProjectPatch{}, err
	}
	if patch.EndDate, err = parseOptional(r.EndDate); err != nil {
		return ProjectPatch{}, err
	}
	return patch, nil
}

// ProjectPatch holds the fields sent in a partial update. Nil means keep.
type ProjectPatch struct {
	Name        *string
	Description *string
	StartDate   *Timestamp
	EndDate     *Timestamp
}

func (p ProjectPatch) Apply(project *Project) {
	if p.Name != nil {
		project.Name = *p.Name
	}
	if p.Description != nil {
		project.Description = *p.Description
	}
	if p.StartDate != nil {
		project.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		project.EndDate = p.EndDate
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseOptional(s *string) (*Timestamp, error) {
	if s == nil {
		return nil, nil
	}
	ts, err := ParseTimestamp(*s)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
