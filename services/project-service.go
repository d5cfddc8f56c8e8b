package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/seking31/tms-server/logging"
	"github.com/seking31/tms-server/models"
	"github.com/seking31/tms-server/validation"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// projectIDAttempts bounds how often Create draws a new external id after a
// collision on the unique projectId index.
const projectIDAttempts = 3

type ProjectService struct {
	ProjectsCollection *mongo.Collection
	breaker            *gobreaker.CircuitBreaker
	validator          *validation.Validator
	newProjectID       func() string
}

// NewProjectService initializes a ProjectService over the projects collection.
func NewProjectService(projectsCollection *mongo.Collection, breaker *gobreaker.CircuitBreaker, validator *validation.Validator) *ProjectService {
	return &ProjectService{
		ProjectsCollection: projectsCollection,
		breaker:            breaker,
		validator:          validator,
		newProjectID:       NewProjectID,
	}
}

// NewProjectID returns a short, human facing project identifier.
func NewProjectID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// FindAll returns every project in store order.
func (s *ProjectService) FindAll(ctx context.Context) ([]models.Project, error) {
	projects, err := findMany[models.Project](ctx, s.breaker, s.ProjectsCollection, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("unsuccessful procurement of projects: %w", err)
	}
	return projects, nil
}

func (s *ProjectService) FindByID(ctx context.Context, id string) (*models.Project, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	project, err := findOne[models.Project](ctx, s.breaker, s.ProjectsCollection, oid)
	if err != nil {
		return nil, fmt.Errorf("error fetching project %s: %w", id, err)
	}
	return project, nil
}

// Search matches term against project name and description.
func (s *ProjectService) Search(ctx context.Context, term string) ([]models.Project, error) {
	filter, err := searchFilter(term, "name", "description")
	if err != nil {
		return nil, err
	}
	projects, err := findMany[models.Project](ctx, s.breaker, s.ProjectsCollection, filter)
	if err != nil {
		return nil, fmt.Errorf("error searching projects: %w", err)
	}
	return projects, nil
}

// Create stores a new project. It assigns the store id, the external
// projectId, dateCreated and a default startDate.
func (s *ProjectService) Create(ctx context.Context, draft models.Project) (*models.Project, error) {
	project := draft
	project.ID = primitive.NewObjectID()
	project.DateModified = nil
	if project.DateCreated.IsZero() {
		project.DateCreated = models.Now()
	}
	if project.StartDate.IsZero() {
		project.StartDate = project.DateCreated
	}

	for attempt := 1; ; attempt++ {
		project.ProjectID = s.newProjectID()
		if err := s.validator.Struct(project); err != nil {
			return nil, err
		}

		_, err := guard(s.breaker, func() (*mongo.InsertOneResult, error) {
			return s.ProjectsCollection.InsertOne(ctx, project)
		})
		if err == nil {
			return &project, nil
		}
		if !mongo.IsDuplicateKeyError(err) || attempt == projectIDAttempts {
			return nil, fmt.Errorf("failed to create project: %w", err)
		}
		logging.Logger.Warnf("Event ID: PROJECT_ID_COLLISION, Description: projectId %s already taken, retrying", project.ProjectID)
	}
}

// Update merges patch into the stored project and stamps dateModified.
func (s *ProjectService) Update(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	project, err := findOne[models.Project](ctx, s.breaker, s.ProjectsCollection, oid)
	if err != nil {
		return nil, fmt.Errorf("error fetching project %s: %w", id, err)
	}

	patch.Apply(project)
	project.DateModified = models.Now().Ptr()
	if err := s.validator.Struct(project); err != nil {
		return nil, err
	}

	if err := replaceOne(ctx, s.breaker, s.ProjectsCollection, oid, project); err != nil {
		return nil, fmt.Errorf("failed to update project %s: %w", id, err)
	}
	return project, nil
}

// Delete removes a project. Tasks referencing it are left in place.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	if err := deleteOne(ctx, s.breaker, s.ProjectsCollection, oid); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}
