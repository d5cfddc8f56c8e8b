package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/seking31/tms-server/logging"
	"github.com/seking31/tms-server/models"
	"github.com/seking31/tms-server/validation"
)

// maxBodyBytes caps request bodies on write endpoints.
const maxBodyBytes = 1 << 20

// ProjectStore is the persistence the project routes need.
// *services.ProjectService implements it.
type ProjectStore interface {
	FindAll(ctx context.Context) ([]models.Project, error)
	FindByID(ctx context.Context, id string) (*models.Project, error)
	Search(ctx context.Context, term string) ([]models.Project, error)
	Create(ctx context.Context, draft models.Project) (*models.Project, error)
	Update(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error)
	Delete(ctx context.Context, id string) error
}

// TaskStore is the persistence the task routes need.
// *services.TaskService implements it.
type TaskStore interface {
	FindAll(ctx context.Context) ([]models.Task, error)
	FindByID(ctx context.Context, id string) (*models.Task, error)
	Search(ctx context.Context, term string) ([]models.Task, error)
	Create(ctx context.Context, draft models.Task) (*models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id string) error
}

type messageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

type createProjectResponse struct {
	Message   string `json:"message"`
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
}

type createTaskResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"taskId"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Logger.Errorf("Event ID: RESPONSE_ENCODE_FAILED, Description: %v", err)
	}
}

// readBody reads a write endpoint's payload, bounded by maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, validation.Problem("Request body too large")
		}
		return nil, validation.Problem("data must be object")
	}
	return body, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
