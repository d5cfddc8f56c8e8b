package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/seking31/tms-server/logging"
	"github.com/seking31/tms-server/services"
	"github.com/seking31/tms-server/validation"
)

type TaskHandler struct {
	store   TaskStore
	schemas *validation.Schemas
}

func NewTaskHandler(store TaskStore, schemas *validation.Schemas) *TaskHandler {
	return &TaskHandler{store: store, schemas: schemas}
}

// ListTasks - GET /api/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.FindAll(r.Context())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// SearchTasks - GET /api/tasks/search?term=
func (h *TaskHandler) SearchTasks(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if isBlank(term) {
		respondError(w, r, services.ErrMissingSearchTerm, "")
		return
	}

	tasks, err := h.store.Search(r.Context(), term)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetTaskByID - GET /api/tasks/{id}
func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	task, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CreateTask - POST /api/tasks/{projectId}
//
// The projectId path segment is stored as given. The project does not have
// to exist.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	req, err := h.schemas.AddTask.Decode(body)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	draft, err := req.Task(projectID)
	if err != nil {
		respondError(w, r, validation.Problem("%v", err), "")
		return
	}

	task, err := h.store.Create(r.Context(), draft)
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	logging.Logger.Infof("Event ID: TASK_CREATED, Description: Task %s created in project %s", task.ID.Hex(), task.ProjectID)
	writeJSON(w, http.StatusCreated, createTaskResponse{
		Message: "Task created successfully",
		TaskID:  task.ID.Hex(),
	})
}

// UpdateTask - PATCH /api/tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	notFound := fmt.Sprintf("Task with ID %s not found", id)

	if _, err := h.store.FindByID(r.Context(), id); err != nil {
		respondError(w, r, err, notFound)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, notFound)
		return
	}
	req, err := h.schemas.UpdateTask.Decode(body)
	if err != nil {
		respondError(w, r, err, notFound)
		return
	}
	patch, err := req.Patch()
	if err != nil {
		respondError(w, r, validation.Problem("%v", err), notFound)
		return
	}

	task, err := h.store.Update(r.Context(), id, patch)
	if err != nil {
		respondError(w, r, err, notFound)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Task updated successfully", ID: task.ID.Hex()})
}

// DeleteTask - DELETE /api/tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.Delete(r.Context(), id); err != nil {
		respondError(w, r, err, fmt.Sprintf("Task with ID %s not found", id))
		return
	}

	logging.Logger.Infof("Event ID: TASK_DELETED, Description: Task %s deleted", id)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Task deleted successfully", ID: id})
}
