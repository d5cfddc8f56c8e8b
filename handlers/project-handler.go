package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/seking31/tms-server/logging"
	"github.com/seking31/tms-server/services"
	"github.com/seking31/tms-server/validation"
)

type ProjectHandler struct {
	store   ProjectStore
	schemas *validation.Schemas
}

func NewProjectHandler(store ProjectStore, schemas *validation.Schemas) *ProjectHandler {
	return &ProjectHandler{store: store, schemas: schemas}
}

// ListProjects - GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.FindAll(r.Context())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// SearchProjects - GET /api/projects/search?term=
func (h *ProjectHandler) SearchProjects(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if isBlank(term) {
		respondError(w, r, services.ErrMissingSearchTerm, "")
		return
	}

	projects, err := h.store.Search(r.Context(), term)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetProjectByID - GET /api/projects/{id}
func (h *ProjectHandler) GetProjectByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	project, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// CreateProject - POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	req, err := h.schemas.AddProject.Decode(body)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	draft, err := req.Project()
	if err != nil {
		respondError(w, r, validation.Problem("%v", err), "")
		return
	}

	project, err := h.store.Create(r.Context(), draft)
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	logging.Logger.Infof("Event ID: PROJECT_CREATED, Description: Project %s (%s) created", project.ID.Hex(), project.ProjectID)
	writeJSON(w, http.StatusCreated, createProjectResponse{
		Message:   "Project created successfully",
		ID:        project.ID.Hex(),
		ProjectID: project.ProjectID,
	})
}

// UpdateProject - PATCH /api/projects/{id}
//
// The target must exist before the payload is looked at: an unknown id is a
// 404 whatever the body contains.
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	notFound := fmt.Sprintf("Project with ID %s not found", id)

	if _, err := h.store.FindByID(r.Context(), id); err != nil {
		respondError(w, r, err, notFound)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, notFound)
		return
	}
	req, err := h.schemas.UpdateProject.Decode(body)
	if err != nil {
		respondError(w, r, err, notFound)
		return
	}
	patch, err := req.Patch()
	if err != nil {
		respondError(w, r, validation.Problem("%v", err), notFound)
		return
	}

	project, err := h.store.Update(r.Context(), id, patch)
	if err != nil {
		respondError(w, r, err, notFound)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Project updated successfully", ID: project.ID.Hex()})
}

// DeleteProject - DELETE /api/projects/{id}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.Delete(r.Context(), id); err != nil {
		respondError(w, r, err, fmt.Sprintf("Project with ID %s not found", id))
		return
	}

	logging.Logger.Infof("Event ID: PROJECT_DELETED, Description: Project %s deleted", id)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Project deleted successfully", ID: id})
}
