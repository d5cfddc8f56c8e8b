package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers every API route. Search routes are registered before
// the {id} routes so "search" is never taken for an id.
func NewRouter(projects *ProjectHandler, tasks *TaskHandler, health *HealthHandler) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(routeNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.HandleFunc("/health", health.Check).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/projects", projects.ListProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects/search", projects.SearchProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects", projects.CreateProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", projects.GetProjectByID).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", projects.UpdateProject).Methods(http.MethodPatch)
	api.HandleFunc("/projects/{id}", projects.DeleteProject).Methods(http.MethodDelete)

	api.HandleFunc("/tasks", tasks.ListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/search", tasks.SearchTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{projectId}", tasks.CreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", tasks.GetTaskByID).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", tasks.UpdateTask).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id}", tasks.DeleteTask).Methods(http.MethodDelete)

	return r
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, messageResponse{Message: "Route not found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, messageResponse{Message: "Method not allowed"})
}
