package projects

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/project-tracker/internal/apierr"
	"github.com/ayush/project-tracker/internal/auth"
	"github.com/ayush/project-tracker/internal/httpx"
	"github.com/ayush/project-tracker/internal/logging"
	"github.com/ayush/project-tracker/internal/models"
	"github.com/ayush/project-tracker/internal/validate"
)

// Handler holds project HTTP handlers.
type Handler struct {
	svc *Service
	log logging.Logger
}

func NewHandler(svc *Service, log logging.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Create stores a new project for the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req models.CreateProjectRequest
	if err := validate.Body(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	project, err := h.svc.Create(r.Context(), p, req)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.Created(w, project)
}

// List returns a page of the caller's projects.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	page, err := validate.Page(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	result, err := h.svc.ListOwned(r.Context(), p, page)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.OK(w, result)
}

// Get returns a single project.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	project, err := h.svc.Get(r.Context(), p, id)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.OK(w, project)
}

// Update applies a partial update.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	var req models.UpdateProjectRequest
	if err := validate.Body(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	project, err := h.svc.Update(r.Context(), p, id, req)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.OK(w, project)
}

// Delete removes one of the caller's projects.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), p, id); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.OK(w, httpx.Message{Message: "Project deleted"})
}

// AdminList returns a page across all owners.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	page, err := validate.Page(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	result, err := h.svc.AdminList(r.Context(), page)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.OK(w, result)
}

// AdminDelete removes any project regardless of owner.
func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	id, err := validate.ID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	if err := h.svc.AdminDelete(r.Context(), id); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if p, ok := auth.FromContext(r.Context()); ok {
		h.log.Info(r.Context(), "admin deleted project", "project_id", id, "admin_id", p.UserID)
	}
	httpx.OK(w, httpx.Message{Message: "Project deleted"})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Fail(w, apierr.Unauthorized("Invalid or missing authentication token"))
		return nil, false
	}
	return p, true
}

func (h *Handler) principalAndID(w http.ResponseWriter, r *http.Request) (*auth.Principal, string, bool) {
	p, ok := h.principal(w, r)
	if !ok {
		return nil, "", false
	}
	id, err := validate.ID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return nil, "", false
	}
	return p, id, true
}
