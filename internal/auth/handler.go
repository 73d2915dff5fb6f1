package auth

import (
	"net/http"

	"github.com/ayush/project-tracker/internal/apierr"
	"github.com/ayush/project-tracker/internal/httpx"
	"github.com/ayush/project-tracker/internal/logging"
	"github.com/ayush/project-tracker/internal/models"
	"github.com/ayush/project-tracker/internal/validate"
)

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc *Service
	log logging.Logger
}

func NewHandler(svc *Service, log logging.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register creates a new user and returns it with a token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := validate.Body(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	resp, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	h.log.Info(r.Context(), "user registered", "user_id", resp.User.ID)
	httpx.Created(w, resp)
}

// Login authenticates a user and returns a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := validate.Body(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	resp, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.OK(w, resp)
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := FromContext(r.Context())
	if !ok {
		httpx.Fail(w, apierr.Unauthorized("Authentication required"))
		return
	}

	user, err := h.svc.Me(r.Context(), p.UserID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.OK(w, user)
}
