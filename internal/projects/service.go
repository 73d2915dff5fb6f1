// Package projects holds the project business rules: ownership, partial
// updates and the admin surface.
package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayush/project-tracker/internal/apierr"
	"github.com/ayush/project-tracker/internal/auth"
	"github.com/ayush/project-tracker/internal/models"
	"github.com/ayush/project-tracker/internal/validate"
)

// ProjectStore defines the interface for project persistence.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) (*models.Project, error)
	FindProjectByID(ctx context.Context, id string) (*models.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Project, int, error)
	ListAllProjectsWithOwner(ctx context.Context, limit, offset int) ([]models.ProjectWithOwner, int, error)
	UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// Service implements project operations on behalf of an authenticated principal.
type Service struct {
	store ProjectStore
}

func NewService(store ProjectStore) *Service {
	return &Service{store: store}
}

// Create stores a project owned by the caller. Status defaults to todo.
func (s *Service) Create(ctx context.Context, p *auth.Principal, req models.CreateProjectRequest) (*models.Project, error) {
	status := models.StatusTodo
	if req.Status != nil {
		status = *req.Status
	}

	created, err := s.store.CreateProject(ctx, &models.Project{
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		OwnerID:     p.UserID,
	})
	if err != nil {
		// The owner vanished between token issue and now.
		if errors.Is(err, models.ErrNotFound) {
			return nil, apierr.NotFound("User not found")
		}
		return nil, fmt.Errorf("create project: %w", err)
	}
	return created, nil
}

// ListOwned pages through the caller's projects, newest first.
func (s *Service) ListOwned(ctx context.Context, p *auth.Principal, page validate.Pagination) (*models.Page[models.Project], error) {
	items, total, err := s.store.ListProjectsByOwner(ctx, p.UserID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return &models.Page[models.Project]{Items: nonNil(items), Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// Get returns a project the caller may see.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id string) (*models.Project, error) {
	return s.authorize(ctx, p, id)
}

// Update applies only the supplied fields.
func (s *Service) Update(ctx context.Context, p *auth.Principal, id string, req models.UpdateProjectRequest) (*models.Project, error) {
	if _, err := s.authorize(ctx, p, id); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateProject(ctx, id, req.Patch())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, projectNotFound()
		}
		return nil, fmt.Errorf("update project: %w", err)
	}
	return updated, nil
}

// Delete removes a project the caller may modify.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if _, err := s.authorize(ctx, p, id); err != nil {
		return err
	}
	return s.remove(ctx, id)
}

// AdminList pages through every project with a summary of its owner.
func (s *Service) AdminList(ctx context.Context, page validate.Pagination) (*models.Page[models.ProjectWithOwner], error) {
	items, total, err := s.store.ListAllProjectsWithOwner(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list all projects: %w", err)
	}
	return &models.Page[models.ProjectWithOwner]{Items: nonNil(items), Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// AdminDelete removes any project. Only existence is checked.
func (s *Service) AdminDelete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	return s.remove(ctx, id)
}

// authorize loads the project and checks the caller owns it. Existence is
// checked before ownership, so non-owners learn that the id exists.
func (s *Service) authorize(ctx context.Context, p *auth.Principal, id string) (*models.Project, error) {
	project, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != p.UserID && !p.IsAdmin() {
		return nil, apierr.Forbidden("You do not have access to this project")
	}
	return project, nil
}

func (s *Service) find(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.store.FindProjectByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, projectNotFound()
		}
		return nil, fmt.Errorf("find project: %w", err)
	}
	return project, nil
}

func (s *Service) remove(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return projectNotFound()
		}
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func projectNotFound() *apierr.Error {
	return apierr.NotFound("Project not found")
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
