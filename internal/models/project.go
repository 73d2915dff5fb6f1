package models

import (
	"strings"
	"time"
)

// Status is the workflow state of a project.
type Status string

const (
	StatusTodo  Status = "todo"
	StatusDoing Status = "doing"
	StatusDone  Status = "done"
)

// Project is a single owned project.
type Project struct {
	ID          string    `json:"id"          bson:"_id"`
	Title       string    `json:"title"       bson:"title"`
	Description *string   `json:"description" bson:"description"`
	Status      Status    `json:"status"      bson:"status"`
	OwnerID     string    `json:"owner_id"    bson:"owner_id"`
	CreatedAt   time.Time `json:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"  bson:"updated_at"`
}

// ProjectWithOwner is a project annotated with its owner, used by admin listings.
type ProjectWithOwner struct {
	Project `bson:",inline"`
	Owner   OwnerSummary `json:"owner" bson:"owner"`
}

// ProjectPatch carries a partial update. Nil fields are left unchanged; an
// empty Description clears it.
type ProjectPatch struct {
	Title       *string
	Description *string
	Status      *Status
}

// Empty reports whether the patch changes nothing.
func (p ProjectPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil
}

// Apply merges the supplied fields into pr.
func (p ProjectPatch) Apply(pr *Project) {
	if p.Title != nil {
		pr.Title = *p.Title
	}
	if p.Description != nil {
		if *p.Description == "" {
			pr.Description = nil
		} else {
			d := *p.Description
			pr.Description = &d
		}
	}
	if p.Status != nil {
		pr.Status = *p.Status
	}
}

// CreateProjectRequest is the JSON body for POST /projects.
type CreateProjectRequest struct {
	Title       string  `json:"title"       validate:"required,min=3,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Status      *Status `json:"status"      validate:"omitnil,oneof=todo doing done"`
}

// UpdateProjectRequest is the JSON body for PATCH /projects/{id}.
// A JSON null is indistinguishable from an omitted field; send "" to clear
// the description.
type UpdateProjectRequest struct {
	Title       *string `json:"title"       validate:"omitnil,min=3,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Status      *Status `json:"status"      validate:"omitnil,oneof=todo doing done"`
}

// Patch converts the request into a store-level patch.
func (r UpdateProjectRequest) Patch() ProjectPatch {
	return ProjectPatch{Title: r.Title, Description: r.Description, Status: r.Status}
}

// Page is a window of results plus the total number of matching rows.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (r *CreateProjectRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = trimPtr(r.Description)
	if r.Description != nil && *r.Description == "" {
		r.Description = nil
	}
}

func (r *UpdateProjectRequest) Normalize() {
	r.Title = trimPtr(r.Title)
	r.Description = trimPtr(r.Description)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
