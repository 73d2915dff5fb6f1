package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/project-tracker/internal/models"
)

// contractStore is what every driver must satisfy for the shared tests.
type contractStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	CreateProject(ctx context.Context, p *models.Project) (*models.Project, error)
	FindProjectByID(ctx context.Context, id string) (*models.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Project, int, error)
	ListAllProjectsWithOwner(ctx context.Context, limit, offset int) ([]models.ProjectWithOwner, int, error)
	UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

var (
	_ contractStore = (*MemoryStore)(nil)
	_ contractStore = (*PostgresStore)(nil)
	_ contractStore = (*MongoStore)(nil)
)

func uniqueEmail(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8] + "@example.com"
}

func runUserContract(t *testing.T, s contractStore) {
	t.Helper()
	ctx := context.Background()
	email := uniqueEmail("ada")

	u, err := s.CreateUser(ctx, &models.User{Name: "Ada", Email: email, PasswordHash: "hash", Role: models.RoleUser})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	byEmail, err := s.FindUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)
	assert.Equal(t, models.RoleUser, byEmail.Role)

	byID, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, email, byID.Email)

	_, err = s.CreateUser(ctx, &models.User{Name: "Other", Email: email, PasswordHash: "x", Role: models.RoleUser})
	assert.ErrorIs(t, err, models.ErrDuplicate)

	_, err = s.FindUserByEmail(ctx, "ADA-"+email)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.FindUserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.FindUserByID(ctx, u.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), models.ErrNotFound)
}

func runProjectContract(t *testing.T, s contractStore) {
	t.Helper()
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, &models.User{Name: "Owner", Email: uniqueEmail("owner"), PasswordHash: "h", Role: models.RoleUser})
	require.NoError(t, err)
	other, err := s.CreateUser(ctx, &models.User{Name: "Other", Email: uniqueEmail("other"), PasswordHash: "h", Role: models.RoleUser})
	require.NoError(t, err)

	desc := "first description"
	var ids []string
	for _, title := range []string{"alpha", "beta", "gamma"} {
		p, err := s.CreateProject(ctx, &models.Project{Title: title, Description: &desc, Status: models.StatusTodo, OwnerID: owner.ID})
		require.NoError(t, err)
		ids = append(ids, p.ID)
		// Keep creation times distinct at millisecond precision.
		time.Sleep(2 * time.Millisecond)
	}
	_, err = s.CreateProject(ctx, &models.Project{Title: "theirs", Status: models.StatusDone, OwnerID: other.ID})
	require.NoError(t, err)

	_, err = s.CreateProject(ctx, &models.Project{Title: "orphan", Status: models.StatusTodo, OwnerID: uuid.NewString()})
	assert.ErrorIs(t, err, models.ErrNotFound)

	page, total, err := s.ListProjectsByOwner(ctx, owner.ID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "gamma", page[0].Title)

	page, total, err = s.ListProjectsByOwner(ctx, owner.ID, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "alpha", page[0].Title)

	empty, total, err := s.ListProjectsByOwner(ctx, owner.ID, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, empty)

	all, total, err := s.ListAllProjectsWithOwner(ctx, 50, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, 4)
	found := false
	for _, po := range all {
		if po.ID == ids[0] {
			found = true
			assert.Equal(t, owner.ID, po.Owner.ID)
			assert.Equal(t, "Owner", po.Owner.Name)
			assert.Equal(t, owner.Email, po.Owner.Email)
		}
	}
	assert.True(t, found, "admin listing must include the owner's project")

	doing := models.StatusDoing
	updated, err := s.UpdateProject(ctx, ids[0], models.ProjectPatch{Status: &doing})
	require.NoError(t, err)
	assert.Equal(t, "alpha", updated.Title)
	require.NotNil(t, updated.Description)
	assert.Equal(t, desc, *updated.Description)
	assert.Equal(t, models.StatusDoing, updated.Status)

	blank := ""
	updated, err = s.UpdateProject(ctx, ids[0], models.ProjectPatch{Description: &blank})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)
	assert.Equal(t, models.StatusDoing, updated.Status)

	unchanged, err := s.UpdateProject(ctx, ids[0], models.ProjectPatch{})
	require.NoError(t, err)
	assert.Equal(t, updated.Title, unchanged.Title)

	_, err = s.UpdateProject(ctx, uuid.NewString(), models.ProjectPatch{Status: &doing})
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, s.DeleteProject(ctx, ids[1]))
	_, err = s.FindProjectByID(ctx, ids[1])
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, ids[1]), models.ErrNotFound)

	require.NoError(t, s.DeleteUser(ctx, owner.ID))
	_, err = s.FindProjectByID(ctx, ids[0])
	assert.ErrorIs(t, err, models.ErrNotFound, "projects cascade with their owner")
}
