package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/project-tracker/internal/apierr"
	"github.com/ayush/project-tracker/internal/models"
	"github.com/ayush/project-tracker/internal/store"
)

// racyStore hides existing users from the pre-check so CreateUser is the one
// that trips the uniqueness constraint, as in a concurrent registration.
type racyStore struct {
	*store.MemoryStore
}

func (racyStore) FindUserByEmail(context.Context, string) (*models.User, error) {
	return nil, models.ErrNotFound
}

type brokenStore struct {
	*store.MemoryStore
}

var errBoom = errors.New("boom")

func (brokenStore) FindUserByEmail(context.Context, string) (*models.User, error) {
	return nil, errBoom
}

func newTestService(users UserStore) (*Service, *TokenCodec) {
	codec := NewTokenCodec(testSecret, time.Hour)
	return NewService(users, NewBcryptHasher(bcrypt.MinCost), codec), codec
}

func register(t *testing.T, s *Service, email string) *models.AuthResponse {
	t.Helper()
	resp, err := s.Register(context.Background(), models.RegisterRequest{Name: "Ada", Email: email, Password: "password123"})
	require.NoError(t, err)
	return resp
}

func TestRegister_IssuesTokenAndHidesHash(t *testing.T) {
	s, codec := newTestService(store.NewMemoryStore())

	resp := register(t, s, "ada@example.com")

	assert.NotEmpty(t, resp.User.ID)
	assert.Equal(t, models.RoleUser, resp.User.Role)
	assert.NotEqual(t, "password123", resp.User.PasswordHash)

	p, err := codec.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, p.UserID)
	assert.Equal(t, models.RoleUser, p.Role)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), resp.User.PasswordHash)
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	s, _ := newTestService(store.NewMemoryStore())
	register(t, s, "ada@example.com")

	_, err := s.Register(context.Background(), models.RegisterRequest{Name: "Someone Else", Email: "ada@example.com", Password: "different-pw"})
	assert.True(t, apierr.Is(err, apierr.CodeConflict), "got %v", err)
}

func TestRegister_LateUniqueViolationConflicts(t *testing.T) {
	mem := store.NewMemoryStore()
	s, _ := newTestService(mem)
	register(t, s, "ada@example.com")

	racy, _ := newTestService(racyStore{mem})
	_, err := racy.Register(context.Background(), models.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "password123"})
	assert.True(t, apierr.Is(err, apierr.CodeConflict), "got %v", err)
}

func TestRegister_StoreFailureIsNotAPIError(t *testing.T) {
	s, _ := newTestService(brokenStore{store.NewMemoryStore()})

	_, err := s.Register(context.Background(), models.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "password123"})
	require.Error(t, err)
	_, isAPI := apierr.As(err)
	assert.False(t, isAPI)
	assert.ErrorIs(t, err, errBoom)
}

func TestLogin(t *testing.T) {
	s, codec := newTestService(store.NewMemoryStore())
	registered := register(t, s, "ada@example.com")

	resp, err := s.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, resp.User.ID)
	p, err := codec.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, p.UserID)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	s, _ := newTestService(store.NewMemoryStore())
	register(t, s, "ada@example.com")

	_, wrongPassword := s.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "nope-nope"})
	_, unknownEmail := s.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password123"})

	e1, ok := apierr.As(wrongPassword)
	require.True(t, ok)
	e2, ok := apierr.As(unknownEmail)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeUnauthorized, e1.Code)
	assert.Equal(t, e1, e2)
}

func TestLogin_EmailIsCaseSensitive(t *testing.T) {
	s, _ := newTestService(store.NewMemoryStore())
	register(t, s, "ada@example.com")

	_, err := s.Login(context.Background(), models.LoginRequest{Email: "ADA@example.com", Password: "password123"})
	assert.True(t, apierr.Is(err, apierr.CodeUnauthorized))
}

func TestMe(t *testing.T) {
	mem := store.NewMemoryStore()
	s, _ := newTestService(mem)
	resp := register(t, s, "ada@example.com")

	u, err := s.Me(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)

	require.NoError(t, mem.DeleteUser(context.Background(), resp.User.ID))
	_, err = s.Me(context.Background(), resp.User.ID)
	assert.True(t, apierr.Is(err, apierr.CodeNotFound))
}

func TestEnsureAdmin(t *testing.T) {
	mem := store.NewMemoryStore()
	s, _ := newTestService(mem)
	ctx := context.Background()

	created, err := s.EnsureAdmin(ctx, "Root", "root@example.com", "admin-password")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureAdmin(ctx, "Root", "root@example.com", "admin-password")
	require.NoError(t, err)
	assert.False(t, created)

	resp, err := s.Login(ctx, models.LoginRequest{Email: "root@example.com", Password: "admin-password"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
}

func TestEnsureAdmin_AppliesRegistrationRules(t *testing.T) {
	mem := store.NewMemoryStore()
	s, _ := newTestService(mem)
	ctx := context.Background()

	tests := []struct {
		name, email, password string
		field                 string
	}{
		{"Root", "root@example.com", "short", "password"},
		{"Root", "root@example.com", strings.Repeat("p", 73), "password"},
		{"Root", "not-an-email", "admin-password", "email"},
		{"R", "root@example.com", "admin-password", "name"},
	}
	for _, tt := range tests {
		created, err := s.EnsureAdmin(ctx, tt.name, tt.email, tt.password)
		require.Error(t, err, tt.field)
		assert.False(t, created)

		e, ok := apierr.As(err)
		require.True(t, ok, "want *apierr.Error, got %v", err)
		require.Len(t, e.Details, 1)
		assert.Equal(t, tt.field, e.Details[0].Field)
	}

	_, err := mem.FindUserByEmail(ctx, "root@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
