package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ayush/project-tracker/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	userColumns    = `id, name, email, password_hash, role, created_at, updated_at`
	projectColumns = `id, title, description, status, owner_id, created_at, updated_at`
)

// querier is the subset of *pgxpool.Pool the queries need.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore handles user and project CRUD against PostgreSQL.
type PostgresStore struct {
	db   querier
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool, pool: pool}
}

// Migrate applies the embedded goose migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("migrate: store has no connection pool")
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		u.Name, u.Email, u.PasswordHash, u.Role,
	)
	created, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", pgError(err))
	}
	return created, nil
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", pgError(err))
	}
	return u, nil
}

func (s *PostgresStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", pgError(err))
	}
	return u, nil
}

// DeleteUser removes a user; the schema cascades to their projects. Test
// cleanup only, no route deletes accounts.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", pgError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) (*models.Project, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO projects (title, description, status, owner_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+projectColumns,
		p.Title, p.Description, p.Status, p.OwnerID,
	)
	created, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", pgError(err))
	}
	return created, nil
}

func (s *PostgresStore) FindProjectByID(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("find project: %w", pgError(err))
	}
	return p, nil
}

func (s *PostgresStore) ListProjectsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Project, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", pgError(err))
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", pgError(err))
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	return out, total, nil
}

func (s *PostgresStore) ListAllProjectsWithOwner(ctx context.Context, limit, offset int) ([]models.ProjectWithOwner, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", pgError(err))
	}

	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.title, p.description, p.status, p.owner_id, p.created_at, p.updated_at,
		        u.id, u.name, u.email
		 FROM projects p
		 JOIN users u ON u.id = p.owner_id
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list all projects: %w", pgError(err))
	}
	defer rows.Close()

	out := []models.ProjectWithOwner{}
	for rows.Next() {
		var po models.ProjectWithOwner
		if err := rows.Scan(
			&po.ID, &po.Title, &po.Description, &po.Status, &po.OwnerID, &po.CreatedAt, &po.UpdatedAt,
			&po.Owner.ID, &po.Owner.Name, &po.Owner.Email,
		); err != nil {
			return nil, 0, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list all projects: %w", err)
	}
	return out, total, nil
}

// UpdateProject sets only the supplied columns in a single statement.
func (s *PostgresStore) UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error) {
	if patch.Empty() {
		return s.FindProjectByID(ctx, id)
	}

	args := []any{id}
	var sets []string
	set := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if patch.Title != nil {
		set("title = $%d", *patch.Title)
	}
	if patch.Description != nil {
		set("description = NULLIF($%d::text, '')", *patch.Description)
	}
	if patch.Status != nil {
		set("status = $%d", *patch.Status)
	}
	sets = append(sets, "updated_at = NOW()")

	row := s.db.QueryRow(ctx,
		`UPDATE projects SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+projectColumns,
		args...,
	)
	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", pgError(err))
	}
	return p, nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", pgError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Status, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// pgError translates driver errors into the store sentinels.
func pgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrDuplicate
		case "23503", "22P02": // foreign_key_violation, invalid_text_representation
			return models.ErrNotFound
		}
	}
	return err
}
