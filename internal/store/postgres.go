package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UniqueViolation reports the violated column when err wraps a Postgres
// unique_violation on one of the schema's named constraints.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}
	switch pgErr.ConstraintName {
	case "companies_name_key":
		return "name", true
	case "companies_slug_key", "workspaces_company_id_slug_key", "tags_slug_key":
		return "slug", true
	case "users_email_key":
		return "email", true
	}
	return "", false
}

// ForeignKeyViolation reports the offending field for known FK constraints.
// Unknown tag ids surface as a validation failure; a workspace deleted
// between the permission check and the insert surfaces as not found.
func ForeignKeyViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23503" {
		return "", false
	}
	switch pgErr.ConstraintName {
	case "note_tags_tag_id_fkey":
		return "tagIds", true
	case "notes_workspace_id_fkey":
		return "workspaceId", true
	}
	return "", false
}

// CreateCompanyWithAdmin inserts a company and its first (admin) user in one
// transaction; neither row exists unless both do.
func (s *PostgresStore) CreateCompanyWithAdmin(ctx context.Context, company Company, admin User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin company registration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO companies (id, name, slug)
		VALUES ($1, $2, $3)
	`, company.ID, company.Name, company.Slug); err != nil {
		return fmt.Errorf("insert company: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, company_id, email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, admin.ID, company.ID, admin.Email, admin.PasswordHash, admin.FullName, admin.Role); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit company registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCompanyBySlug(ctx context.Context, slug string) (Company, error) {
	var item Company
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at, updated_at
		FROM companies
		WHERE slug=$1
	`, slug).Scan(&item.ID, &item.Name, &item.Slug, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Company{}, err
	}
	return item, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, company_id, email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.CompanyID, user.Email, user.PasswordHash, user.FullName, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `WHERE email=$1`, email)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.getUser(ctx, `WHERE id=$1`, userID)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, email, password_hash, full_name, role, created_at, updated_at
		FROM users `+where,
		arg,
	).Scan(&user.ID, &user.CompanyID, &user.Email, &user.PasswordHash, &user.FullName, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Session storage, used when Redis is not configured.

func (s *PostgresStore) SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) RevokeSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Workspaces

func (s *PostgresStore) ListWorkspaces(ctx context.Context, companyID string, page, perPage int) ([]Workspace, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM workspaces WHERE company_id=$1`, companyID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count workspaces: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.company_id, COALESCE(w.created_by, ''), w.name, w.slug, w.description,
			w.created_at, w.updated_at, COALESCE(u.full_name, '')
		FROM workspaces w
		LEFT JOIN users u ON u.id = w.created_by
		WHERE w.company_id=$1
		ORDER BY w.created_at DESC
		LIMIT $2 OFFSET $3
	`, companyID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	items := make([]Workspace, 0)
	for rows.Next() {
		var item Workspace
		if err := rows.Scan(&item.ID, &item.CompanyID, &item.CreatedBy, &item.Name, &item.Slug,
			&item.Description, &item.CreatedAt, &item.UpdatedAt, &item.CreatorName); err != nil {
			return nil, 0, fmt.Errorf("scan workspace: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate workspaces: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	var item Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT w.id, w.company_id, COALESCE(w.created_by, ''), w.name, w.slug, w.description,
			w.created_at, w.updated_at, COALESCE(u.full_name, '')
		FROM workspaces w
		LEFT JOIN users u ON u.id = w.created_by
		WHERE w.id=$1
	`, workspaceID).Scan(&item.ID, &item.CompanyID, &item.CreatedBy, &item.Name, &item.Slug,
		&item.Description, &item.CreatedAt, &item.UpdatedAt, &item.CreatorName)
	if err != nil {
		return Workspace{}, err
	}
	return item, nil
}

func (s *PostgresStore) CreateWorkspace(ctx context.Context, item Workspace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, company_id, created_by, name, slug, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.CompanyID, item.CreatedBy, item.Name, item.Slug, item.Description)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, workspaceID, name, slug, description string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workspaces
		SET name=$2, slug=$3, description=$4, updated_at=NOW()
		WHERE id=$1
	`, workspaceID, name, slug, description)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id=$1`, workspaceID)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Tags

func (s *PostgresStore) ListTags(ctx context.Context, search string) ([]Tag, error) {
	query := `SELECT id, name, slug, created_at FROM tags`
	args := []any{}
	if search != "" {
		query += ` WHERE name ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	items := make([]Tag, 0)
	for rows.Next() {
		var item Tag
		if err := rows.Scan(&item.ID, &item.Name, &item.Slug, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateTag(ctx context.Context, item Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, slug)
		VALUES ($1, $2, $3)
	`, item.ID, item.Name, item.Slug)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}
