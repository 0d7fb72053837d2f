package app

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"notehive/api/internal/auth"
	"notehive/api/internal/policy"
	"notehive/api/internal/search"
	"notehive/api/internal/session"
	"notehive/api/internal/store"
	"notehive/api/internal/util"
	"notehive/api/internal/voting"
)

// dataStore is the persistence surface the service depends on. The
// production implementation is store.PostgresStore; tests substitute
// a fake with per-method function fields.
type dataStore interface {
	Ping(ctx context.Context) error

	CreateCompanyWithAdmin(ctx context.Context, company store.Company, admin store.User) error
	GetCompanyBySlug(ctx context.Context, slug string) (store.Company, error)

	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)

	ListWorkspaces(ctx context.Context, companyID string, page, perPage int) ([]store.Workspace, int, error)
	GetWorkspace(ctx context.Context, id string) (store.Workspace, error)
	CreateWorkspace(ctx context.Context, ws store.Workspace) error
	UpdateWorkspace(ctx context.Context, id, name, slug, description string) error
	DeleteWorkspace(ctx context.Context, id string) error

	GetNote(ctx context.Context, noteID, viewerID string) (store.Note, error)
	ListPublicNotes(ctx context.Context, companyID, viewerID string, filter store.NoteFilter) ([]store.Note, int, error)
	ListPrivateNotes(ctx context.Context, viewerID string, filter store.NoteFilter) ([]store.Note, int, error)
	CreateNote(ctx context.Context, note store.Note, tagIDs []string) error
	UpdateNote(ctx context.Context, params store.UpdateNoteParams) error
	RestoreNote(ctx context.Context, noteID, historyID, editorID string) error
	DeleteNote(ctx context.Context, noteID string) error
	ListNoteHistories(ctx context.Context, noteID string) ([]store.NoteHistory, error)
	VoteNote(ctx context.Context, noteID, userID string, vote voting.Type) error

	ListTags(ctx context.Context, searchTerm string) ([]store.Tag, error)
	CreateTag(ctx context.Context, tag store.Tag) error
}

// sessionStore persists opaque session tokens keyed by their hash.
// Redis backs it when configured, Postgres otherwise.
type sessionStore interface {
	SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupSession(ctx context.Context, tokenHash string) (string, error)
	RevokeSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexNote(rec search.NoteRecord)
	DeleteNote(id string)
	ReindexAllFromPG(ctx context.Context)
}

// Session is the resolved identity behind a request token.
type Session struct {
	Token     string
	UserID    string
	CompanyID string
	FullName  string
	Email     string
	Role      string
	ExpiresAt time.Time
}

func (s Session) actor() policy.Actor {
	return policy.Actor{ID: s.UserID, CompanyID: s.CompanyID, Role: policy.Role(s.Role)}
}

type Service struct {
	store      dataStore
	sessions   sessionStore
	search     searcher
	sessionTTL time.Duration
	log        zerolog.Logger
}

func NewService(st dataStore, sessions sessionStore, searchSvc searcher, sessionTTL time.Duration, log zerolog.Logger) *Service {
	return &Service{
		store:      st,
		sessions:   sessions,
		search:     searchSvc,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// Bootstrap runs startup work that needs the full service wired, today
// just the search reindex so a fresh Meilisearch instance catches up
// with Postgres.
func (s *Service) Bootstrap(ctx context.Context) {
	s.search.ReindexAllFromPG(ctx)
}

func (s *Service) Healthy(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	return s.sessions.Ping(ctx)
}

type CompanyRegisterInput struct {
	CompanyName string `json:"companyName"`
	CompanySlug string `json:"companySlug"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// RegisterCompany provisions a tenant and its first admin user in one
// transaction, then opens a session for the admin.
func (s *Service) RegisterCompany(ctx context.Context, input CompanyRegisterInput) (map[string]any, Session, error) {
	fe := fieldErrors{}
	checkLength(fe, "companyName", input.CompanyName, 3, 255)
	if input.CompanySlug == "" {
		input.CompanySlug = slugify(input.CompanyName)
	}
	checkLength(fe, "companySlug", input.CompanySlug, 3, 255)
	if _, bad := fe["companySlug"]; !bad {
		checkSlug(fe, "companySlug", input.CompanySlug)
	}
	checkLength(fe, "fullName", input.FullName, 2, 20)
	checkEmail(fe, "email", input.Email)
	checkPassword(fe, "password", input.Password)
	if err := fe.err(); err != nil {
		return nil, Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Session{}, err
	}

	now := time.Now().UTC()
	company := store.Company{
		ID:        util.NewID("co"),
		Name:      strings.TrimSpace(input.CompanyName),
		Slug:      input.CompanySlug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	admin := store.User{
		ID:           util.NewID("usr"),
		CompanyID:    company.ID,
		FullName:     strings.TrimSpace(input.FullName),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hash),
		Role:         store.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateCompanyWithAdmin(ctx, company, admin); err != nil {
		if field, ok := store.UniqueViolation(err); ok {
			switch field {
			case "name":
				field = "companyName"
			case "slug":
				field = "companySlug"
			}
			return nil, Session{}, conflict(field, field+" is already taken")
		}
		return nil, Session{}, err
	}

	sess, err := s.openSession(ctx, admin)
	if err != nil {
		return nil, Session{}, err
	}
	payload := map[string]any{
		"company": companyPayload(company),
		"user":    userPayload(admin),
	}
	s.log.Info().Str("company_id", company.ID).Str("slug", company.Slug).Msg("company registered")
	return payload, sess, nil
}

type RegisterInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a member account on the tenant resolved from the
// request host. The first host label must match a company slug.
func (s *Service) Register(ctx context.Context, host string, input RegisterInput) (map[string]any, Session, error) {
	fe := fieldErrors{}
	checkLength(fe, "fullName", input.FullName, 2, 20)
	checkEmail(fe, "email", input.Email)
	checkPassword(fe, "password", input.Password)
	if err := fe.err(); err != nil {
		return nil, Session{}, err
	}

	company, err := s.store.GetCompanyBySlug(ctx, tenantSlug(host))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Session{}, domainError(400, "INVALID_DOMAIN", "Invalid domain", nil)
		}
		return nil, Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Session{}, err
	}

	now := time.Now().UTC()
	user := store.User{
		ID:           util.NewID("usr"),
		CompanyID:    company.ID,
		FullName:     strings.TrimSpace(input.FullName),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hash),
		Role:         store.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if field, ok := store.UniqueViolation(err); ok {
			return nil, Session{}, conflict(field, field+" is already taken")
		}
		return nil, Session{}, err
	}

	sess, err := s.openSession(ctx, user)
	if err != nil {
		return nil, Session{}, err
	}
	return map[string]any{"user": userPayload(user)}, sess, nil
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) Login(ctx context.Context, input LoginInput) (map[string]any, Session, error) {
	fe := fieldErrors{}
	checkEmail(fe, "email", input.Email)
	checkLength(fe, "password", input.Password, 1, 1024)
	if err := fe.err(); err != nil {
		return nil, Session{}, err
	}

	invalid := domainError(401, "INVALID_CREDENTIALS", "Invalid credentials", nil)
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Session{}, invalid
		}
		return nil, Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return nil, Session{}, invalid
	}

	sess, err := s.openSession(ctx, user)
	if err != nil {
		return nil, Session{}, err
	}
	return map[string]any{"user": userPayload(user)}, sess, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.RevokeSession(ctx, auth.HashToken(token))
}

// SessionFromToken resolves the opaque token back to a live identity.
// Unknown or expired tokens come back as auth.ErrInvalidToken so the
// HTTP layer maps them to 401.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, auth.ErrInvalidToken
	}
	userID, err := s.sessions.LookupSession(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		FullName:  user.FullName,
		Email:     user.Email,
		Role:      user.Role,
	}, nil
}

func (s *Service) Me(ctx context.Context, sess Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return map[string]any{"user": userPayload(user)}, nil
}

func (s *Service) openSession(ctx context.Context, user store.User) (Session, error) {
	token, err := auth.NewToken()
	if err != nil {
		return Session{}, err
	}
	expiresAt := time.Now().UTC().Add(s.sessionTTL)
	if err := s.sessions.SaveSession(ctx, auth.HashToken(token), user.ID, expiresAt); err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		FullName:  user.FullName,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresAt: expiresAt,
	}, nil
}

// tenantSlug extracts the company slug from a request host, which is
// the leftmost DNS label: "acme.notehive.test:8080" yields "acme".
func tenantSlug(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

func companyPayload(c store.Company) map[string]any {
	return map[string]any{
		"id":        c.ID,
		"name":      c.Name,
		"slug":      c.Slug,
		"createdAt": c.CreatedAt,
		"updatedAt": c.UpdatedAt,
	}
}

func userPayload(u store.User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"companyId": u.CompanyID,
		"fullName":  u.FullName,
		"email":     u.Email,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
}
