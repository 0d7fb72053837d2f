package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"notehive/api/internal/store"
	"notehive/api/internal/voting"
)

func noteFixture(id, companyID, createdBy, noteType, status string) store.Note {
	now := time.Now().UTC()
	n := store.Note{
		ID:          id,
		WorkspaceID: "ws_1",
		CreatedBy:   createdBy,
		Title:       "Release checklist",
		Content:     "Cut the branch, run the smoke suite.",
		Type:        noteType,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
		CompanyID:   companyID,
	}
	if status == store.StatusPublished {
		n.PublishedAt = &now
	}
	return n
}

func TestPrivateNoteHiddenFromOtherUsers(t *testing.T) {
	viewer := store.User{ID: "usr_2", CompanyID: "co_1", FullName: "Robin", Role: store.RoleAdmin}
	fs := &fakeStore{
		getNoteFn: func(context.Context, string, string) (store.Note, error) {
			return noteFixture("note_1", "co_1", "usr_1", store.TypePrivate, store.StatusDraft), nil
		},
	}
	withUser(fs, viewer)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, viewer)

	req := authedRequest(t, http.MethodGet, "/notes/note_1", "")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	// Admins cannot see another user's private note either.
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPublicNoteVisibleAcrossCompany(t *testing.T) {
	viewer := store.User{ID: "usr_2", CompanyID: "co_1", FullName: "Robin", Role: store.RoleUser}
	fs := &fakeStore{
		getNoteFn: func(context.Context, string, string) (store.Note, error) {
			return noteFixture("note_1", "co_1", "usr_1", store.TypePublic, store.StatusPublished), nil
		},
	}
	withUser(fs, viewer)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, viewer)

	req := authedRequest(t, http.MethodGet, "/notes/note_1", "")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["title"] != "Release checklist" {
		t.Fatalf("expected title, got %v", payload["title"])
	}
	if payload["publishedAt"] == nil {
		t.Fatalf("expected publishedAt to be set")
	}
}

func TestCrossTenantNoteReturnsForbidden(t *testing.T) {
	outsider := store.User{ID: "usr_9", CompanyID: "co_2", FullName: "Mal", Role: store.RoleAdmin}
	fs := &fakeStore{
		getNoteFn: func(context.Context, string, string) (store.Note, error) {
			return noteFixture("note_1", "co_1", "usr_1", store.TypePublic, store.StatusPublished), nil
		},
	}
	withUser(fs, outsider)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, outsider)

	req := authedRequest(t, http.MethodGet, "/notes/note_1", "")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateNoteDefaultsToPrivateDraft(t *testing.T) {
	author := store.User{ID: "usr_1", CompanyID: "co_1", FullName: "Avery", Role: store.RoleUser}
	var created store.Note
	fs := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return store.Workspace{ID: "ws_1", CompanyID: "co_1", Name: "Eng", Slug: "eng"}, nil
		},
		createNoteFn: func(_ context.Context, note store.Note, _ []string) error {
			created = note
			return nil
		},
	}
	fs.getNoteFn = func(context.Context, string, string) (store.Note, error) {
		return created, nil
	}
	withUser(fs, author)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, author)

	req := authedRequest(t, http.MethodPost, "/notes", `{"workspaceId":"ws_1","title":"Scratch","content":"first draft"}`)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if created.Type != store.TypePrivate || created.Status != store.StatusDraft {
		t.Fatalf("expected private draft, got %s/%s", created.Type, created.Status)
	}
	if created.PublishedAt != nil {
		t.Fatalf("draft must not carry publishedAt")
	}
	if created.CreatedBy != author.ID {
		t.Fatalf("expected creator %s, got %s", author.ID, created.CreatedBy)
	}
}

func TestCreateNoteRejectsOverlongTitle(t *testing.T) {
	author := store.User{ID: "usr_1", CompanyID: "co_1", FullName: "Avery", Role: store.RoleUser}
	fs := &fakeStore{}
	withUser(fs, author)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, author)

	long := strings.Repeat("0123456789", 6)
	req := authedRequest(t, http.MethodPost, "/notes", `{"workspaceId":"ws_1","title":"`+long+`","content":"body"}`)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	details, _ := payload["details"].(map[string]any)
	if details["title"] == nil {
		t.Fatalf("expected title detail, got %v", payload)
	}
}

func TestCreateNoteIntoVanishedWorkspaceReturnsNotFound(t *testing.T) {
	author := store.User{ID: "usr_1", CompanyID: "co_1", FullName: "Avery", Role: store.RoleUser}
	fs := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return store.Workspace{ID: "ws_1", CompanyID: "co_1", Name: "Eng", Slug: "eng"}, nil
		},
		// The workspace is deleted between the permission check and the
		// insert, so the insert trips the workspace FK.
		createNoteFn: func(context.Context, store.Note, []string) error {
			return fmt.Errorf("insert note: %w", &pgconn.PgError{Code: "23503", ConstraintName: "notes_workspace_id_fkey"})
		},
	}
	withUser(fs, author)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, author)

	req := authedRequest(t, http.MethodPost, "/notes", `{"workspaceId":"ws_1","title":"Scratch","content":"first draft"}`)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND code, got %v", payload["code"])
	}
}

func TestUpdateNoteForwardsEditor(t *testing.T) {
	editor := store.User{ID: "usr_2", CompanyID: "co_1", FullName: "Robin", Role: store.RoleAdmin}
	var got store.UpdateNoteParams
	note := noteFixture("note_1", "co_1", "usr_1", store.TypePublic, store.StatusPublished)
	fs := &fakeStore{
		getNoteFn: func(context.Context, string, string) (store.Note, error) {
			return note, nil
		},
		updateNoteFn: func(_ context.Context, params store.UpdateNoteParams) error {
			got = params
			return nil
		},
	}
	withUser(fs, editor)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, editor)

	req := authedRequest(t, http.MethodPut, "/notes/note_1", `{"title":"Amended checklist"}`)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if got.EditorID != editor.ID {
		t.Fatalf("expected history attributed to editor %s, got %s", editor.ID, got.EditorID)
	}
	if got.Title == nil || *got.Title != "Amended checklist" {
		t.Fatalf("expected title override, got %v", got.Title)
	}
	if got.Content != nil {
		t.Fatalf("omitted fields must stay nil, got %v", got.Content)
	}
}

func TestVoteOnPrivateNoteIsForbidden(t *testing.T) {
	voter := store.User{ID: "usr_1", CompanyID: "co_1", FullName: "Avery", Role: store.RoleUser}
	fs := &fakeStore{
		getNoteFn: func(context.Context, string, string) (store.Note, error) {
			return noteFixture("note_1", "co_1", "usr_1", store.TypePrivate, store.StatusDraft), nil
		},
	}
	withUser(fs, voter)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, voter)

	// Even the creator cannot vote on a private note.
	req := authedRequest(t, http.MethodPost, "/notes/note_1/vote", `{"voteType":"upvote"}`)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestVoteForwardsToStoreAndReturnsCounters(t *testing.T) {
	voter := store.User{ID: "usr_2", CompanyID: "co_1", FullName: "Robin", Role: store.RoleUser}
	note := noteFixture("note_1", "co_1", "usr_1", store.TypePublic, store.StatusPublished)
	var votedType voting.Type
	fs := &fakeStore{
		voteNoteFn: func(_ context.Context, noteID, userID string, vote voting.Type) error {
			if noteID != "note_1" || userID != voter.ID {
				t.Fatalf("unexpected vote args %s %s", noteID, userID)
			}
			votedType = vote
			upvote := string(voting.Upvote)
			note.UpvotesCount = 1
			note.UserVote = &upvote
			return nil
		},
	}
	fs.getNoteFn = func(context.Context, string, string) (store.Note, error) {
		return note, nil
	}
	withUser(fs, voter)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, voter)

	req := authedRequest(t, http.MethodPost, "/notes/note_1/vote", `{"voteType":"upvote"}`)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if votedType != voting.Upvote {
		t.Fatalf("expected upvote, got %s", votedType)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["upvotesCount"] != float64(1) {
		t.Fatalf("expected upvotesCount 1, got %v", payload["upvotesCount"])
	}
	if payload["userVote"] != "upvote" {
		t.Fatalf("expected userVote upvote, got %v", payload["userVote"])
	}
}

func TestVoteRejectsUnknownType(t *testing.T) {
	voter := store.User{ID: "usr_2", CompanyID: "co_1", FullName: "Robin", Role: store.RoleUser}
	fs := &fakeStore{}
	withUser(fs, voter)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, voter)

	req := authedRequest(t, http.MethodPost, "/notes/note_1/vote", `{"voteType":"sideways"}`)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHistoriesRequireMutatePermission(t *testing.T) {
	reader := store.User{ID: "usr_2", CompanyID: "co_1", FullName: "Robin", Role: store.RoleUser}
	fs := &fakeStore{
		getNoteFn: func(context.Context, string, string) (store.Note, error) {
			return noteFixture("note_1", "co_1", "usr_1", store.TypePublic, store.StatusPublished), nil
		},
	}
	withUser(fs, reader)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, reader)

	req := authedRequest(t, http.MethodGet, "/notes/note_1/histories", "")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHistoriesListedForCreator(t *testing.T) {
	creator := store.User{ID: "usr_1", CompanyID: "co_1", FullName: "Avery", Role: store.RoleUser}
	fs := &fakeStore{
		getNoteFn: func(context.Context, string, string) (store.Note, error) {
			return noteFixture("note_1", "co_1", "usr_1", store.TypePublic, store.StatusPublished), nil
		},
		listNoteHistoriesFn: func(context.Context, string) ([]store.NoteHistory, error) {
			return []store.NoteHistory{
				{ID: "nh_2", NoteID: "note_1", UserID: "usr_1", Title: "v2", Content: "second", UserName: "Avery"},
				{ID: "nh_1", NoteID: "note_1", UserID: "usr_1", Title: "v1", Content: "first", UserName: "Avery"},
			}, nil
		},
	}
	withUser(fs, creator)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, creator)

	req := authedRequest(t, http.MethodGet, "/notes/note_1/histories", "")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(payload.Data) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(payload.Data))
	}
	if payload.Data[0]["id"] != "nh_2" {
		t.Fatalf("expected newest first, got %v", payload.Data[0]["id"])
	}
}

func TestRestoreUnknownHistoryReturnsNotFound(t *testing.T) {
	creator := store.User{ID: "usr_1", CompanyID: "co_1", FullName: "Avery", Role: store.RoleUser}
	fs := &fakeStore{
		getNoteFn: func(context.Context, string, string) (store.Note, error) {
			return noteFixture("note_1", "co_1", "usr_1", store.TypePublic, store.StatusPublished), nil
		},
		restoreNoteFn: func(context.Context, string, string, string) error {
			return sql.ErrNoRows
		},
	}
	withUser(fs, creator)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, creator)

	req := authedRequest(t, http.MethodPost, "/notes/note_1/restore", `{"historyId":"nh_missing"}`)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPublicNotesForwardsFilters(t *testing.T) {
	viewer := store.User{ID: "usr_2", CompanyID: "co_1", FullName: "Robin", Role: store.RoleUser}
	fs := &fakeStore{
		listPublicNotesFn: func(_ context.Context, companyID, viewerID string, filter store.NoteFilter) ([]store.Note, int, error) {
			if companyID != "co_1" || viewerID != "usr_2" {
				t.Fatalf("unexpected scope %s %s", companyID, viewerID)
			}
			if filter.Status != "draft" || filter.Search != "release" || filter.WorkspaceID != "ws_1" {
				t.Fatalf("unexpected filter %+v", filter)
			}
			return nil, 0, nil
		},
	}
	withUser(fs, viewer)
	svc := newTestService(fs)
	server := newTestServer(svc)
	token := seedSession(t, svc, viewer)

	req := authedRequest(t, http.MethodGet, "/notes/public?status=draft&search=release&workspaceId=ws_1", "")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}
