package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"notehive/api/internal/policy"
	"notehive/api/internal/search"
	"notehive/api/internal/store"
	"notehive/api/internal/util"
	"notehive/api/internal/voting"
)

type NoteInput struct {
	WorkspaceID string   `json:"workspaceId"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	TagIDs      []string `json:"tagIds"`
}

// NoteUpdateInput is a partial update; nil fields keep stored values.
type NoteUpdateInput struct {
	Title   *string  `json:"title"`
	Content *string  `json:"content"`
	Type    *string  `json:"type"`
	Status  *string  `json:"status"`
	TagIDs  []string `json:"tagIds"`
}

// PublicNotes lists the company's shared notes. Published notes are
// visible to everyone in the company; drafts only to their creator.
func (s *Service) PublicNotes(ctx context.Context, sess Session, filter store.NoteFilter) (Paginated, error) {
	filter.Page, filter.PerPage = clampPage(filter.Page, filter.PerPage, 20, 20)
	items, total, err := s.store.ListPublicNotes(ctx, sess.CompanyID, sess.UserID, filter)
	if err != nil {
		return Paginated{}, err
	}
	return paginate(notePayloads(items), total, filter.Page, filter.PerPage), nil
}

// PrivateNotes lists the caller's own private notes.
func (s *Service) PrivateNotes(ctx context.Context, sess Session, filter store.NoteFilter) (Paginated, error) {
	filter.Page, filter.PerPage = clampPage(filter.Page, filter.PerPage, 20, 20)
	items, total, err := s.store.ListPrivateNotes(ctx, sess.UserID, filter)
	if err != nil {
		return Paginated{}, err
	}
	return paginate(notePayloads(items), total, filter.Page, filter.PerPage), nil
}

func (s *Service) GetNote(ctx context.Context, sess Session, id string) (map[string]any, error) {
	note, err := s.loadNote(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewNote(sess.actor(), noteResource(note)) {
		return nil, accessDenied("")
	}
	return notePayload(note), nil
}

func (s *Service) CreateNote(ctx context.Context, sess Session, input NoteInput) (map[string]any, error) {
	if input.Type == "" {
		input.Type = store.TypePrivate
	}
	if input.Status == "" {
		input.Status = store.StatusDraft
	}

	fe := fieldErrors{}
	checkLength(fe, "title", input.Title, 1, 50)
	checkLength(fe, "content", input.Content, 1, 500)
	if input.WorkspaceID == "" {
		fe.add("workspaceId", "is required")
	}
	if input.Type != store.TypePublic && input.Type != store.TypePrivate {
		fe.add("type", "must be public or private")
	}
	if input.Status != store.StatusDraft && input.Status != store.StatusPublished {
		fe.add("status", "must be draft or published")
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	ws, err := s.store.GetWorkspace(ctx, input.WorkspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Workspace not found")
		}
		return nil, err
	}
	if !policy.CanViewWorkspace(sess.actor(), policy.WorkspaceResource{CompanyID: ws.CompanyID}) {
		return nil, accessDenied("")
	}

	now := time.Now().UTC()
	note := store.Note{
		ID:          util.NewID("note"),
		WorkspaceID: ws.ID,
		CreatedBy:   sess.UserID,
		Title:       strings.TrimSpace(input.Title),
		Content:     input.Content,
		Type:        input.Type,
		Status:      input.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if note.Status == store.StatusPublished {
		note.PublishedAt = &now
	}
	if err := s.store.CreateNote(ctx, note, input.TagIDs); err != nil {
		switch field, _ := store.ForeignKeyViolation(err); field {
		case "tagIds":
			return nil, validationFailed(map[string]string{"tagIds": "contains an unknown tag"})
		case "workspaceId":
			// The workspace was deleted after the permission check.
			return nil, notFound("Workspace not found")
		}
		return nil, err
	}

	created, err := s.store.GetNote(ctx, note.ID, sess.UserID)
	if err != nil {
		return nil, err
	}
	s.syncSearchIndex(created)
	s.log.Info().Str("note_id", note.ID).Str("workspace_id", ws.ID).Msg("note created")
	return notePayload(created), nil
}

func (s *Service) UpdateNote(ctx context.Context, sess Session, id string, input NoteUpdateInput) (map[string]any, error) {
	note, err := s.loadNote(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutateNote(sess.actor(), noteResource(note)) {
		return nil, accessDenied("")
	}

	fe := fieldErrors{}
	if input.Title != nil {
		checkLength(fe, "title", *input.Title, 1, 50)
	}
	if input.Content != nil {
		checkLength(fe, "content", *input.Content, 1, 500)
	}
	if input.Type != nil && *input.Type != store.TypePublic && *input.Type != store.TypePrivate {
		fe.add("type", "must be public or private")
	}
	if input.Status != nil && *input.Status != store.StatusDraft && *input.Status != store.StatusPublished {
		fe.add("status", "must be draft or published")
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	params := store.UpdateNoteParams{
		NoteID:   id,
		EditorID: sess.UserID,
		Title:    input.Title,
		Content:  input.Content,
		Type:     input.Type,
		Status:   input.Status,
		TagIDs:   input.TagIDs,
	}
	if err := s.store.UpdateNote(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Note not found")
		}
		if _, ok := store.ForeignKeyViolation(err); ok {
			return nil, validationFailed(map[string]string{"tagIds": "contains an unknown tag"})
		}
		return nil, err
	}

	updated, err := s.store.GetNote(ctx, id, sess.UserID)
	if err != nil {
		return nil, err
	}
	s.syncSearchIndex(updated)
	return notePayload(updated), nil
}

func (s *Service) DeleteNote(ctx context.Context, sess Session, id string) error {
	note, err := s.loadNote(ctx, sess, id)
	if err != nil {
		return err
	}
	if !policy.CanMutateNote(sess.actor(), noteResource(note)) {
		return accessDenied("")
	}
	if err := s.store.DeleteNote(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Note not found")
		}
		return err
	}
	s.search.DeleteNote(id)
	s.log.Info().Str("note_id", id).Msg("note deleted")
	return nil
}

// NoteHistories returns the version snapshots of a note, newest first.
// Visibility follows the mutate rule: whoever may edit may inspect.
func (s *Service) NoteHistories(ctx context.Context, sess Session, noteID string) ([]map[string]any, error) {
	note, err := s.loadNote(ctx, sess, noteID)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutateNote(sess.actor(), noteResource(note)) {
		return nil, accessDenied("")
	}
	items, err := s.store.ListNoteHistories(ctx, noteID)
	if err != nil {
		return nil, err
	}
	data := make([]map[string]any, 0, len(items))
	for _, h := range items {
		data = append(data, historyPayload(h))
	}
	return data, nil
}

// RestoreNote copies a snapshot's title and content back onto the note.
// The overwritten state is snapshotted first, so a restore can itself
// be undone.
func (s *Service) RestoreNote(ctx context.Context, sess Session, noteID, historyID string) (map[string]any, error) {
	note, err := s.loadNote(ctx, sess, noteID)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutateNote(sess.actor(), noteResource(note)) {
		return nil, accessDenied("")
	}
	if err := s.store.RestoreNote(ctx, noteID, historyID, sess.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("History not found")
		}
		return nil, err
	}
	restored, err := s.store.GetNote(ctx, noteID, sess.UserID)
	if err != nil {
		return nil, err
	}
	s.syncSearchIndex(restored)
	s.log.Info().Str("note_id", noteID).Str("history_id", historyID).Msg("note restored")
	return notePayload(restored), nil
}

// VoteNote toggles the caller's vote on a public note. Repeating a vote
// removes it; sending the opposite vote switches it.
func (s *Service) VoteNote(ctx context.Context, sess Session, noteID, voteType string) (map[string]any, error) {
	if !voting.ValidType(voteType) {
		return nil, validationFailed(map[string]string{"voteType": "must be upvote or downvote"})
	}
	note, err := s.loadNote(ctx, sess, noteID)
	if err != nil {
		return nil, err
	}
	if !policy.CanVoteNote(sess.actor(), noteResource(note)) {
		return nil, accessDenied("You can only vote on public notes")
	}
	if err := s.store.VoteNote(ctx, noteID, sess.UserID, voting.Type(voteType)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Note not found")
		}
		return nil, err
	}
	voted, err := s.store.GetNote(ctx, noteID, sess.UserID)
	if err != nil {
		return nil, err
	}
	return notePayload(voted), nil
}

func (s *Service) ListTags(ctx context.Context, searchTerm string) ([]map[string]any, error) {
	items, err := s.store.ListTags(ctx, searchTerm)
	if err != nil {
		return nil, err
	}
	data := make([]map[string]any, 0, len(items))
	for _, t := range items {
		data = append(data, tagPayload(t))
	}
	return data, nil
}

type TagInput struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CreateTag adds to the shared tag vocabulary. Tags are not scoped to a
// company; any authenticated user may add one.
func (s *Service) CreateTag(ctx context.Context, input TagInput) (map[string]any, error) {
	if input.Slug == "" {
		input.Slug = slugify(input.Name)
	}
	fe := fieldErrors{}
	checkLength(fe, "name", input.Name, 1, 255)
	checkLength(fe, "slug", input.Slug, 1, 255)
	if _, bad := fe["slug"]; !bad {
		checkSlug(fe, "slug", input.Slug)
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	tag := store.Tag{
		ID:        util.NewID("tag"),
		Name:      strings.TrimSpace(input.Name),
		Slug:      input.Slug,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateTag(ctx, tag); err != nil {
		if field, ok := store.UniqueViolation(err); ok {
			return nil, conflict(field, field+" is already taken")
		}
		return nil, err
	}
	return tagPayload(tag), nil
}

// SearchNotes runs a full-text query over the company's published
// public notes.
func (s *Service) SearchNotes(ctx context.Context, sess Session, text, workspaceID string, limit, offset int) search.Response {
	if limit < 1 || limit > 50 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.search.Search(ctx, search.Query{
		Text:        text,
		CompanyID:   sess.CompanyID,
		WorkspaceID: workspaceID,
		Limit:       limit,
		Offset:      offset,
	})
}

// loadNote fetches without visibility filtering so policy checks can
// distinguish forbidden from missing.
func (s *Service) loadNote(ctx context.Context, sess Session, id string) (store.Note, error) {
	note, err := s.store.GetNote(ctx, id, sess.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Note{}, notFound("Note not found")
		}
		return store.Note{}, err
	}
	return note, nil
}

// syncSearchIndex keeps Meilisearch in line with a note's visibility:
// published public notes are indexed, everything else is evicted.
func (s *Service) syncSearchIndex(note store.Note) {
	if note.Type == store.TypePublic && note.Status == store.StatusPublished {
		s.search.IndexNote(search.NoteRecord{
			ID:            note.ID,
			Title:         note.Title,
			Content:       note.Content,
			WorkspaceID:   note.WorkspaceID,
			WorkspaceName: note.WorkspaceName,
			CompanyID:     note.CompanyID,
		})
		return
	}
	s.search.DeleteNote(note.ID)
}

func noteResource(n store.Note) policy.NoteResource {
	return policy.NoteResource{CompanyID: n.CompanyID, CreatedBy: n.CreatedBy, Type: n.Type}
}

func notePayloads(items []store.Note) []map[string]any {
	data := make([]map[string]any, 0, len(items))
	for _, n := range items {
		data = append(data, notePayload(n))
	}
	return data
}

func notePayload(n store.Note) map[string]any {
	tags := make([]map[string]any, 0, len(n.Tags))
	for _, t := range n.Tags {
		tags = append(tags, tagPayload(t))
	}
	payload := map[string]any{
		"id":             n.ID,
		"workspaceId":    n.WorkspaceID,
		"createdBy":      n.CreatedBy,
		"title":          n.Title,
		"content":        n.Content,
		"type":           n.Type,
		"status":         n.Status,
		"upvotesCount":   n.UpvotesCount,
		"downvotesCount": n.DownvotesCount,
		"publishedAt":    n.PublishedAt,
		"userVote":       n.UserVote,
		"tags":           tags,
		"createdAt":      n.CreatedAt,
		"updatedAt":      n.UpdatedAt,
	}
	if n.WorkspaceName != "" {
		payload["workspace"] = map[string]any{
			"id":   n.WorkspaceID,
			"name": n.WorkspaceName,
		}
	}
	if n.CreatorName != "" {
		payload["creator"] = map[string]any{
			"id":       n.CreatedBy,
			"fullName": n.CreatorName,
		}
	}
	return payload
}

func tagPayload(t store.Tag) map[string]any {
	return map[string]any{
		"id":        t.ID,
		"name":      t.Name,
		"slug":      t.Slug,
		"createdAt": t.CreatedAt,
	}
}

func historyPayload(h store.NoteHistory) map[string]any {
	payload := map[string]any{
		"id":        h.ID,
		"noteId":    h.NoteID,
		"userId":    h.UserID,
		"title":     h.Title,
		"content":   h.Content,
		"createdAt": h.CreatedAt,
	}
	if h.UserName != "" {
		payload["user"] = map[string]any{
			"id":       h.UserID,
			"fullName": h.UserName,
		}
	}
	return payload
}
