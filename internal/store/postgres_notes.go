package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"notehive/api/internal/util"
	"notehive/api/internal/voting"
)

const noteColumns = `
	n.id, n.workspace_id, n.created_by, n.title, n.content, n.type, n.status,
	n.upvotes_count, n.downvotes_count, n.published_at, n.created_at, n.updated_at,
	w.company_id, w.name, u.full_name, v.vote_type`

const noteJoins = `
	FROM notes n
	JOIN workspaces w ON w.id = n.workspace_id
	JOIN users u ON u.id = n.created_by
	LEFT JOIN note_votes v ON v.note_id = n.id AND v.user_id = $1`

func scanNote(scanner interface{ Scan(...any) error }) (Note, error) {
	var (
		item        Note
		publishedAt sql.NullTime
		userVote    sql.NullString
	)
	err := scanner.Scan(
		&item.ID, &item.WorkspaceID, &item.CreatedBy, &item.Title, &item.Content,
		&item.Type, &item.Status, &item.UpvotesCount, &item.DownvotesCount,
		&publishedAt, &item.CreatedAt, &item.UpdatedAt,
		&item.CompanyID, &item.WorkspaceName, &item.CreatorName, &userVote,
	)
	if err != nil {
		return Note{}, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		item.PublishedAt = &t
	}
	if userVote.Valid {
		v := userVote.String
		item.UserVote = &v
	}
	return item, nil
}

// GetNote loads a note with its workspace, creator, tags, and the viewer's
// own vote. It performs no permission checks; callers apply policy.
func (s *PostgresStore) GetNote(ctx context.Context, noteID, viewerID string) (Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+noteColumns+noteJoins+` WHERE n.id=$2`, viewerID, noteID)
	item, err := scanNote(row)
	if err != nil {
		return Note{}, err
	}
	if err := s.loadTags(ctx, []*Note{&item}); err != nil {
		return Note{}, err
	}
	return item, nil
}

// ListPublicNotes returns the company's public notes visible to the viewer:
// everyone's published notes plus the viewer's own drafts (never other
// users' drafts), newest first.
func (s *PostgresStore) ListPublicNotes(ctx context.Context, companyID, viewerID string, f NoteFilter) ([]Note, int, error) {
	where := []string{`n.type = 'public'`, `w.company_id = $2`}
	args := []any{viewerID, companyID}

	switch f.Status {
	case "draft":
		where = append(where, fmt.Sprintf(`n.created_by = $%d AND n.status = 'draft'`, len(args)+1))
		args = append(args, viewerID)
	case "published":
		where = append(where, `n.status = 'published'`)
	default:
		where = append(where, fmt.Sprintf(`(n.status = 'published' OR (n.created_by = $%d AND n.status = 'draft'))`, len(args)+1))
		args = append(args, viewerID)
	}

	where, args = appendNoteFilters(where, args, f)

	return s.listNotes(ctx, where, args, `n.created_at DESC`, f)
}

// ListPrivateNotes returns only the viewer's own private notes, most
// recently edited first.
func (s *PostgresStore) ListPrivateNotes(ctx context.Context, viewerID string, f NoteFilter) ([]Note, int, error) {
	where := []string{`n.type = 'private'`, `n.created_by = $1`}
	args := []any{viewerID}

	switch f.Status {
	case "draft":
		where = append(where, `n.status = 'draft'`)
	case "published":
		where = append(where, `n.status = 'published'`)
	}

	where, args = appendNoteFilters(where, args, f)

	return s.listNotes(ctx, where, args, `n.updated_at DESC`, f)
}

func appendNoteFilters(where []string, args []any, f NoteFilter) ([]string, []any) {
	if f.Search != "" {
		where = append(where, fmt.Sprintf(`n.title ILIKE $%d`, len(args)+1))
		args = append(args, "%"+f.Search+"%")
	}
	if f.WorkspaceID != "" {
		where = append(where, fmt.Sprintf(`n.workspace_id = $%d`, len(args)+1))
		args = append(args, f.WorkspaceID)
	}
	return where, args
}

func (s *PostgresStore) listNotes(ctx context.Context, where []string, args []any, orderBy string, f NoteFilter) ([]Note, int, error) {
	whereSQL := strings.Join(where, " AND ")

	var total int
	countSQL := `SELECT count(*)` + noteJoins + ` WHERE ` + whereSQL
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		noteColumns, noteJoins, whereSQL, orderBy, len(args)+1, len(args)+2)
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := s.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		item, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notes: %w", err)
	}

	refs := make([]*Note, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	if err := s.loadTags(ctx, refs); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *PostgresStore) loadTags(ctx context.Context, notes []*Note) error {
	if len(notes) == 0 {
		return nil
	}
	placeholders := make([]string, len(notes))
	args := make([]any, len(notes))
	byID := make(map[string]*Note, len(notes))
	for i, note := range notes {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = note.ID
		byID[note.ID] = note
		note.Tags = make([]Tag, 0)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT nt.note_id, t.id, t.name, t.slug, t.created_at
		FROM note_tags nt
		JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id IN (%s)
		ORDER BY t.name ASC
	`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return fmt.Errorf("load note tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID string
		var tag Tag
		if err := rows.Scan(&noteID, &tag.ID, &tag.Name, &tag.Slug, &tag.CreatedAt); err != nil {
			return fmt.Errorf("scan note tag: %w", err)
		}
		if note, ok := byID[noteID]; ok {
			note.Tags = append(note.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate note tags: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateNote(ctx context.Context, item Note, tagIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create note: %w", err)
	}
	defer tx.Rollback()

	var publishedAt any
	if item.PublishedAt != nil {
		publishedAt = *item.PublishedAt
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notes (id, workspace_id, created_by, title, content, type, status, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.WorkspaceID, item.CreatedBy, item.Title, item.Content, item.Type, item.Status, publishedAt); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	if err := replaceNoteTags(ctx, tx, item.ID, tagIDs, false); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create note: %w", err)
	}
	return nil
}

// UpdateNote applies a partial update inside one transaction with the note
// row locked. When title or content change, the prior values are snapshotted
// into note_histories first, attributed to the editing user. published_at is
// set exactly once, on the first draft-to-published transition.
func (s *PostgresStore) UpdateNote(ctx context.Context, p UpdateNoteParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update note: %w", err)
	}
	defer tx.Rollback()

	var (
		title, content, noteType, status string
		publishedAt                      sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `
		SELECT title, content, type, status, published_at
		FROM notes
		WHERE id=$1
		FOR UPDATE
	`, p.NoteID).Scan(&title, &content, &noteType, &status, &publishedAt)
	if err != nil {
		return err
	}

	newTitle := coalesce(p.Title, title)
	newContent := coalesce(p.Content, content)
	newType := coalesce(p.Type, noteType)
	newStatus := coalesce(p.Status, status)

	if newTitle != title || newContent != content {
		if err := insertHistory(ctx, tx, p.NoteID, p.EditorID, title, content); err != nil {
			return err
		}
	}

	setPublishedNow := newStatus == "published" && status == "draft" && !publishedAt.Valid

	if _, err := tx.ExecContext(ctx, `
		UPDATE notes
		SET title=$2, content=$3, type=$4, status=$5,
			published_at = CASE WHEN $6 THEN NOW() ELSE published_at END,
			updated_at = NOW()
		WHERE id=$1
	`, p.NoteID, newTitle, newContent, newType, newStatus, setPublishedNow); err != nil {
		return fmt.Errorf("update note: %w", err)
	}

	if p.TagIDs != nil {
		if err := replaceNoteTags(ctx, tx, p.NoteID, p.TagIDs, true); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update note: %w", err)
	}
	return nil
}

// RestoreNote copies a history entry's title and content back onto the note.
// The overwritten state gets its own history entry, same as any update.
func (s *PostgresStore) RestoreNote(ctx context.Context, noteID, historyID, editorID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore note: %w", err)
	}
	defer tx.Rollback()

	var title, content string
	err = tx.QueryRowContext(ctx, `
		SELECT title, content FROM notes WHERE id=$1 FOR UPDATE
	`, noteID).Scan(&title, &content)
	if err != nil {
		return err
	}

	var histTitle, histContent string
	err = tx.QueryRowContext(ctx, `
		SELECT title, content FROM note_histories WHERE id=$1 AND note_id=$2
	`, historyID, noteID).Scan(&histTitle, &histContent)
	if err != nil {
		return err
	}

	if histTitle != title || histContent != content {
		if err := insertHistory(ctx, tx, noteID, editorID, title, content); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE notes SET title=$2, content=$3, updated_at=NOW() WHERE id=$1
	`, noteID, histTitle, histContent); err != nil {
		return fmt.Errorf("restore note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore note: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, noteID string) error {
	// Histories, votes, and tag links go with the note via FK cascades.
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, noteID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListNoteHistories(ctx context.Context, noteID string) ([]NoteHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.note_id, h.user_id, h.title, h.content, h.created_at, u.full_name
		FROM note_histories h
		JOIN users u ON u.id = h.user_id
		WHERE h.note_id=$1
		ORDER BY h.created_at DESC
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list note histories: %w", err)
	}
	defer rows.Close()

	items := make([]NoteHistory, 0)
	for rows.Next() {
		var item NoteHistory
		if err := rows.Scan(&item.ID, &item.NoteID, &item.UserID, &item.Title, &item.Content,
			&item.CreatedAt, &item.UserName); err != nil {
			return nil, fmt.Errorf("scan note history: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note histories: %w", err)
	}
	return items, nil
}

// VoteNote runs the vote state machine for one user on one note. The note
// row is locked for the whole transaction so the vote row and the
// denormalized counters always move together, even under duplicate clicks.
func (s *PostgresStore) VoteNote(ctx context.Context, noteID, userID string, requested voting.Type) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vote: %w", err)
	}
	defer tx.Rollback()

	var upvotes, downvotes int
	err = tx.QueryRowContext(ctx, `
		SELECT upvotes_count, downvotes_count FROM notes WHERE id=$1 FOR UPDATE
	`, noteID).Scan(&upvotes, &downvotes)
	if err != nil {
		return err
	}

	current := voting.None
	var voteID string
	err = tx.QueryRowContext(ctx, `
		SELECT id, vote_type FROM note_votes WHERE note_id=$1 AND user_id=$2
	`, noteID, userID).Scan(&voteID, &current)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("lookup existing vote: %w", err)
	}

	transition := voting.Apply(current, requested)
	switch transition.Op {
	case voting.OpInsert:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO note_votes (id, note_id, user_id, vote_type)
			VALUES ($1, $2, $3, $4)
		`, util.NewID("nv"), noteID, userID, string(requested))
	case voting.OpRemove:
		_, err = tx.ExecContext(ctx, `DELETE FROM note_votes WHERE id=$1`, voteID)
	case voting.OpSwitch:
		_, err = tx.ExecContext(ctx, `
			UPDATE note_votes SET vote_type=$2, updated_at=NOW() WHERE id=$1
		`, voteID, string(requested))
	}
	if err != nil {
		return fmt.Errorf("apply vote row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE notes
		SET upvotes_count = upvotes_count + $2, downvotes_count = downvotes_count + $3
		WHERE id=$1
	`, noteID, transition.UpvoteDelta, transition.DownvoteDelta); err != nil {
		return fmt.Errorf("update vote counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vote: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, noteID, editorID, title, content string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO note_histories (id, note_id, user_id, title, content)
		VALUES ($1, $2, $3, $4, $5)
	`, util.NewID("nh"), noteID, editorID, title, content); err != nil {
		return fmt.Errorf("insert note history: %w", err)
	}
	return nil
}

func replaceNoteTags(ctx context.Context, tx *sql.Tx, noteID string, tagIDs []string, clearFirst bool) error {
	if clearFirst {
		if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id=$1`, noteID); err != nil {
			return fmt.Errorf("clear note tags: %w", err)
		}
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO note_tags (note_id, tag_id) VALUES ($1, $2)
			ON CONFLICT (note_id, tag_id) DO NOTHING
		`, noteID, tagID); err != nil {
			return fmt.Errorf("attach tag %s: %w", tagID, err)
		}
	}
	return nil
}

func coalesce(override *string, current string) string {
	if override != nil {
		return *override
	}
	return current
}
