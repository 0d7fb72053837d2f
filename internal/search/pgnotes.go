package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgNotes implements Searcher against Postgres directly, as the fallback
// when Meilisearch is not configured or unreachable.
type PgNotes struct {
	db *sql.DB
}

func NewPgNotes(db *sql.DB) *PgNotes {
	return &PgNotes{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgNotes) Healthy() bool {
	return true
}

// Search runs a title/content ILIKE query over the company's published
// public notes.
func (p *PgNotes) Search(q Query) ([]Result, int, error) {
	return p.SearchContext(context.Background(), q)
}

func (p *PgNotes) SearchContext(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := `w.company_id = $1
		AND n.type = 'public' AND n.status = 'published'
		AND (n.title ILIKE $2 OR n.content ILIKE $2)`
	args := []any{q.CompanyID, "%" + q.Text + "%"}
	if q.WorkspaceID != "" {
		where += ` AND n.workspace_id = $3`
		args = append(args, q.WorkspaceID)
	}

	var total int
	countSQL := `SELECT count(*) FROM notes n JOIN workspaces w ON w.id = n.workspace_id WHERE ` + where
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT n.id, n.title, left(n.content, 200), n.workspace_id, w.name
		FROM notes n
		JOIN workspaces w ON w.id = n.workspace_id
		WHERE %s
		ORDER BY n.published_at DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.WorkspaceID, &r.WorkspaceName); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, total, nil
}

// LoadAllRecords reads every indexable note for a full reindex.
func (p *PgNotes) LoadAllRecords(ctx context.Context) ([]NoteRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT n.id, n.title, n.content, n.workspace_id, w.name, w.company_id
		FROM notes n
		JOIN workspaces w ON w.id = n.workspace_id
		WHERE n.type = 'public' AND n.status = 'published'
	`)
	if err != nil {
		return nil, fmt.Errorf("load search records: %w", err)
	}
	defer rows.Close()

	records := make([]NoteRecord, 0)
	for rows.Next() {
		var rec NoteRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Content, &rec.WorkspaceID, &rec.WorkspaceName, &rec.CompanyID); err != nil {
			return nil, fmt.Errorf("scan search record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search records: %w", err)
	}
	return records, nil
}
