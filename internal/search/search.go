// Package search provides company-scoped full-text search over published
// public notes, backed by Meilisearch when configured and healthy, with a
// Postgres fallback otherwise.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
	WorkspaceID   string `json:"workspaceId"`
	WorkspaceName string `json:"workspaceName,omitempty"`
}

// Query describes a search request. CompanyID is mandatory; results never
// cross the tenant boundary.
type Query struct {
	Text        string
	CompanyID   string
	WorkspaceID string
	Limit       int
	Offset      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// NoteRecord is the data indexed per note. Only published public notes are
// ever indexed.
type NoteRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	WorkspaceID   string `json:"workspaceId"`
	WorkspaceName string `json:"workspaceName"`
	CompanyID     string `json:"companyId"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}
