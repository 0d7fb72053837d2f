package store

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	TypePublic  = "public"
	TypePrivate = "private"

	StatusDraft     = "draft"
	StatusPublished = "published"
)

type Company struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID           string
	CompanyID    string
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Workspace struct {
	ID          string
	CompanyID   string
	CreatedBy   string
	Name        string
	Slug        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// Joined for API responses
	CreatorName string
}

type Note struct {
	ID             string
	WorkspaceID    string
	CreatedBy      string
	Title          string
	Content        string
	Type           string
	Status         string
	UpvotesCount   int
	DownvotesCount int
	PublishedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// Joined for API responses
	CompanyID     string
	WorkspaceName string
	CreatorName   string
	Tags          []Tag
	// UserVote is the requesting user's vote on this note, nil when none.
	UserVote *string
}

type Tag struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

// NoteHistory is an immutable snapshot of a note's title and content taken
// before an update overwrote them.
type NoteHistory struct {
	ID        string
	NoteID    string
	UserID    string
	Title     string
	Content   string
	CreatedAt time.Time
	// Joined for API responses
	UserName string
}

type NoteVote struct {
	ID        string
	NoteID    string
	UserID    string
	VoteType  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoteFilter narrows note listings. Zero values mean "no filter";
// Status accepts draft, published, or all.
type NoteFilter struct {
	Page        int
	PerPage     int
	Search      string
	Status      string
	WorkspaceID string
}

// UpdateNoteParams describes a partial note update. Nil pointer fields keep
// the stored value; a nil TagIDs slice leaves the tag set untouched while a
// non-nil one replaces it entirely.
type UpdateNoteParams struct {
	NoteID   string
	EditorID string
	Title    *string
	Content  *string
	Type     *string
	Status   *string
	TagIDs   []string
}
