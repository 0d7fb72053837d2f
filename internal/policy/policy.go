// Package policy centralizes the authorization rules for workspaces and
// notes. Every rule takes the acting user and the resource attributes and
// returns allow/deny; tenant isolation is always checked first.
package policy

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

const (
	NotePublic  = "public"
	NotePrivate = "private"
)

// Actor is the authenticated user a request runs as.
type Actor struct {
	ID        string
	CompanyID string
	Role      Role
}

// WorkspaceResource carries the workspace attributes permissions depend on.
type WorkspaceResource struct {
	CompanyID string
}

// NoteResource carries the note attributes permissions depend on. CompanyID
// is the company of the workspace the note lives in.
type NoteResource struct {
	CompanyID string
	CreatedBy string
	Type      string
}

func (a Actor) isAdmin() bool {
	return a.Role == RoleAdmin
}

// CanViewWorkspace: any user of the owning company.
func CanViewWorkspace(a Actor, w WorkspaceResource) bool {
	return a.CompanyID == w.CompanyID
}

// CanManageWorkspace: create, update, and delete are admin-only, and only
// within the admin's own company.
func CanManageWorkspace(a Actor, w WorkspaceResource) bool {
	return a.CompanyID == w.CompanyID && a.isAdmin()
}

// CanViewNote: public notes are visible company-wide, private notes only to
// their creator.
func CanViewNote(a Actor, n NoteResource) bool {
	if a.CompanyID != n.CompanyID {
		return false
	}
	if n.Type == NotePrivate {
		return n.CreatedBy == a.ID
	}
	return true
}

// CanMutateNote guards update, delete, restore, and history reads. The
// creator may always act on their own note; an admin may act on public notes
// only — another user's private note is off limits even to admins.
func CanMutateNote(a Actor, n NoteResource) bool {
	if a.CompanyID != n.CompanyID {
		return false
	}
	if n.CreatedBy == a.ID {
		return true
	}
	return a.isAdmin() && n.Type == NotePublic
}

// CanVoteNote: voting is limited to public notes within the voter's company.
func CanVoteNote(a Actor, n NoteResource) bool {
	return a.CompanyID == n.CompanyID && n.Type == NotePublic
}
