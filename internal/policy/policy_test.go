package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	admin    = Actor{ID: "usr_admin", CompanyID: "co_1", Role: RoleAdmin}
	member   = Actor{ID: "usr_member", CompanyID: "co_1", Role: RoleUser}
	outsider = Actor{ID: "usr_out", CompanyID: "co_2", Role: RoleAdmin}
)

func TestWorkspacePermissions(t *testing.T) {
	w := WorkspaceResource{CompanyID: "co_1"}

	require.True(t, CanViewWorkspace(member, w))
	require.True(t, CanViewWorkspace(admin, w))
	require.False(t, CanViewWorkspace(outsider, w), "tenant isolation beats admin role")

	require.True(t, CanManageWorkspace(admin, w))
	require.False(t, CanManageWorkspace(member, w))
	require.False(t, CanManageWorkspace(outsider, w))
}

func TestNoteVisibility(t *testing.T) {
	public := NoteResource{CompanyID: "co_1", CreatedBy: member.ID, Type: NotePublic}
	private := NoteResource{CompanyID: "co_1", CreatedBy: member.ID, Type: NotePrivate}

	require.True(t, CanViewNote(member, public))
	require.True(t, CanViewNote(admin, public))
	require.False(t, CanViewNote(outsider, public))

	require.True(t, CanViewNote(member, private))
	require.False(t, CanViewNote(admin, private), "private notes hidden even from admins")
	require.False(t, CanViewNote(outsider, private))
}

func TestNoteMutation(t *testing.T) {
	public := NoteResource{CompanyID: "co_1", CreatedBy: member.ID, Type: NotePublic}
	private := NoteResource{CompanyID: "co_1", CreatedBy: member.ID, Type: NotePrivate}

	require.True(t, CanMutateNote(member, public), "creator may always mutate")
	require.True(t, CanMutateNote(member, private))
	require.True(t, CanMutateNote(admin, public), "admin may mutate public notes")
	require.False(t, CanMutateNote(admin, private), "admin may not touch another user's private note")

	other := Actor{ID: "usr_other", CompanyID: "co_1", Role: RoleUser}
	require.False(t, CanMutateNote(other, public))
	require.False(t, CanMutateNote(other, private))
	require.False(t, CanMutateNote(outsider, public))
}

func TestVotePermissions(t *testing.T) {
	public := NoteResource{CompanyID: "co_1", CreatedBy: member.ID, Type: NotePublic}
	private := NoteResource{CompanyID: "co_1", CreatedBy: member.ID, Type: NotePrivate}

	require.True(t, CanVoteNote(member, public))
	require.True(t, CanVoteNote(admin, public))
	require.False(t, CanVoteNote(member, private), "voting is public-only")
	require.False(t, CanVoteNote(member.withCompany("co_2"), public))
}

func (a Actor) withCompany(companyID string) Actor {
	a.CompanyID = companyID
	return a
}
