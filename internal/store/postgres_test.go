package store

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueViolationMapsConstraints(t *testing.T) {
	cases := []struct {
		constraint string
		field      string
	}{
		{"companies_name_key", "name"},
		{"companies_slug_key", "slug"},
		{"workspaces_company_id_slug_key", "slug"},
		{"tags_slug_key", "slug"},
		{"users_email_key", "email"},
	}
	for _, tc := range cases {
		err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})
		field, ok := UniqueViolation(err)
		if !ok || field != tc.field {
			t.Fatalf("constraint %s: expected %s, got %q ok=%v", tc.constraint, tc.field, field, ok)
		}
	}
}

func TestUniqueViolationIgnoresOtherErrors(t *testing.T) {
	if _, ok := UniqueViolation(fmt.Errorf("plain failure")); ok {
		t.Fatalf("plain errors must not map")
	}
	if _, ok := UniqueViolation(&pgconn.PgError{Code: "23503", ConstraintName: "users_email_key"}); ok {
		t.Fatalf("non-unique codes must not map")
	}
	if _, ok := UniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "unknown_key"}); ok {
		t.Fatalf("unknown constraints must not map")
	}
}

func TestForeignKeyViolationMapsKnownConstraints(t *testing.T) {
	field, ok := ForeignKeyViolation(&pgconn.PgError{Code: "23503", ConstraintName: "note_tags_tag_id_fkey"})
	if !ok || field != "tagIds" {
		t.Fatalf("expected tagIds, got %q ok=%v", field, ok)
	}
	field, ok = ForeignKeyViolation(&pgconn.PgError{Code: "23503", ConstraintName: "notes_workspace_id_fkey"})
	if !ok || field != "workspaceId" {
		t.Fatalf("expected workspaceId, got %q ok=%v", field, ok)
	}
	if _, ok := ForeignKeyViolation(&pgconn.PgError{Code: "23503", ConstraintName: "note_votes_user_id_fkey"}); ok {
		t.Fatalf("other FK constraints must not map")
	}
}
