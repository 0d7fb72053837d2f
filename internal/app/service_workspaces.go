package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"notehive/api/internal/policy"
	"notehive/api/internal/store"
	"notehive/api/internal/util"
)

type WorkspaceInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

func (s *Service) ListWorkspaces(ctx context.Context, sess Session, page, perPage int) (Paginated, error) {
	page, perPage = clampPage(page, perPage, 10, 20)
	items, total, err := s.store.ListWorkspaces(ctx, sess.CompanyID, page, perPage)
	if err != nil {
		return Paginated{}, err
	}
	data := make([]map[string]any, 0, len(items))
	for _, ws := range items {
		data = append(data, workspacePayload(ws))
	}
	return paginate(data, total, page, perPage), nil
}

func (s *Service) GetWorkspace(ctx context.Context, sess Session, id string) (map[string]any, error) {
	ws, err := s.store.GetWorkspace(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Workspace not found")
		}
		return nil, err
	}
	if !policy.CanViewWorkspace(sess.actor(), policy.WorkspaceResource{CompanyID: ws.CompanyID}) {
		return nil, accessDenied("")
	}
	return workspacePayload(ws), nil
}

// CreateWorkspace is admin-only. The slug defaults to a slugified name
// and must be unique within the company.
func (s *Service) CreateWorkspace(ctx context.Context, sess Session, input WorkspaceInput) (map[string]any, error) {
	if !policy.CanManageWorkspace(sess.actor(), policy.WorkspaceResource{CompanyID: sess.CompanyID}) {
		return nil, accessDenied("Only admins can manage workspaces")
	}

	fe := fieldErrors{}
	checkLength(fe, "name", input.Name, 3, 255)
	if input.Slug == "" {
		input.Slug = slugify(input.Name)
	}
	checkLength(fe, "slug", input.Slug, 3, 255)
	if _, bad := fe["slug"]; !bad {
		checkSlug(fe, "slug", input.Slug)
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ws := store.Workspace{
		ID:          util.NewID("ws"),
		CompanyID:   sess.CompanyID,
		CreatedBy:   sess.UserID,
		Name:        strings.TrimSpace(input.Name),
		Slug:        input.Slug,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatorName: sess.FullName,
	}
	if err := s.store.CreateWorkspace(ctx, ws); err != nil {
		if field, ok := store.UniqueViolation(err); ok {
			return nil, conflict(field, field+" is already taken")
		}
		return nil, err
	}
	s.log.Info().Str("workspace_id", ws.ID).Str("company_id", ws.CompanyID).Msg("workspace created")
	return workspacePayload(ws), nil
}

func (s *Service) UpdateWorkspace(ctx context.Context, sess Session, id string, input WorkspaceInput) (map[string]any, error) {
	ws, err := s.store.GetWorkspace(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Workspace not found")
		}
		return nil, err
	}
	if !policy.CanManageWorkspace(sess.actor(), policy.WorkspaceResource{CompanyID: ws.CompanyID}) {
		return nil, accessDenied("Only admins can manage workspaces")
	}

	if input.Name == "" {
		input.Name = ws.Name
	}
	if input.Slug == "" {
		input.Slug = ws.Slug
	}
	if input.Description == "" {
		input.Description = ws.Description
	}
	fe := fieldErrors{}
	checkLength(fe, "name", input.Name, 3, 255)
	checkLength(fe, "slug", input.Slug, 3, 255)
	if _, bad := fe["slug"]; !bad {
		checkSlug(fe, "slug", input.Slug)
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateWorkspace(ctx, id, strings.TrimSpace(input.Name), input.Slug, strings.TrimSpace(input.Description)); err != nil {
		if field, ok := store.UniqueViolation(err); ok {
			return nil, conflict(field, field+" is already taken")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Workspace not found")
		}
		return nil, err
	}

	ws, err = s.store.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	return workspacePayload(ws), nil
}

func (s *Service) DeleteWorkspace(ctx context.Context, sess Session, id string) error {
	ws, err := s.store.GetWorkspace(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Workspace not found")
		}
		return err
	}
	if !policy.CanManageWorkspace(sess.actor(), policy.WorkspaceResource{CompanyID: ws.CompanyID}) {
		return accessDenied("Only admins can manage workspaces")
	}
	if err := s.store.DeleteWorkspace(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Workspace not found")
		}
		return err
	}
	s.log.Info().Str("workspace_id", id).Msg("workspace deleted")
	return nil
}

func workspacePayload(ws store.Workspace) map[string]any {
	payload := map[string]any{
		"id":          ws.ID,
		"companyId":   ws.CompanyID,
		"createdBy":   ws.CreatedBy,
		"name":        ws.Name,
		"slug":        ws.Slug,
		"description": ws.Description,
		"createdAt":   ws.CreatedAt,
		"updatedAt":   ws.UpdatedAt,
	}
	if ws.CreatorName != "" {
		payload["creator"] = map[string]any{
			"id":       ws.CreatedBy,
			"fullName": ws.CreatorName,
		}
	}
	return payload
}
