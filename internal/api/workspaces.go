package api

import (
	"context"

	"chatflow/client/internal/models"
)

const createWorkspaceMutation = `mutation CreateWorkspace($createWorkspaceInput: CreateWorkspaceInput!) {
  createWorkspace(createWorkspaceInput: $createWorkspaceInput) {
    id
    name
    slug
    description
  }
}`

const workspacesQuery = `query Workspaces {
  workspaces {
    id
    name
    slug
    description
  }
}`

const workspaceQuery = `query Workspace($id: Int!) {
  workspace(id: $id) {
    id
    name
    slug
    description
  }
}`

const workspaceBySlugQuery = `query WorkspaceBySlug($slug: String!) {
  workspaceBySlug(slug: $slug) {
    id
    name
    slug
    description
  }
}`

const myWorkspaceQuery = `query MyWorkspace {
  myWorkspace {
    id
    name
    slug
    description
  }
}`

const inviteUserMutation = `mutation InviteUser($inviteUserInput: InviteUserInput!) {
  inviteUser(inviteUserInput: $inviteUserInput) {
    success
    message
  }
}`

const acceptInvitationMutation = `mutation AcceptInvitation($token: String!) {
  acceptInvitation(token: $token) {
    success
    message
  }
}`

const workspaceInvitationsQuery = `query WorkspaceInvitations {
  workspaceInvitations {
    id
    email
    status
    createdAt
  }
}`

// NewWorkspace is the createWorkspace input.
type NewWorkspace struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// CreateWorkspace creates a workspace.
func (c *Client) CreateWorkspace(ctx context.Context, in NewWorkspace) (models.Workspace, error) {
	var ws models.Workspace
	err := c.do(ctx, "CreateWorkspace", createWorkspaceMutation, map[string]any{"createWorkspaceInput": in}, "createWorkspace", &ws)
	return ws, err
}

// Workspaces lists every workspace.
func (c *Client) Workspaces(ctx context.Context) ([]models.Workspace, error) {
	var list []models.Workspace
	err := c.do(ctx, "Workspaces", workspacesQuery, nil, "workspaces", &list)
	return list, err
}

// Workspace returns one workspace by numeric id.
func (c *Client) Workspace(ctx context.Context, id models.ID) (models.Workspace, error) {
	n, err := number("Workspace", id)
	if err != nil {
		return models.Workspace{}, err
	}
	var ws models.Workspace
	err = c.do(ctx, "Workspace", workspaceQuery, map[string]any{"id": int(n)}, "workspace", &ws)
	return ws, err
}

// WorkspaceBySlug returns one workspace by slug.
func (c *Client) WorkspaceBySlug(ctx context.Context, slug string) (models.Workspace, error) {
	var ws models.Workspace
	err := c.do(ctx, "WorkspaceBySlug", workspaceBySlugQuery, map[string]any{"slug": slug}, "workspaceBySlug", &ws)
	return ws, err
}

// MyWorkspace returns the caller's workspace.
func (c *Client) MyWorkspace(ctx context.Context) (models.Workspace, error) {
	var ws models.Workspace
	err := c.do(ctx, "MyWorkspace", myWorkspaceQuery, nil, "myWorkspace", &ws)
	return ws, err
}

// InviteUser sends a workspace invitation to email.
func (c *Client) InviteUser(ctx context.Context, email string) (models.OperationResult, error) {
	var res models.OperationResult
	vars := map[string]any{"inviteUserInput": map[string]any{"email": email}}
	err := c.do(ctx, "InviteUser", inviteUserMutation, vars, "inviteUser", &res)
	return res, err
}

// AcceptInvitation joins the workspace behind token.
func (c *Client) AcceptInvitation(ctx context.Context, token string) (models.OperationResult, error) {
	var res models.OperationResult
	err := c.do(ctx, "AcceptInvitation", acceptInvitationMutation, map[string]any{"token": token}, "acceptInvitation", &res)
	return res, err
}

// WorkspaceInvitations lists pending invitations of the caller's workspace.
func (c *Client) WorkspaceInvitations(ctx context.Context) ([]models.Invitation, error) {
	var list []models.Invitation
	err := c.do(ctx, "WorkspaceInvitations", workspaceInvitationsQuery, nil, "workspaceInvitations", &list)
	return list, err
}
