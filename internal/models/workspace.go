package models

// Workspace groups users and rooms under a slug.
type Workspace struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// Invitation is a pending or accepted workspace invitation.
type Invitation struct {
	ID        ID        `json:"id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt Timestamp `json:"createdAt"`
}

// OperationResult is returned by inviteUser and acceptInvitation.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MessageResult is returned by register, forgotPassword and resetPassword.
type MessageResult struct {
	Message string `json:"message"`
}
