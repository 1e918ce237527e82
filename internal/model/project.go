package model

import "time"

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnedBy reports whether userID owns the project.
func (p *Project) OwnedBy(userID string) bool {
	return p.UserID == userID
}

type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateProjectInput is a partial update: only fields present in the
// request body are applied.
type UpdateProjectInput struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
}

type ProjectStats struct {
	Total int `json:"total"`
}
