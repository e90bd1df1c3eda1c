package domain

import "time"

// Role governs which operation kinds a project member may perform.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// NormalizeRole maps unknown role strings to the least-privileged role.
func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleOwner, RoleEditor, RoleViewer:
		return Role(role)
	default:
		return RoleViewer
	}
}

// DefaultExportID seeds the integer export identifier of new projects.
const DefaultExportID = 101

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	ExportID    int       `json:"export_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Member is the (project, user) pair carrying the role. Exactly one
// member per project holds RoleOwner.
type Member struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	UserID      string     `json:"user_id"`
	Role        Role       `json:"role"`
	InvitedAt   time.Time  `json:"invited_at"`
	AcceptedAt  *time.Time `json:"accepted_at"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
}

// Settings is the project-scoped key/value map. Updates merge keys,
// they never replace the whole map.
type Settings map[string]any

// Merge returns a copy of s with the keys of patch applied on top.
func (s Settings) Merge(patch Settings) Settings {
	merged := make(Settings, len(s)+len(patch))
	for k, v := range s {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}
