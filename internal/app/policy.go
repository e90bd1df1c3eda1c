package app

import "github.com/avdeck/cueroom/internal/domain"

// Op is an operation kind gated by the role policy.
type Op int

const (
	OpRead Op = iota
	OpEditCues
	OpEditTracks
	OpEditSettings
	OpManageMembers
	OpDeleteProject
)

// Can is the role policy table: viewers read, editors mutate cues,
// tracks and settings, and only the owner manages members or deletes
// the project.
func Can(role domain.Role, op Op) bool {
	switch role {
	case domain.RoleOwner:
		return true
	case domain.RoleEditor:
		return op == OpRead || op == OpEditCues || op == OpEditTracks || op == OpEditSettings
	case domain.RoleViewer:
		return op == OpRead
	default:
		return false
	}
}
