package app

import (
	"github.com/avdeck/cueroom/internal/domain"
)

// Inbound message types.
const (
	MsgJoinProject    = "join-project"
	MsgLeaveProject   = "leave-project"
	MsgCueCreate      = "cue:create"
	MsgCueUpdate      = "cue:update"
	MsgCueDelete      = "cue:delete"
	MsgCueMove        = "cue:move"
	MsgTrackCreate    = "track:create"
	MsgTrackUpdate    = "track:update"
	MsgTrackDelete    = "track:delete"
	MsgSettingsUpdate = "settings:update"
	MsgCursorPosition = "cursor:position"
)

// StateEvent is the full snapshot sent privately to a joining
// connection. Cues are ordered per track with their derived numbers
// assigned.
type StateEvent struct {
	Type        string          `json:"type"`
	Project     domain.Project  `json:"project"`
	Tracks      []domain.Track  `json:"tracks"`
	Cues        []domain.Cue    `json:"cues"`
	Settings    domain.Settings `json:"settings"`
	Members     []domain.Member `json:"members"`
	OnlineUsers []Presence      `json:"onlineUsers"`
}

// CueEvent carries the canonical cue after create/update/move.
type CueEvent struct {
	Type   string     `json:"type"`
	Cue    domain.Cue `json:"cue"`
	UserID string     `json:"userId"`
}

type CueDeletedEvent struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

type TrackEvent struct {
	Type   string       `json:"type"`
	Track  domain.Track `json:"track"`
	UserID string       `json:"userId"`
}

type TrackDeletedEvent struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

// SettingsEvent carries the full merged settings map, not the patch.
type SettingsEvent struct {
	Type     string          `json:"type"`
	Settings domain.Settings `json:"settings"`
	UserID   string          `json:"userId"`
}

type MemberEvent struct {
	Type        string `json:"type"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// CursorEvent is advisory presence, relayed to other members and
// never persisted.
type CursorEvent struct {
	Type        string  `json:"type"`
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Time        float64 `json:"time"`
	TrackID     string  `json:"trackId"`
}

// ErrorEvent goes to the originator only, never broadcast.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: "error", Message: message}
}
