package app

import "github.com/avdeck/cueroom/internal/domain"

// Inbound operation payloads. Validation tags are enforced by the
// dispatcher before an operation is enqueued; tag failures produce a
// private error to the originator and nothing else.

type JoinPayload struct {
	ProjectID string `json:"projectId" validate:"required,uuid4"`
}

type CueCreatePayload struct {
	TrackID     string  `json:"track_id" validate:"required,uuid4"`
	Name        string  `json:"name"`
	Time        float64 `json:"time" validate:"gte=0"`
	Description string  `json:"description"`
	Fade        float64 `json:"fade" validate:"gte=0"`
	MarkerColor string  `json:"marker_color"`
}

type CueUpdatePayload struct {
	ID          string   `json:"id" validate:"required,uuid4"`
	Name        *string  `json:"name"`
	Time        *float64 `json:"time" validate:"omitempty,gte=0"`
	Description *string  `json:"description"`
	Fade        *float64 `json:"fade" validate:"omitempty,gte=0"`
	MarkerColor *string  `json:"marker_color"`
	SortOrder   *int     `json:"sort_order"`
}

type CueDeletePayload struct {
	ID string `json:"id" validate:"required,uuid4"`
}

type CueMovePayload struct {
	ID   string  `json:"id" validate:"required,uuid4"`
	Time float64 `json:"time" validate:"gte=0"`
}

type TrackCreatePayload struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
}

type TrackUpdatePayload struct {
	ID        string  `json:"id" validate:"required,uuid4"`
	Name      *string `json:"name"`
	SortOrder *int    `json:"sort_order"`
}

type TrackDeletePayload struct {
	ID string `json:"id" validate:"required,uuid4"`
}

// SettingsUpdatePayload carries a partial settings patch. An empty or
// absent patch is a valid no-op merge.
type SettingsUpdatePayload struct {
	Settings domain.Settings `json:"settings"`
}

type CursorPayload struct {
	Time    float64 `json:"time" validate:"gte=0"`
	TrackID string  `json:"trackId"`
}
