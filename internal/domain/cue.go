package domain

import "time"

// DefaultMarkerColor matches the seed color clients render for new cues.
const DefaultMarkerColor = "#ff4444"

// Cue is a time-stamped marker on a track. Display order is by
// ascending Time; SortOrder only breaks ties between equal times
// (creation order). Number is the 1-based rank in the time-sorted
// list; it is derived on read and never persisted.
type Cue struct {
	ID          string    `json:"id"`
	TrackID     string    `json:"track_id"`
	Name        string    `json:"name"`
	Time        float64   `json:"time"`
	Description string    `json:"description"`
	Fade        float64   `json:"fade"`
	MarkerColor string    `json:"marker_color"`
	SortOrder   int       `json:"sort_order"`
	CreatedBy   string    `json:"created_by,omitempty"`
	Number      int       `json:"number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
