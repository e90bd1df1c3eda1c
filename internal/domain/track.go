package domain

import "time"

type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// NormalizeMediaType defaults anything that is not video to audio.
func NormalizeMediaType(mt string) MediaType {
	if MediaType(mt) == MediaVideo {
		return MediaVideo
	}
	return MediaAudio
}

// Track is a media lane inside a project. SortOrder is the display
// position, it has nothing to do with time.
type Track struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Name          string    `json:"name"`
	MediaType     MediaType `json:"media_type"`
	MediaFilename string    `json:"media_filename,omitempty"`
	MediaKey      string    `json:"media_s3_key,omitempty"`
	MediaSize     int64     `json:"media_size"`
	MediaDuration float64   `json:"media_duration"`
	SortOrder     int       `json:"sort_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
