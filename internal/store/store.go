// Package store is the persistence service: typed CRUD over the
// durable entities. The dispatcher and the REST layer talk to the
// Store interface; Postgres is the production implementation and
// Memory backs tests and local development.
package store

import (
	"context"
	"errors"

	"github.com/avdeck/cueroom/internal/domain"
)

// ErrNotFound is returned when the referenced entity does not exist.
// Membership misses surface as ErrNotFound too so outsiders cannot
// distinguish "no access" from "no such project".
var ErrNotFound = errors.New("not found")

// ErrConflict is returned on unique constraint violations, e.g. a
// duplicate email or an already-present (project, user) member pair.
var ErrConflict = errors.New("already exists")

// ProjectWithRole pairs a project with the querying user's role in it.
type ProjectWithRole struct {
	domain.Project
	Role domain.Role `json:"role"`
}

// ProjectPatch carries partial project updates; nil fields are untouched.
type ProjectPatch struct {
	Name        *string
	Description *string
	ExportID    *int
}

// TrackPatch carries partial track updates; nil fields are untouched.
type TrackPatch struct {
	Name          *string
	SortOrder     *int
	MediaType     *domain.MediaType
	MediaFilename *string
	MediaKey      *string
	MediaSize     *int64
	MediaDuration *float64
}

// CuePatch carries partial cue updates; nil fields are untouched.
type CuePatch struct {
	Name        *string
	Time        *float64
	Description *string
	Fade        *float64
	MarkerColor *string
	SortOrder   *int
}

type Store interface {
	// Users.
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// Projects. CreateProject also inserts the owner member row.
	CreateProject(ctx context.Context, project domain.Project) (domain.Project, error)
	GetProject(ctx context.Context, id string) (domain.Project, error)
	UpdateProject(ctx context.Context, id string, patch ProjectPatch) (domain.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ListProjectsForUser(ctx context.Context, userID string) ([]ProjectWithRole, error)

	// Members.
	GetMember(ctx context.Context, projectID, userID string) (domain.Member, error)
	ListMembers(ctx context.Context, projectID string) ([]domain.Member, error)
	AddMember(ctx context.Context, member domain.Member) (domain.Member, error)
	UpdateMemberRole(ctx context.Context, projectID, userID string, role domain.Role) (domain.Member, error)
	RemoveMember(ctx context.Context, projectID, userID string) error

	// Tracks. DeleteTrack cascades to the track's cues.
	InsertTrack(ctx context.Context, track domain.Track) (domain.Track, error)
	GetTrack(ctx context.Context, id string) (domain.Track, error)
	ListTracks(ctx context.Context, projectID string) ([]domain.Track, error)
	UpdateTrack(ctx context.Context, id string, patch TrackPatch) (domain.Track, error)
	DeleteTrack(ctx context.Context, id string) error

	// Cues.
	InsertCue(ctx context.Context, cue domain.Cue) (domain.Cue, error)
	GetCue(ctx context.Context, id string) (domain.Cue, error)
	ListCues(ctx context.Context, trackIDs []string) ([]domain.Cue, error)
	UpdateCue(ctx context.Context, id string, patch CuePatch) (domain.Cue, error)
	DeleteCue(ctx context.Context, id string) error

	// Settings. Callers merge before upserting; the stored map is
	// replaced whole with the merged result.
	GetSettings(ctx context.Context, projectID string) (domain.Settings, error)
	UpsertSettings(ctx context.Context, projectID string, settings domain.Settings) error
}
