package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/avdeck/cueroom/internal/domain"
	"github.com/avdeck/cueroom/internal/store"
	"github.com/avdeck/cueroom/internal/timeline"
)

// MediaStore is the slice of the media service the dispatcher needs:
// releasing a deleted track's blob.
type MediaStore interface {
	Delete(ctx context.Context, key string) error
}

// opTimeout bounds a queued operation's store calls. Queued operations
// are never cancelled by the originating connection going away.
const opTimeout = 10 * time.Second

// Dispatcher is the session coordinator: it validates and authorizes
// inbound operations, serializes them per project, executes them
// against the store and broadcasts the canonical result to the room.
type Dispatcher struct {
	registry *Registry
	store    store.Store
	media    MediaStore // nil disables blob release
	validate *validator.Validate

	qmu    sync.Mutex
	queues map[string]*serialQueue
}

func NewDispatcher(registry *Registry, st store.Store, media MediaStore) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		store:    st,
		media:    media,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		queues:   make(map[string]*serialQueue),
	}
}

// Connect registers a freshly authenticated connection.
func (d *Dispatcher) Connect(conn ConnID, userID, displayName string, sink EventSink) {
	d.registry.Register(conn, userID, displayName, sink)
}

// Identity reports the user behind a registered connection.
func (d *Dispatcher) Identity(conn ConnID) (userID, displayName string, ok bool) {
	return d.registry.Identity(conn)
}

// Disconnect tears down registry state for a closed connection. Runs
// synchronously on any termination path so presence is never left
// dangling.
func (d *Dispatcher) Disconnect(conn ConnID) {
	res, inRoom := d.registry.Unregister(conn)
	if inRoom {
		d.afterLeave(res)
	}
}

// Join runs the join handshake in the order that guarantees the
// snapshot reflects every mutation the joiner could otherwise miss:
// authorize, register presence, fetch snapshot, deliver privately,
// then announce to the others.
func (d *Dispatcher) Join(ctx context.Context, conn ConnID, p JoinPayload) {
	if err := d.validate.Struct(p); err != nil {
		d.sendTo(conn, errorEvent("Invalid payload"))
		return
	}
	userID, _, ok := d.registry.Identity(conn)
	if !ok {
		return
	}

	// Membership gate. A non-member gets the same answer as a
	// non-existent project.
	if _, err := d.store.GetMember(ctx, p.ProjectID, userID); err != nil {
		d.sendTo(conn, errorEvent("Project not found"))
		return
	}

	prior, switched, ok := d.registry.Join(conn, p.ProjectID)
	if !ok {
		return
	}
	if switched {
		d.afterLeave(prior)
	}

	state, err := d.snapshot(ctx, p.ProjectID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatcher").Str("project", p.ProjectID).Msg("snapshot failed")
		if res, inRoom := d.registry.Leave(conn); inRoom {
			d.afterLeave(res)
		}
		d.sendTo(conn, errorEvent("Failed to load project"))
		return
	}
	d.sendTo(conn, state)

	_, displayName, _ := d.registry.Identity(conn)
	d.broadcastExcept(p.ProjectID, conn, MemberEvent{Type: "member:joined", UserID: userID, DisplayName: displayName})
}

// Leave removes the connection from its room; the connection stays
// open and may join another project.
func (d *Dispatcher) Leave(conn ConnID) {
	if res, inRoom := d.registry.Leave(conn); inRoom {
		d.afterLeave(res)
	}
}

// afterLeave notifies the remaining members when the user's last
// connection left, and drops the project's queue once its room is
// empty. A queue whose worker is still draining stays in the map so
// that operations of a quick rejoin queue up behind the ones in
// flight instead of running concurrently with them.
func (d *Dispatcher) afterLeave(res LeaveResult) {
	if res.LastOfUser {
		d.broadcast(res.ProjectID, MemberEvent{Type: "member:left", UserID: res.UserID, DisplayName: res.DisplayName})
	}
	if len(d.registry.Sinks(res.ProjectID, "")) == 0 {
		d.qmu.Lock()
		if q, found := d.queues[res.ProjectID]; found && q.idle() {
			delete(d.queues, res.ProjectID)
		}
		d.qmu.Unlock()
	}
}

// snapshot assembles the full project state: ordered tracks, cues
// ordered and numbered per track, settings, members and presence.
func (d *Dispatcher) snapshot(ctx context.Context, projectID string) (StateEvent, error) {
	project, err := d.store.GetProject(ctx, projectID)
	if err != nil {
		return StateEvent{}, err
	}
	tracks, err := d.store.ListTracks(ctx, projectID)
	if err != nil {
		return StateEvent{}, err
	}
	tracks = timeline.OrderTracks(tracks)

	trackIDs := make([]string, len(tracks))
	for i, t := range tracks {
		trackIDs[i] = t.ID
	}
	allCues, err := d.store.ListCues(ctx, trackIDs)
	if err != nil {
		return StateEvent{}, err
	}
	byTrack := make(map[string][]domain.Cue)
	for _, c := range allCues {
		byTrack[c.TrackID] = append(byTrack[c.TrackID], c)
	}
	cues := []domain.Cue{}
	for _, t := range tracks {
		cues = append(cues, timeline.OrderCues(byTrack[t.ID])...)
	}

	settings, err := d.store.GetSettings(ctx, projectID)
	if err != nil {
		return StateEvent{}, err
	}
	members, err := d.store.ListMembers(ctx, projectID)
	if err != nil {
		return StateEvent{}, err
	}

	return StateEvent{
		Type:        "project:state",
		Project:     project,
		Tracks:      tracks,
		Cues:        cues,
		Settings:    settings,
		Members:     members,
		OnlineUsers: d.registry.ListUsers(projectID),
	}, nil
}

// authorize resolves the connection's room and role for a mutation.
// Both "no room" and "insufficient role" drop the request silently:
// nothing is broadcast and no error is leaked.
func (d *Dispatcher) authorize(ctx context.Context, conn ConnID, op Op) (projectID, userID string, ok bool) {
	projectID, inRoom := d.registry.ProjectOf(conn)
	if !inRoom {
		return "", "", false
	}
	userID, _, found := d.registry.Identity(conn)
	if !found {
		return "", "", false
	}
	member, err := d.store.GetMember(ctx, projectID, userID)
	if err != nil {
		return "", "", false
	}
	if !Can(member.Role, op) {
		log.Debug().Str("module", "app.dispatcher").Str("user", userID).Str("project", projectID).Msg("operation not permitted for role")
		return "", "", false
	}
	return projectID, userID, true
}

// enqueue serializes op behind every earlier operation of the same
// project. Receipt order at the dispatcher is execution order.
func (d *Dispatcher) enqueue(projectID string, op func(ctx context.Context)) {
	d.qmu.Lock()
	q, found := d.queues[projectID]
	if !found {
		q = &serialQueue{}
		d.queues[projectID] = q
	}
	// Push while holding qmu so afterLeave cannot observe the queue
	// idle between the map lookup and the push.
	q.push(func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		op(ctx)
	})
	d.qmu.Unlock()
}

func (d *Dispatcher) CueCreate(ctx context.Context, conn ConnID, p CueCreatePayload) {
	projectID, userID, ok := d.authorize(ctx, conn, OpEditCues)
	if !ok {
		return
	}
	if err := d.validate.Struct(p); err != nil {
		d.sendTo(conn, errorEvent("Invalid payload"))
		return
	}
	if p.Name == "" {
		p.Name = "Cue"
	}
	if p.MarkerColor == "" {
		p.MarkerColor = domain.DefaultMarkerColor
	}

	d.enqueue(projectID, func(ctx context.Context) {
		track, err := d.store.GetTrack(ctx, p.TrackID)
		if err != nil || track.ProjectID != projectID {
			d.sendTo(conn, errorEvent("Track not found"))
			return
		}
		existing, err := d.store.ListCues(ctx, []string{track.ID})
		if err != nil {
			d.persistenceError(conn, err, "list cues")
			return
		}
		cue, err := d.store.InsertCue(ctx, domain.Cue{
			TrackID:     track.ID,
			Name:        p.Name,
			Time:        p.Time,
			Description: p.Description,
			Fade:        p.Fade,
			MarkerColor: p.MarkerColor,
			SortOrder:   timeline.NextCueOrder(existing),
			CreatedBy:   userID,
		})
		if err != nil {
			d.persistenceError(conn, err, "insert cue")
			return
		}
		d.broadcast(projectID, CueEvent{Type: "cue:created", Cue: cue, UserID: userID})
	})
}

func (d *Dispatcher) CueUpdate(ctx context.Context, conn ConnID, p CueUpdatePayload) {
	projectID, userID, ok := d.authorize(ctx, conn, OpEditCues)
	if !ok {
		return
	}
	if err := d.validate.Struct(p); err != nil {
		d.sendTo(conn, errorEvent("Invalid payload"))
		return
	}

	d.enqueue(projectID, func(ctx context.Context) {
		if !d.cueInProject(ctx, conn, p.ID, projectID) {
			return
		}
		cue, err := d.store.UpdateCue(ctx, p.ID, store.CuePatch{
			Name:        p.Name,
			Time:        p.Time,
			Description: p.Description,
			Fade:        p.Fade,
			MarkerColor: p.MarkerColor,
			SortOrder:   p.SortOrder,
		})
		if err != nil {
			d.persistenceError(conn, err, "update cue")
			return
		}
		d.broadcast(projectID, CueEvent{Type: "cue:updated", Cue: cue, UserID: userID})
	})
}

func (d *Dispatcher) CueDelete(ctx context.Context, conn ConnID, p CueDeletePayload) {
	projectID, userID, ok := d.authorize(ctx, conn, OpEditCues)
	if !ok {
		return
	}
	if err := d.validate.Struct(p); err != nil {
		d.sendTo(conn, errorEvent("Invalid payload"))
		return
	}

	d.enqueue(projectID, func(ctx context.Context) {
		if !d.cueInProject(ctx, conn, p.ID, projectID) {
			return
		}
		if err := d.store.DeleteCue(ctx, p.ID); err != nil {
			d.persistenceError(conn, err, "delete cue")
			return
		}
		// Cue numbers of the remaining cues shift implicitly; numbering
		// is derived on read, so nothing is rewritten here.
		d.broadcast(projectID, CueDeletedEvent{Type: "cue:deleted", ID: p.ID, UserID: userID})
	})
}

func (d *Dispatcher) CueMove(ctx context.Context, conn ConnID, p CueMovePayload) {
	projectID, userID, ok := d.authorize(ctx, conn, OpEditCues)
	if !ok {
		return
	}
	if err := d.validate.Struct(p); err != nil {
		d.sendTo(conn, errorEvent("Invalid payload"))
		return
	}

	d.enqueue(projectID, func(ctx context.Context) {
		if !d.cueInProject(ctx, conn, p.ID, projectID) {
			return
		}
		cue, err := d.store.UpdateCue(ctx, p.ID, store.CuePatch{Time: &p.Time})
		if err != nil {
			d.persistenceError(conn, err, "move cue")
			return
		}
		d.broadcast(projectID, CueEvent{Type: "cue:moved", Cue: cue, UserID: userID})
	})
}

func (d *Dispatcher) TrackCreate(ctx context.Context, conn ConnID, p TrackCreatePayload) {
	projectID, userID, ok := d.authorize(ctx, conn, OpEditTracks)
	if !ok {
		return
	}
	if p.Name == "" {
		p.Name = "New Track"
	}

	d.enqueue(projectID, func(ctx context.Context) {
		existing, err := d.store.ListTracks(ctx, projectID)
		if err != nil {
			d.persistenceError(conn, err, "list tracks")
			return
		}
		track, err := d.store.InsertTrack(ctx, domain.Track{
			ProjectID: projectID,
			Name:      p.Name,
			MediaType: domain.NormalizeMediaType(p.MediaType),
			SortOrder: timeline.NextTrackOrder(existing),
		})
		if err != nil {
			d.persistenceError(conn, err, "insert track")
			return
		}
		d.broadcast(projectID, TrackEvent{Type: "track:created", Track: track, UserID: userID})
	})
}

func (d *Dispatcher) TrackUpdate(ctx context.Context, conn ConnID, p TrackUpdatePayload) {
	projectID, userID, ok := d.authorize(ctx, conn, OpEditTracks)
	if !ok {
		return
	}
	if err := d.validate.Struct(p); err != nil {
		d.sendTo(conn, errorEvent("Invalid payload"))
		return
	}

	d.enqueue(projectID, func(ctx context.Context) {
		if !d.trackInProject(ctx, conn, p.ID, projectID) {
			return
		}
		track, err := d.store.UpdateTrack(ctx, p.ID, store.TrackPatch{Name: p.Name, SortOrder: p.SortOrder})
		if err != nil {
			d.persistenceError(conn, err, "update track")
			return
		}
		d.broadcast(projectID, TrackEvent{Type: "track:updated", Track: track, UserID: userID})
	})
}

func (d *Dispatcher) TrackDelete(ctx context.Context, conn ConnID, p TrackDeletePayload) {
	projectID, userID, ok := d.authorize(ctx, conn, OpEditTracks)
	if !ok {
		return
	}
	if err := d.validate.Struct(p); err != nil {
		d.sendTo(conn, errorEvent("Invalid payload"))
		return
	}

	d.enqueue(projectID, func(ctx context.Context) {
		track, err := d.store.GetTrack(ctx, p.ID)
		if err != nil || track.ProjectID != projectID {
			d.sendTo(conn, errorEvent("Track not found"))
			return
		}
		if err := d.store.DeleteTrack(ctx, p.ID); err != nil {
			d.persistenceError(conn, err, "delete track")
			return
		}
		// A single track:deleted is enough; clients drop the track's
		// cues with it.
		d.broadcast(projectID, TrackDeletedEvent{Type: "track:deleted", ID: p.ID, UserID: userID})

		if d.media != nil && track.MediaKey != "" {
			if err := d.media.Delete(ctx, track.MediaKey); err != nil {
				log.Warn().Err(err).Str("module", "app.dispatcher").Str("key", track.MediaKey).Msg("media release failed")
			}
		}
	})
}

func (d *Dispatcher) SettingsUpdate(ctx context.Context, conn ConnID, p SettingsUpdatePayload) {
	projectID, userID, ok := d.authorize(ctx, conn, OpEditSettings)
	if !ok {
		return
	}
	if err := d.validate.Struct(p); err != nil {
		d.sendTo(conn, errorEvent("Invalid payload"))
		return
	}

	d.enqueue(projectID, func(ctx context.Context) {
		existing, err := d.store.GetSettings(ctx, projectID)
		if err != nil {
			d.persistenceError(conn, err, "get settings")
			return
		}
		merged := existing.Merge(p.Settings)
		if err := d.store.UpsertSettings(ctx, projectID, merged); err != nil {
			d.persistenceError(conn, err, "upsert settings")
			return
		}
		d.broadcast(projectID, SettingsEvent{Type: "settings:updated", Settings: merged, UserID: userID})
	})
}

// Cursor relays an advisory playhead position to the other members.
// Nothing is checked against the store and nothing is persisted.
func (d *Dispatcher) Cursor(conn ConnID, p CursorPayload) {
	projectID, inRoom := d.registry.ProjectOf(conn)
	if !inRoom {
		return
	}
	if err := d.validate.Struct(p); err != nil {
		d.sendTo(conn, errorEvent("Invalid payload"))
		return
	}
	userID, displayName, _ := d.registry.Identity(conn)
	d.broadcastExcept(projectID, conn, CursorEvent{
		Type:        "cursor:update",
		UserID:      userID,
		DisplayName: displayName,
		Time:        p.Time,
		TrackID:     p.TrackID,
	})
}

// cueInProject verifies the cue exists and belongs to the project the
// connection is in; otherwise the originator gets a private NotFound.
func (d *Dispatcher) cueInProject(ctx context.Context, conn ConnID, cueID, projectID string) bool {
	cue, err := d.store.GetCue(ctx, cueID)
	if err != nil {
		d.sendTo(conn, errorEvent("Cue not found"))
		return false
	}
	track, err := d.store.GetTrack(ctx, cue.TrackID)
	if err != nil || track.ProjectID != projectID {
		d.sendTo(conn, errorEvent("Cue not found"))
		return false
	}
	return true
}

func (d *Dispatcher) trackInProject(ctx context.Context, conn ConnID, trackID, projectID string) bool {
	track, err := d.store.GetTrack(ctx, trackID)
	if err != nil || track.ProjectID != projectID {
		d.sendTo(conn, errorEvent("Track not found"))
		return false
	}
	return true
}

// persistenceError logs the store failure and tells only the
// originator, with no detail beyond "it failed".
func (d *Dispatcher) persistenceError(conn ConnID, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		d.sendTo(conn, errorEvent("Not found"))
		return
	}
	log.Error().Err(err).Str("module", "app.dispatcher").Str("op", what).Msg("store call failed")
	d.sendTo(conn, errorEvent("Something went wrong"))
}

func (d *Dispatcher) broadcast(projectID string, event any) {
	d.broadcastExcept(projectID, "", event)
}

func (d *Dispatcher) broadcastExcept(projectID string, skip ConnID, event any) {
	for _, snap := range d.registry.Sinks(projectID, skip) {
		if err := snap.Sink.Send(event); err != nil {
			log.Warn().Err(err).Str("module", "app.dispatcher").Str("conn", string(snap.Conn)).Msg("dropped event for slow connection")
		}
	}
}

func (d *Dispatcher) sendTo(conn ConnID, event any) {
	sink, found := d.registry.Sink(conn)
	if !found {
		return
	}
	_ = sink.Send(event)
}
