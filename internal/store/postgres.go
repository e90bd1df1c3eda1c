package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avdeck/cueroom/internal/domain"
)

// Postgres implements Store over database/sql with the pgx driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) DB() *sql.DB { return s.db }

const uniqueViolation = "23505"

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

// Users

const userCols = `id, email, password_hash, display_name, created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Postgres) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING `+userCols,
		user.Email, user.PasswordHash, user.DisplayName)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email)
	return scanUser(row)
}

func (s *Postgres) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id)
	return scanUser(row)
}

// Projects

const projectCols = `id, name, description, owner_id, export_id, created_at, updated_at`

func scanProject(row *sql.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.ExportID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Project{}, mapErr(err)
	}
	return p, nil
}

func (s *Postgres) CreateProject(ctx context.Context, project domain.Project) (domain.Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var p domain.Project
	err = tx.QueryRowContext(ctx, `
		INSERT INTO projects (name, description, owner_id, export_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+projectCols,
		project.Name, project.Description, project.OwnerID, project.ExportID,
	).Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.ExportID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", mapErr(err))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role, accepted_at)
		VALUES ($1, $2, 'owner', NOW())
	`, p.ID, p.OwnerID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("insert owner member: %w", mapErr(err))
	}

	if err := tx.Commit(); err != nil {
		return domain.Project{}, fmt.Errorf("commit project: %w", err)
	}
	return p, nil
}

func (s *Postgres) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=$1`, id)
	return scanProject(row)
}

func (s *Postgres) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (domain.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE projects SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			export_id = COALESCE($4, export_id),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+projectCols,
		id, patch.Name, patch.Description, patch.ExportID)
	return scanProject(row)
}

func (s *Postgres) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListProjectsForUser(ctx context.Context, userID string) ([]ProjectWithRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.owner_id, p.export_id, p.created_at, p.updated_at, pm.role
		FROM projects p
		JOIN project_members pm ON pm.project_id = p.id
		WHERE pm.user_id = $1
		ORDER BY p.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []ProjectWithRole{}
	for rows.Next() {
		var p ProjectWithRole
		var role string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.ExportID, &p.CreatedAt, &p.UpdatedAt, &role); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Role = domain.NormalizeRole(role)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Members

func (s *Postgres) GetMember(ctx context.Context, projectID, userID string) (domain.Member, error) {
	var m domain.Member
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, user_id, role, invited_at, accepted_at
		FROM project_members
		WHERE project_id=$1 AND user_id=$2
	`, projectID, userID).Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.InvitedAt, &m.AcceptedAt)
	if err != nil {
		return domain.Member{}, mapErr(err)
	}
	m.Role = domain.NormalizeRole(role)
	return m, nil
}

func (s *Postgres) ListMembers(ctx context.Context, projectID string) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pm.id, pm.project_id, pm.user_id, pm.role, pm.invited_at, pm.accepted_at,
		       u.email, u.display_name
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = $1
		ORDER BY pm.invited_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	out := []domain.Member{}
	for rows.Next() {
		var m domain.Member
		var role string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.InvitedAt, &m.AcceptedAt, &m.Email, &m.DisplayName); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Role = domain.NormalizeRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Postgres) AddMember(ctx context.Context, member domain.Member) (domain.Member, error) {
	var m domain.Member
	var role string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, project_id, user_id, role, invited_at, accepted_at
	`, member.ProjectID, member.UserID, string(member.Role)).
		Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.InvitedAt, &m.AcceptedAt)
	if err != nil {
		return domain.Member{}, mapErr(err)
	}
	m.Role = domain.NormalizeRole(role)
	return m, nil
}

func (s *Postgres) UpdateMemberRole(ctx context.Context, projectID, userID string, newRole domain.Role) (domain.Member, error) {
	var m domain.Member
	var role string
	err := s.db.QueryRowContext(ctx, `
		UPDATE project_members SET role=$3
		WHERE project_id=$1 AND user_id=$2
		RETURNING id, project_id, user_id, role, invited_at, accepted_at
	`, projectID, userID, string(newRole)).
		Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.InvitedAt, &m.AcceptedAt)
	if err != nil {
		return domain.Member{}, mapErr(err)
	}
	m.Role = domain.NormalizeRole(role)
	return m, nil
}

func (s *Postgres) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM project_members WHERE project_id=$1 AND user_id=$2
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Tracks

const trackCols = `id, project_id, name, media_type, media_filename, media_s3_key,
	media_size, media_duration, sort_order, created_at, updated_at`

func scanTrack(row *sql.Row) (domain.Track, error) {
	var t domain.Track
	var mediaType string
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &mediaType, &t.MediaFilename, &t.MediaKey,
		&t.MediaSize, &t.MediaDuration, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Track{}, mapErr(err)
	}
	t.MediaType = domain.NormalizeMediaType(mediaType)
	return t, nil
}

func (s *Postgres) InsertTrack(ctx context.Context, track domain.Track) (domain.Track, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tracks (project_id, name, media_type, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING `+trackCols,
		track.ProjectID, track.Name, string(track.MediaType), track.SortOrder)
	return scanTrack(row)
}

func (s *Postgres) GetTrack(ctx context.Context, id string) (domain.Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackCols+` FROM tracks WHERE id=$1`, id)
	return scanTrack(row)
}

func (s *Postgres) ListTracks(ctx context.Context, projectID string) ([]domain.Track, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+trackCols+` FROM tracks WHERE project_id=$1 ORDER BY sort_order ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	out := []domain.Track{}
	for rows.Next() {
		var t domain.Track
		var mediaType string
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &mediaType, &t.MediaFilename, &t.MediaKey,
			&t.MediaSize, &t.MediaDuration, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		t.MediaType = domain.NormalizeMediaType(mediaType)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateTrack(ctx context.Context, id string, patch TrackPatch) (domain.Track, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tracks SET
			name = COALESCE($2, name),
			sort_order = COALESCE($3, sort_order),
			media_type = COALESCE($4, media_type),
			media_filename = COALESCE($5, media_filename),
			media_s3_key = COALESCE($6, media_s3_key),
			media_size = COALESCE($7, media_size),
			media_duration = COALESCE($8, media_duration),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+trackCols,
		id, patch.Name, patch.SortOrder, patch.MediaType, patch.MediaFilename,
		patch.MediaKey, patch.MediaSize, patch.MediaDuration)
	return scanTrack(row)
}

func (s *Postgres) DeleteTrack(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete track: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Cues

const cueCols = `id, track_id, name, time, description, fade, marker_color,
	sort_order, created_by, created_at, updated_at`

func scanCue(row *sql.Row) (domain.Cue, error) {
	var c domain.Cue
	var createdBy sql.NullString
	err := row.Scan(&c.ID, &c.TrackID, &c.Name, &c.Time, &c.Description, &c.Fade,
		&c.MarkerColor, &c.SortOrder, &createdBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Cue{}, mapErr(err)
	}
	c.CreatedBy = createdBy.String
	return c, nil
}

func (s *Postgres) InsertCue(ctx context.Context, cue domain.Cue) (domain.Cue, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO cues (track_id, name, time, description, fade, marker_color, sort_order, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+cueCols,
		cue.TrackID, cue.Name, cue.Time, cue.Description, cue.Fade,
		cue.MarkerColor, cue.SortOrder, nullable(cue.CreatedBy))
	return scanCue(row)
}

func (s *Postgres) GetCue(ctx context.Context, id string) (domain.Cue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cueCols+` FROM cues WHERE id=$1`, id)
	return scanCue(row)
}

func (s *Postgres) ListCues(ctx context.Context, trackIDs []string) ([]domain.Cue, error) {
	if len(trackIDs) == 0 {
		return []domain.Cue{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cueCols+` FROM cues
		WHERE track_id = ANY($1::uuid[])
		ORDER BY time ASC, sort_order ASC
	`, trackIDs)
	if err != nil {
		return nil, fmt.Errorf("list cues: %w", err)
	}
	defer rows.Close()

	out := []domain.Cue{}
	for rows.Next() {
		var c domain.Cue
		var createdBy sql.NullString
		if err := rows.Scan(&c.ID, &c.TrackID, &c.Name, &c.Time, &c.Description, &c.Fade,
			&c.MarkerColor, &c.SortOrder, &createdBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cue: %w", err)
		}
		c.CreatedBy = createdBy.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateCue(ctx context.Context, id string, patch CuePatch) (domain.Cue, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE cues SET
			name = COALESCE($2, name),
			time = COALESCE($3, time),
			description = COALESCE($4, description),
			fade = COALESCE($5, fade),
			marker_color = COALESCE($6, marker_color),
			sort_order = COALESCE($7, sort_order),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+cueCols,
		id, patch.Name, patch.Time, patch.Description, patch.Fade,
		patch.MarkerColor, patch.SortOrder)
	return scanCue(row)
}

func (s *Postgres) DeleteCue(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cues WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete cue: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Settings

func (s *Postgres) GetSettings(ctx context.Context, projectID string) (domain.Settings, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT settings FROM project_settings WHERE project_id=$1
	`, projectID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	settings := domain.Settings{}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

func (s *Postgres) UpsertSettings(ctx context.Context, projectID string, settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO project_settings (project_id, settings)
		VALUES ($1, $2)
		ON CONFLICT (project_id) DO UPDATE SET settings=EXCLUDED.settings, updated_at=NOW()
	`, projectID, raw)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
