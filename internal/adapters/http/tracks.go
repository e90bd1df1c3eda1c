package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avdeck/cueroom/internal/domain"
	"github.com/avdeck/cueroom/internal/store"
)

// maxUploadSize caps track media uploads at 512 MiB.
const maxUploadSize = 512 << 20

// projectTrack loads the track and verifies it belongs to the project
// in the path.
func (h *Handlers) projectTrack(c *gin.Context) (domain.Track, bool) {
	track, err := h.store.GetTrack(c.Request.Context(), c.Param("trackId"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && track.ProjectID != c.Param("id")) {
		fail(c, http.StatusNotFound, "Track not found")
		return domain.Track{}, false
	}
	if err != nil {
		internalError(c)
		return domain.Track{}, false
	}
	return track, true
}

// POST /api/v1/projects/:id/tracks/:trackId/upload — multipart field
// "media". Replaces the track's previous blob when there is one.
func (h *Handlers) UploadTrackMedia(c *gin.Context) {
	member, ok := h.membership(c)
	if !ok {
		return
	}
	if member.Role == domain.RoleViewer {
		fail(c, http.StatusForbidden, "Forbidden")
		return
	}
	if h.media == nil {
		fail(c, http.StatusServiceUnavailable, "Media storage not configured")
		return
	}

	track, ok := h.projectTrack(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("media")
	if err != nil {
		fail(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	if fileHeader.Size > maxUploadSize {
		fail(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		internalError(c)
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	contentType := fileHeader.Header.Get("Content-Type")

	ext := filepath.Ext(fileHeader.Filename)
	if ext == "" {
		ext = ".bin"
	}
	key := fmt.Sprintf("projects/%s/tracks/%s/%s%s", track.ProjectID, track.ID, uuid.NewString(), ext)
	if err := h.media.Put(ctx, key, contentType, file, fileHeader.Size); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("key", key).Msg("media upload failed")
		internalError(c)
		return
	}

	if track.MediaKey != "" {
		if err := h.media.Delete(ctx, track.MediaKey); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("key", track.MediaKey).Msg("stale media release failed")
		}
	}

	mediaType := domain.MediaAudio
	if strings.HasPrefix(contentType, "video/") {
		mediaType = domain.MediaVideo
	}
	updated, err := h.store.UpdateTrack(ctx, track.ID, store.TrackPatch{
		MediaType:     &mediaType,
		MediaFilename: &fileHeader.Filename,
		MediaKey:      &key,
		MediaSize:     &fileHeader.Size,
	})
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"track": updated})
}

// GET /api/v1/projects/:id/tracks/:trackId/media — presigned download.
func (h *Handlers) TrackMediaURL(c *gin.Context) {
	if _, ok := h.membership(c); !ok {
		return
	}
	track, ok := h.projectTrack(c)
	if !ok {
		return
	}
	if h.media == nil || track.MediaKey == "" {
		fail(c, http.StatusNotFound, "No media uploaded")
		return
	}

	url, err := h.media.SignedURL(c.Request.Context(), track.MediaKey)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("key", track.MediaKey).Msg("presign failed")
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"filename":   track.MediaFilename,
		"media_type": track.MediaType,
	})
}

// DELETE /api/v1/projects/:id/tracks/:trackId/media — removes the
// blob and clears the track's media columns.
func (h *Handlers) DeleteTrackMedia(c *gin.Context) {
	member, ok := h.membership(c)
	if !ok {
		return
	}
	if member.Role == domain.RoleViewer {
		fail(c, http.StatusForbidden, "Forbidden")
		return
	}
	track, ok := h.projectTrack(c)
	if !ok {
		return
	}
	if track.MediaKey == "" {
		fail(c, http.StatusNotFound, "No media uploaded")
		return
	}

	ctx := c.Request.Context()
	if h.media != nil {
		if err := h.media.Delete(ctx, track.MediaKey); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("key", track.MediaKey).Msg("media release failed")
		}
	}

	empty := ""
	var zeroSize int64
	var zeroDuration float64
	updated, err := h.store.UpdateTrack(ctx, track.ID, store.TrackPatch{
		MediaFilename: &empty,
		MediaKey:      &empty,
		MediaSize:     &zeroSize,
		MediaDuration: &zeroDuration,
	})
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"track": updated})
}
