package http

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avdeck/cueroom/internal/export"
	"github.com/avdeck/cueroom/internal/store"
)

// loadTimeline gathers everything the export generators consume.
func (h *Handlers) loadTimeline(c *gin.Context) (export.Timeline, bool) {
	ctx := c.Request.Context()
	projectID := c.Param("id")

	project, err := h.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Project not found")
		return export.Timeline{}, false
	}
	if err != nil {
		internalError(c)
		return export.Timeline{}, false
	}
	tracks, err := h.store.ListTracks(ctx, projectID)
	if err != nil {
		internalError(c)
		return export.Timeline{}, false
	}
	trackIDs := make([]string, len(tracks))
	for i, t := range tracks {
		trackIDs[i] = t.ID
	}
	cues, err := h.store.ListCues(ctx, trackIDs)
	if err != nil {
		internalError(c)
		return export.Timeline{}, false
	}
	settings, err := h.store.GetSettings(ctx, projectID)
	if err != nil {
		internalError(c)
		return export.Timeline{}, false
	}
	return export.Timeline{Project: project, Tracks: tracks, Cues: cues, Settings: settings}, true
}

func attach(c *gin.Context, contentType, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

// GET /api/v1/projects/:id/export/:format
func (h *Handlers) Export(c *gin.Context) {
	if _, ok := h.membership(c); !ok {
		return
	}
	tl, ok := h.loadTimeline(c)
	if !ok {
		return
	}
	base := export.BaseName(tl.Project)

	switch c.Param("format") {
	case "json":
		data, err := export.BuildJSON(tl)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("json export failed")
			internalError(c)
			return
		}
		attach(c, "application/json", base+".json", data)
	case "csv":
		attach(c, "text/csv", base+".csv", []byte(export.BuildSessionCSV(tl)))
	case "cuepoints-csv":
		attach(c, "text/csv", base+"_cuepoints.csv", []byte(export.BuildCuePointsCSV(tl)))
	case "markdown":
		attach(c, "text/markdown", base+".md", []byte(export.BuildMarkdown(tl)))
	case "xml":
		data := export.BuildMarkerXML(tl)
		if data == "" {
			fail(c, http.StatusBadRequest, "No cues to export")
			return
		}
		attach(c, "application/xml", base+"_markers.xml", []byte(data))
	case "zip":
		data, err := buildZip(tl)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("zip export failed")
			internalError(c)
			return
		}
		attach(c, "application/zip", base+".zip", data)
	default:
		fail(c, http.StatusBadRequest, "Unknown format: "+c.Param("format"))
	}
}

// buildZip bundles every format into one archive.
func buildZip(tl export.Timeline) ([]byte, error) {
	jsonData, err := export.BuildJSON(tl)
	if err != nil {
		return nil, err
	}
	base := export.BaseName(tl.Project)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	files := map[string][]byte{
		base + ".json":          jsonData,
		base + ".csv":           []byte(export.BuildSessionCSV(tl)),
		base + "_cuepoints.csv": []byte(export.BuildCuePointsCSV(tl)),
		base + ".md":            []byte(export.BuildMarkdown(tl)),
		"README.md":             []byte(fmt.Sprintf("# %s\n\nGenerated: %s\n", base, time.Now().Format(time.RFC1123))),
	}
	if xml := export.BuildMarkerXML(tl); xml != "" {
		files[base+"_markers.xml"] = []byte(xml)
	}
	for name, data := range files {
		f, err := w.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
