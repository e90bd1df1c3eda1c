package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avdeck/cueroom/internal/domain"
	"github.com/avdeck/cueroom/internal/timeline"
)

// TimecodeFPS is the frame rate used for timecode columns.
const TimecodeFPS = 30

// Timeline is everything the generators need, as loaded from the
// store. Cues may arrive in any order.
type Timeline struct {
	Project  domain.Project
	Tracks   []domain.Track
	Cues     []domain.Cue
	Settings domain.Settings
}

// ordered returns the tracks in display order and each track's cues in
// time order with numbers assigned.
func (tl Timeline) ordered() ([]domain.Track, map[string][]domain.Cue) {
	tracks := timeline.OrderTracks(tl.Tracks)
	byTrack := make(map[string][]domain.Cue)
	for _, c := range tl.Cues {
		byTrack[c.TrackID] = append(byTrack[c.TrackID], c)
	}
	for id, cues := range byTrack {
		byTrack[id] = timeline.OrderCues(cues)
	}
	return tracks, byTrack
}

// BaseName is the file name stem shared by every export format.
func BaseName(p domain.Project) string {
	return fmt.Sprintf("%d_%s", exportID(p), p.Name)
}

func exportID(p domain.Project) int {
	if p.ExportID < 1 {
		return domain.DefaultExportID
	}
	return p.ExportID
}

func cueTitle(c domain.Cue) string {
	if c.Name == "" {
		return "Cue"
	}
	return c.Name
}

type jsonCue struct {
	Number        int     `json:"number"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Time          float64 `json:"time"`
	TimeFormatted string  `json:"timeFormatted"`
	Fade          float64 `json:"fade"`
	MarkerColor   string  `json:"markerColor"`
}

type jsonTrack struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MediaType string    `json:"mediaType"`
	Duration  float64   `json:"duration"`
	Cues      []jsonCue `json:"cues"`
}

type jsonDoc struct {
	Project struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		ExportID int    `json:"exportId"`
	} `json:"project"`
	Tracks   []jsonTrack     `json:"tracks"`
	Settings domain.Settings `json:"settings"`
}

// BuildJSON renders the whole timeline as an indented JSON document.
func BuildJSON(tl Timeline) ([]byte, error) {
	tracks, byTrack := tl.ordered()

	doc := jsonDoc{Settings: tl.Settings}
	if doc.Settings == nil {
		doc.Settings = domain.Settings{}
	}
	doc.Project.ID = tl.Project.ID
	doc.Project.Name = tl.Project.Name
	doc.Project.ExportID = exportID(tl.Project)

	doc.Tracks = make([]jsonTrack, 0, len(tracks))
	for _, t := range tracks {
		jt := jsonTrack{
			ID:        t.ID,
			Name:      t.Name,
			MediaType: string(t.MediaType),
			Duration:  t.MediaDuration,
			Cues:      []jsonCue{},
		}
		for _, c := range byTrack[t.ID] {
			jt.Cues = append(jt.Cues, jsonCue{
				Number:        c.Number,
				Title:         cueTitle(c),
				Description:   c.Description,
				Time:          c.Time,
				TimeFormatted: FormatTime(c.Time),
				Fade:          c.Fade,
				MarkerColor:   c.MarkerColor,
			})
		}
		doc.Tracks = append(doc.Tracks, jt)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// BuildSessionCSV renders the console-session CSV: one row per cue
// with the track, a Lighting/Video type column and a frame timecode.
func BuildSessionCSV(tl Timeline) string {
	tracks, byTrack := tl.ordered()

	lines := []string{`"Track","Type","Position","Cue No","Label","Fade"`}
	for _, t := range tracks {
		trackName := SanitizeForCSV(t.Name)
		typeName := "Lighting"
		if t.MediaType == domain.MediaVideo {
			typeName = "Video"
		}
		for _, c := range byTrack[t.ID] {
			lines = append(lines, fmt.Sprintf(`"%s","%s","%s","%d","%s","%s"`,
				trackName,
				typeName,
				SanitizeForCSV(FormatTimecodeFrames(c.Time, TimecodeFPS)),
				c.Number,
				SanitizeForCSV(cueTitle(c)),
				SanitizeForCSV(formatFade(c.Fade)),
			))
		}
	}
	return strings.Join(lines, "\n")
}

// BuildCuePointsCSV renders the spreadsheet CSV with every time
// representation side by side.
func BuildCuePointsCSV(tl Timeline) string {
	tracks, byTrack := tl.ordered()

	lines := []string{"Cue #,Name,Description,Time (seconds),Time (MM:SS),Timecode (HH:MM:SS:FF),Fade (seconds),Marker Color,Track"}
	for _, t := range tracks {
		for _, c := range byTrack[t.ID] {
			color := c.MarkerColor
			if color == "" {
				color = domain.DefaultMarkerColor
			}
			fields := []string{
				fmt.Sprintf("%d", c.Number),
				SanitizeForCSV(cueTitle(c)),
				SanitizeForCSV(c.Description),
				fmt.Sprintf("%.3f", c.Time),
				FormatTime(c.Time),
				FormatTimecodeFrames(c.Time, TimecodeFPS),
				formatFade(c.Fade),
				color,
				SanitizeForCSV(t.Name),
			}
			for i, f := range fields {
				fields[i] = `"` + f + `"`
			}
			lines = append(lines, strings.Join(fields, ","))
		}
	}
	return strings.Join(lines, "\n")
}

// BuildMarkdown renders a per-track cue list with one table per track.
func BuildMarkdown(tl Timeline) string {
	tracks, byTrack := tl.ordered()

	escapePipes := strings.NewReplacer("|", `\|`)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Cue List\n\n", BaseName(tl.Project))
	for _, t := range tracks {
		fmt.Fprintf(&b, "## %s\n\n", t.Name)
		b.WriteString("| # | Title | Time | Fade (s) | Description |\n")
		b.WriteString("|---:|---|---:|---:|---|\n")
		for _, c := range byTrack[t.ID] {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				c.Number,
				escapePipes.Replace(cueTitle(c)),
				FormatTime(c.Time),
				formatFade(c.Fade),
				escapePipes.Replace(c.Description),
			)
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// BuildMarkerXML renders every cue of the project, across tracks in
// one time-ordered run, as a flat marker document. Returns "" when the
// project has no cues.
func BuildMarkerXML(tl Timeline) string {
	_, byTrack := tl.ordered()

	all := []domain.Cue{}
	for _, cues := range byTrack {
		all = append(all, cues...)
	}
	if len(all) == 0 {
		return ""
	}
	all = timeline.OrderCues(all)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, "<Markers Project=\"%s\" ExportId=\"%d\" Fps=\"%d\">\n",
		XMLEscape(tl.Project.Name), exportID(tl.Project), TimecodeFPS)
	for _, c := range all {
		color := c.MarkerColor
		if color == "" {
			color = domain.DefaultMarkerColor
		}
		fmt.Fprintf(&b, "  <Marker Number=\"%d\" Time=\"%.3f\" Timecode=\"%s\" Fade=\"%s\" Color=\"%s\" Title=\"%s\"",
			c.Number,
			c.Time,
			FormatTimecodeFrames(c.Time, TimecodeFPS),
			formatFade(c.Fade),
			XMLEscape(color),
			XMLEscape(cueTitle(c)),
		)
		if c.Description != "" {
			fmt.Fprintf(&b, " Note=\"%s\"", XMLEscape(c.Description))
		}
		b.WriteString("/>\n")
	}
	b.WriteString("</Markers>")
	return b.String()
}
