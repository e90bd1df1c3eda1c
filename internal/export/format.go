// Package export renders a project's cue timeline as downloadable
// documents: JSON, CSV, Markdown and a marker XML.
package export

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// FormatTime renders seconds as M:SS. Negative input clamps to 0:00.
func FormatTime(seconds float64) string {
	s := math.Max(0, seconds)
	minutes := int(s) / 60
	remaining := int(s) % 60
	return fmt.Sprintf("%d:%02d", minutes, remaining)
}

// FormatTimecodeFrames renders seconds as HH:MM:SS:FF at the given
// frame rate. The frame field saturates at fps-1 so a fraction that
// rounds up never rolls the seconds over.
func FormatTimecodeFrames(seconds float64, fps int) string {
	total := math.Max(0, seconds)
	hours := int(total) / 3600
	minutes := (int(total) % 3600) / 60
	secs := int(total) % 60
	frames := int(math.Round((total - math.Floor(total)) * float64(fps)))
	if frames > fps-1 {
		frames = fps - 1
	}
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}

var (
	csvUnsafe  = regexp.MustCompile(`[",\n\r\t;]+`)
	multiSpace = regexp.MustCompile(`\s{2,}`)
)

// SanitizeForCSV strips quoting-hostile characters instead of escaping
// them so the output opens cleanly in any spreadsheet.
func SanitizeForCSV(value string) string {
	value = csvUnsafe.ReplaceAllString(value, " ")
	value = multiSpace.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func XMLEscape(s string) string {
	return xmlReplacer.Replace(s)
}

// formatFade renders a fade value the way the cue editors type them:
// integers without a decimal point, fractions trimmed of zeros.
func formatFade(fade float64) string {
	return strconv.FormatFloat(math.Max(0, fade), 'f', -1, 64)
}
