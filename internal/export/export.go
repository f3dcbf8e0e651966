// Package export writes the engine's artifacts: plain-text message files
// named after the run date and platform, and an iCalendar feed of upcoming
// runs for subscription apps.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"rtrgen/internal/model"
)

// FileName returns the output file name for one rendered message:
// RTR_<date-label-with-spaces-as-underscores>_<platform>.txt
func FileName(rec model.RunRecord, platform model.Platform) string {
	label := strings.ReplaceAll(rec.DateLabel(), " ", "_")
	return fmt.Sprintf("RTR_%s_%s.txt", label, platform)
}

// WriteMessage writes text to dir using the FileName pattern. The write is
// atomic (temp file + rename) with 0600 permissions, matching how the
// config file is persisted. Returns the final path.
func WriteMessage(dir string, rec model.RunRecord, platform model.Platform, text string) (string, error) {
	if dir == "" {
		return "", errors.New("output dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName(rec, platform))

	tmp, err := os.CreateTemp(dir, ".rtrgen-msg-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", err
	}
	return path, nil
}

// BuildICS renders the upcoming runs as an iCalendar document with one
// all-day VEVENT per record. The description carries the meeting point and
// the included route names so calendar apps show something useful without
// the full message.
func BuildICS(clubName string, records []model.RunRecord) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//" + clubName + "//rtrgen//EN")

	now := time.Now().UTC()

	for _, rec := range records {
		uid := fmt.Sprintf("rtr-%s@rtrgen", rec.Date.Format("20060102"))
		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(now)
		ev.SetAllDayStartAt(rec.Date)
		ev.SetAllDayEndAt(rec.Date.AddDate(0, 0, 1))
		ev.SetSummary(clubName + " run night")
		if rec.MeetingPoint != "" {
			ev.SetLocation(rec.MeetingPoint)
		}

		var desc []string
		for _, rt := range rec.IncludedRoutes() {
			desc = append(desc, fmt.Sprintf("%s: %s (%s)", rt.Label, rt.Name, rt.URL))
		}
		if rec.SpecialEvent != "" {
			desc = append(desc, "Special event: "+rec.SpecialEvent)
		}
		if len(desc) > 0 {
			ev.SetDescription(strings.Join(desc, "\n"))
		}
		if rec.MeetingMap != "" {
			ev.SetURL(rec.MeetingMap)
		}
	}

	return cal.Serialize()
}
