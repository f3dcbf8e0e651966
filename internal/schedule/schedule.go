// Package schedule adapts the loosely-typed route-schedule spreadsheet
// (consumed as a CSV export) into canonical model.RunRecord values.
//
// The normalization policy is deliberately tolerant: absent columns are
// treated as empty, blank/NaN-like cells never raise, and several
// historical column-name variants for the same concept are resolved by a
// fixed priority order (first non-empty wins). Rows without a parseable
// date are skipped with a warning; an entirely empty result escalates to
// model.ErrNoUpcomingRuns at selection time.
package schedule

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "rtrgen/internal/log"
	"rtrgen/internal/model"
)

// Column-name aliases in priority order; the first present, non-empty cell
// wins. Matching is case-insensitive on trimmed header names.
var (
	dateAliases    = []string{"date", "run date"}
	meetingAliases = []string{"meeting location", "meeting point"}
	mapAliases     = []string{"meeting map", "map link"}
	surfaceAliases = []string{"surface", "notes"}
	eventAliases   = []string{"special event", "event"}
)

// Date layouts accepted for the date cell, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"Monday 02 January 2006",
	"02 January 2006",
	"2 January 2006",
}

// routeColumns describes the discovered spreadsheet columns for one route
// slot (e.g. label "8k" from the "8k Route" header).
type routeColumns struct {
	label     string
	name      int // column indexes; -1 when the column is absent
	url       int
	distance  int
	elevation int
	landmarks int
}

// Load reads and parses the schedule CSV at path.
func Load(path string) ([]model.RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schedule: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a CSV schedule from r. The first row is the header. Rows that
// cannot produce a dated record are skipped (logged, not fatal); per-row
// tolerance never aborts the batch.
func Parse(r io.Reader) ([]model.RunRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are normal in hand-edited exports

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read schedule csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	index := headerIndex(header)
	routeCols := discoverRoutes(header)

	records := make([]model.RunRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := normalizeRow(index, routeCols, row)
		if err != nil {
			appLog.Warn("skipping schedule row", "row", i+2, "reason", err)
			continue
		}
		records = append(records, rec)
	}

	appLog.Info("schedule parsed", "rows", len(rows)-1, "records", len(records), "route_slots", len(routeCols))
	return records, nil
}

// headerIndex maps normalized header names to column positions. The first
// occurrence of a duplicate header wins.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// discoverRoutes finds route slots from "<label> Route" headers, in column
// order, and resolves the sibling columns for each label.
func discoverRoutes(header []string) []routeColumns {
	idx := headerIndex(header)

	var out []routeColumns
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		label, ok := strings.CutSuffix(key, " route")
		if !ok || label == "" {
			continue
		}

		col := func(names ...string) int {
			for _, n := range names {
				if j, ok := idx[n]; ok {
					return j
				}
			}
			return -1
		}

		out = append(out, routeColumns{
			label:     label,
			name:      i,
			url:       col(label+" strava link", label+" link"),
			distance:  col(label + " distance (km)"),
			elevation: col(label + " elevation (m)"),
			landmarks: col(label + " landmarks"),
		})
	}
	return out
}

// cell returns the trimmed value of column j, treating out-of-range,
// blank and NaN-like cells as empty. It never fails.
func cell(row []string, j int) string {
	if j < 0 || j >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[j])
	switch strings.ToLower(v) {
	case "", "nan", "n/a", "na", "-":
		return ""
	}
	return v
}

// firstCell resolves an alias list against a row: first non-empty wins.
func firstCell(idx map[string]int, row []string, aliases []string) string {
	for _, a := range aliases {
		if j, ok := idx[a]; ok {
			if v := cell(row, j); v != "" {
				return v
			}
		}
	}
	return ""
}

func normalizeRow(idx map[string]int, routeCols []routeColumns, row []string) (model.RunRecord, error) {
	dateText := firstCell(idx, row, dateAliases)
	if dateText == "" {
		return model.RunRecord{}, fmt.Errorf("no date cell: %w", model.ErrMalformedRecord)
	}
	date, err := parseDate(dateText)
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("unparseable date %q: %w", dateText, model.ErrMalformedRecord)
	}

	rec := model.RunRecord{
		Date:         date,
		MeetingPoint: firstCell(idx, row, meetingAliases),
		MeetingMap:   firstCell(idx, row, mapAliases),
		SurfaceNotes: firstCell(idx, row, surfaceAliases),
		SpecialEvent: firstCell(idx, row, eventAliases),
	}

	for _, rc := range routeCols {
		rt := model.Route{
			Label: rc.label,
			Name:  cell(row, rc.name),
			URL:   cell(row, rc.url),
		}
		if v := cell(row, rc.distance); v != "" {
			if km, err := strconv.ParseFloat(v, 64); err == nil && km >= 0 {
				rt.DistanceKm = &km
			}
		}
		if v := cell(row, rc.elevation); v != "" {
			if m, err := strconv.ParseFloat(v, 64); err == nil && m >= 0 {
				rt.ElevationM = &m
			}
		}
		if v := cell(row, rc.landmarks); v != "" {
			rt.Landmarks = splitLandmarks(v)
		}
		rec.Routes = append(rec.Routes, rt)
	}

	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched %q", s)
}

// splitLandmarks splits a landmarks cell on semicolons, falling back to
// commas, preserving order.
func splitLandmarks(v string) []string {
	sep := ","
	if strings.Contains(v, ";") {
		sep = ";"
	}
	parts := strings.Split(v, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseWeekday resolves a config weekday name ("thursday") onto a
// time.Weekday.
func ParseWeekday(s string) (time.Weekday, error) {
	names := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
	if wd, ok := names[strings.ToLower(strings.TrimSpace(s))]; ok {
		return wd, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// NextRunDay computes the next occurrence of the run weekday strictly after
// now: if today already is the run weekday, the result is a full week out,
// never today. The date is expressed via a weekly recurrence rule anchored
// at the start of tomorrow, so "on or after tomorrow" encodes the
// strictly-after-today semantics.
func NextRunDay(now time.Time, weekday time.Weekday) (time.Time, error) {
	startOfTomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{toRRuleWeekday(weekday)},
		Dtstart:   startOfTomorrow,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("build recurrence rule: %w", err)
	}

	next := rule.After(startOfTomorrow, true)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("recurrence rule produced no occurrence")
	}
	return next, nil
}

func toRRuleWeekday(wd time.Weekday) rrule.Weekday {
	switch wd {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

// Upcoming filters records to those dated on/after the next run day
// relative to now, sorted by date. Zero survivors (including an empty
// input) escalates to model.ErrNoUpcomingRuns; the caller surfaces it, no
// retry happens here.
func Upcoming(records []model.RunRecord, now time.Time, weekday time.Weekday) ([]model.RunRecord, error) {
	cutover, err := NextRunDay(now, weekday)
	if err != nil {
		return nil, err
	}

	cutoverDay := time.Date(cutover.Year(), cutover.Month(), cutover.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]model.RunRecord, 0, len(records))
	for _, rec := range records {
		day := time.Date(rec.Date.Year(), rec.Date.Month(), rec.Date.Day(), 0, 0, 0, 0, time.UTC)
		if !day.Before(cutoverDay) {
			out = append(out, rec)
		}
	}

	if len(out) == 0 {
		return nil, model.ErrNoUpcomingRuns
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
