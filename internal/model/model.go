package model

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors shared across the engine. Callers match them with
// errors.Is; packages wrap them with fmt.Errorf("...: %w", ...) to add
// context.
var (
	// ErrEmptyPool means a copy slot has zero candidates for the requested
	// platform/tone. Fatal to that render; never substituted silently.
	ErrEmptyPool = errors.New("copy pool is empty")

	// ErrUnknownPlatform / ErrUnknownTone mean the caller passed a value
	// outside the fixed enumerations.
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrUnknownTone     = errors.New("unknown tone")

	// ErrNoUpcomingRuns means the schedule produced zero future-dated
	// records after normalization.
	ErrNoUpcomingRuns = errors.New("no upcoming runs in schedule")

	// ErrMalformedRecord means a schedule row is missing its date entirely.
	// Such rows are skipped during normalization, not fatal to the batch.
	ErrMalformedRecord = errors.New("malformed schedule record")
)

// Platform identifies one of the four announcement targets.
type Platform string

const (
	PlatformWhatsApp  Platform = "WhatsApp"
	PlatformFacebook  Platform = "Facebook"
	PlatformInstagram Platform = "Instagram"
	PlatformEmail     Platform = "Email"
)

// Platforms lists all valid platforms in display order.
func Platforms() []Platform {
	return []Platform{PlatformWhatsApp, PlatformFacebook, PlatformInstagram, PlatformEmail}
}

// ParsePlatform resolves a case-insensitive platform name. Anything outside
// the four-member enumeration fails with ErrUnknownPlatform; there is no
// silent default.
func ParsePlatform(s string) (Platform, error) {
	for _, p := range Platforms() {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, nil
		}
	}
	return "", ErrUnknownPlatform
}

// Valid reports whether p is a member of the platform enumeration.
func (p Platform) Valid() bool {
	for _, known := range Platforms() {
		if p == known {
			return true
		}
	}
	return false
}

// Tone optionally shades the copy pools. ToneNone selects the base pools
// only; the other tones concatenate a per-platform extension pool where one
// exists.
type Tone string

const (
	ToneNone   Tone = ""
	ToneUpbeat Tone = "upbeat"
	ToneLowKey Tone = "lowkey"
)

// Tones lists the non-empty tones.
func Tones() []Tone {
	return []Tone{ToneUpbeat, ToneLowKey}
}

// ParseTone resolves a case-insensitive tone name. The empty string means
// "no tone" and is valid.
func ParseTone(s string) (Tone, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ToneNone, nil
	}
	for _, t := range Tones() {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", ErrUnknownTone
}

// Valid reports whether t is ToneNone or a member of the tone enumeration.
func (t Tone) Valid() bool {
	if t == ToneNone {
		return true
	}
	for _, known := range Tones() {
		if t == known {
			return true
		}
	}
	return false
}

// Terrain classifies a record's surface notes for intro selection.
type Terrain string

const (
	TerrainRoad  Terrain = "road"
	TerrainTrail Terrain = "trail"
)

// EventTag is a recognized special-event token.
type EventTag string

const (
	EventSocial EventTag = "social"
	EventGreen  EventTag = "green" // "wear it green" / mental health awareness
	EventPride  EventTag = "pride"
	EventOnTour EventTag = "on-tour"
)

// Route is one route option for a run night.
type Route struct {
	Label string // e.g. "8k", "5k"
	Name  string
	URL   string

	// Optional metrics, collaborator-supplied (route-metadata provider or
	// spreadsheet columns). Nil means "not available", which is distinct
	// from zero.
	DistanceKm *float64
	ElevationM *float64

	// Landmarks are place names along the route, in route order, typically
	// produced by reverse-geocoding samples of the route polyline.
	Landmarks []string
}

// Included reports whether this route appears in output: both a non-empty
// name and a non-empty URL are required.
func (r Route) Included() bool {
	return strings.TrimSpace(r.Name) != "" && strings.TrimSpace(r.URL) != ""
}

// HasMetrics reports whether both distance and elevation are available.
func (r Route) HasMetrics() bool {
	return r.DistanceKm != nil && r.ElevationM != nil
}

// RunRecord is the canonical, engine-facing representation of one schedule
// row. Adapter code in internal/schedule produces these; the composer never
// sees raw spreadsheet cells.
type RunRecord struct {
	Date time.Time

	MeetingPoint string // may be empty; composer applies the configured fallback
	MeetingMap   string // optional map URL for the meeting point

	SurfaceNotes string // free text, scanned for "trail" / "after dark"
	SpecialEvent string // free text, scanned for known event tokens

	Routes []Route
}

// DateLabel renders the record date as a human-readable label, e.g.
// "Thursday 19 June 2025". This is the single substitution value for
// {date} placeholders in copy fragments, and the label used in output
// filenames.
func (rec RunRecord) DateLabel() string {
	return rec.Date.Format("Monday 02 January 2006")
}

// Terrain classifies the surface notes. A record mentioning both "trail"
// and "after dark" is classified as trail: trail takes precedence for intro
// selection, while the after-dark safety note is governed by its own
// independent check (AfterDark).
func (rec RunRecord) Terrain() Terrain {
	if strings.Contains(strings.ToLower(rec.SurfaceNotes), "trail") {
		return TerrainTrail
	}
	return TerrainRoad
}

// AfterDark reports whether the surface notes mention running after dark.
// The check is a case-insensitive substring match and is independent of the
// trail/road classification.
func (rec RunRecord) AfterDark() bool {
	return strings.Contains(strings.ToLower(rec.SurfaceNotes), "after dark")
}

// EventTags scans the special-event text for known tokens in a fixed order
// (social, green/mental-health, pride, on-tour). A record may match several
// tokens and gets one blurb per match. An empty result with non-empty text
// means the caller should fall back to a generic line echoing the raw text.
func (rec RunRecord) EventTags() []EventTag {
	text := strings.ToLower(rec.SpecialEvent)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var tags []EventTag
	if strings.Contains(text, "social") {
		tags = append(tags, EventSocial)
	}
	if strings.Contains(text, "wear it green") || strings.Contains(text, "mental health awareness") {
		tags = append(tags, EventGreen)
	}
	if strings.Contains(text, "pride") {
		tags = append(tags, EventPride)
	}
	if strings.Contains(text, "on tour") {
		tags = append(tags, EventOnTour)
	}
	return tags
}

// IncludedRoutes filters Routes down to the entries that satisfy the
// inclusion rule (non-empty name and URL), preserving input order.
func (rec RunRecord) IncludedRoutes() []Route {
	out := make([]Route, 0, len(rec.Routes))
	for _, r := range rec.Routes {
		if r.Included() {
			out = append(out, r)
		}
	}
	return out
}
