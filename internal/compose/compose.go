// Package compose assembles announcement messages from a canonical run
// record. All wording variance flows through internal/pick keyed by the
// composed seed, so a render is a pure function of its inputs.
package compose

import (
	"fmt"
	"strings"

	"rtrgen/internal/copydeck"
	"rtrgen/internal/model"
	"rtrgen/internal/pick"
)

// Options carries the fixed, config-derived pieces of a message. Zero
// values are filled with the club defaults by normalize, so the engine
// itself never renders an empty required line.
type Options struct {
	// DefaultMeetingPoint is used when the record has no meeting point.
	DefaultMeetingPoint string

	// DepartureTime is the human-readable start time, e.g. "7:00pm".
	DepartureTime string

	// BookingURL / CancelURL are the fixed call-to-action links.
	BookingURL string
	CancelURL  string

	// Hashtags is the fixed tag block appended after the outro on
	// Instagram.
	Hashtags []string

	// Deck is the copy-pool registry; nil selects copydeck.Default().
	Deck *copydeck.Deck
}

func (o Options) normalize() Options {
	if o.DefaultMeetingPoint == "" {
		o.DefaultMeetingPoint = "Radcliffe market"
	}
	if o.DepartureTime == "" {
		o.DepartureTime = "7:00pm"
	}
	if o.BookingURL == "" {
		o.BookingURL = "https://groups.runtogether.co.uk/RunTogetherRadcliffe/Runs"
	}
	if o.CancelURL == "" {
		o.CancelURL = "https://groups.runtogether.co.uk/My/BookedRuns"
	}
	if o.Hashtags == nil {
		o.Hashtags = []string{"#RunTogetherRadcliffe", "#RadcliffeRunners", "#ThursdayRun"}
	}
	if o.Deck == nil {
		o.Deck = copydeck.Default()
	}
	return o
}

// ComposeSeed builds the deterministic seed for one render from the stable
// record-identifying fields plus the session's shuffle counter. The seed is
// recomputed on every render and never persisted; incrementing the counter
// is what "shuffle wording" means.
func ComposeSeed(rec model.RunRecord, platform model.Platform, tone model.Tone, counter int) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s#%d",
		rec.DateLabel(), platform, tone,
		rec.MeetingPoint, rec.SurfaceNotes, rec.SpecialEvent,
		counter,
	)
}

// suffix appended to 5k-labelled route bullets: the short route can be
// completed as a walk or jog.
const fiveKSuffix = " (walk it, jog it or run it – it all counts!)"

// style is the per-platform formatting policy: label phrasing, emphasis
// markers and whether the hashtag block applies. Stateless and fixed.
type style struct {
	meetLabel   string
	timeLine    string // fmt verb receives the departure time
	bookLabel   string
	cancelLabel string
	hashtags    bool
}

func styleFor(platform model.Platform) (style, error) {
	switch platform {
	case model.PlatformWhatsApp:
		return style{
			meetLabel:   "📍 *Meeting at:*",
			timeLine:    "🕖 *We set off at %s*",
			bookLabel:   "📲 Book now:",
			cancelLabel: "❌ Can’t make it? Cancel at least 1 hour before:",
		}, nil
	case model.PlatformFacebook:
		return style{
			meetLabel:   "📍 Meeting at:",
			timeLine:    "🕖 We set off at %s",
			bookLabel:   "📲 Book now:",
			cancelLabel: "❌ Can’t make it? Cancel at least 1 hour before:",
		}, nil
	case model.PlatformInstagram:
		return style{
			meetLabel:   "📍 Meeting at:",
			timeLine:    "🕖 %s start",
			bookLabel:   "Book now:",
			cancelLabel: "Can’t make it? Cancel at least 1 hour before:",
			hashtags:    true,
		}, nil
	case model.PlatformEmail:
		return style{
			meetLabel:   "Meeting at:",
			timeLine:    "We set off at %s",
			bookLabel:   "Book now:",
			cancelLabel: "Can’t make it? Cancel at least 1 hour before:",
		}, nil
	default:
		return style{}, fmt.Errorf("%q: %w", platform, model.ErrUnknownPlatform)
	}
}

// Render assembles the full announcement for one record, platform, tone and
// seed. The layout is fixed; only fragment wording varies with the seed.
// Rendering the same inputs twice yields byte-identical output.
func Render(rec model.RunRecord, platform model.Platform, tone model.Tone, seed string, opts Options) (string, error) {
	if rec.Date.IsZero() {
		return "", fmt.Errorf("record has no date: %w", model.ErrMalformedRecord)
	}
	st, err := styleFor(platform)
	if err != nil {
		return "", err
	}
	if !tone.Valid() {
		return "", fmt.Errorf("%q: %w", tone, model.ErrUnknownTone)
	}
	opts = opts.normalize()

	deck := opts.Deck
	dateLabel := rec.DateLabel()

	// pickFrag selects one fragment for a slot and fills the {date}
	// placeholder (at most one per template).
	pickFrag := func(slot copydeck.Slot, tag string) (string, error) {
		pool, err := deck.FragmentsFor(platform, slot, tone)
		if err != nil {
			return "", err
		}
		frag, err := pick.Pick(seed, tag, pool)
		if err != nil {
			return "", err
		}
		return strings.Replace(frag, "{date}", dateLabel, 1), nil
	}

	var lines []string

	// 1. Intro. Trail takes precedence over the base intro when the surface
	// notes mention trail; the after-dark safety note below is independent
	// of this choice.
	introSlot := copydeck.SlotIntro
	if rec.Terrain() == model.TerrainTrail {
		introSlot = copydeck.SlotIntroTrail
	}
	intro, err := pickFrag(introSlot, "intro")
	if err != nil {
		return "", err
	}
	lines = append(lines, intro, "")

	// 2. Meeting point and fixed departure-time line.
	meeting := strings.TrimSpace(rec.MeetingPoint)
	if meeting == "" {
		meeting = opts.DefaultMeetingPoint
	}
	lines = append(lines,
		st.meetLabel+" "+meeting,
		fmt.Sprintf(st.timeLine, opts.DepartureTime),
		"",
	)

	// 3. Routes-section header.
	header, err := pickFrag(copydeck.SlotRoutesHeader, "routes")
	if err != nil {
		return "", err
	}
	lines = append(lines, header)

	// 4. Route bullets, in input order. A route appears iff it has both a
	// name and a URL.
	routes := rec.IncludedRoutes()
	if len(routes) == 0 {
		lines = append(lines, "• (Routes not found in spreadsheet)")
	}
	for _, rt := range routes {
		bullet := "• "
		if rt.Label != "" {
			bullet += rt.Label + " – "
		}
		bullet += rt.Name + ": " + rt.URL
		if strings.EqualFold(rt.Label, "5k") {
			bullet += fiveKSuffix
		}
		lines = append(lines, bullet)

		if rt.HasMetrics() {
			band, pool := deck.ElevationBand(*rt.ElevationM)
			phrase, err := pick.Pick(seed, band+":"+rt.Label, pool)
			if err != nil {
				return "", err
			}
			lines = append(lines, fmt.Sprintf("   ↳ %.1f km, %d m of climbing – %s",
				*rt.DistanceKm, int(*rt.ElevationM), phrase))
		}
		if len(rt.Landmarks) > 0 {
			lines = append(lines, "   passing "+strings.Join(rt.Landmarks, ", "))
		}
	}

	// 5. After-dark safety note: substring check on the surface notes,
	// regardless of platform and of trail/road classification.
	if rec.AfterDark() {
		safety, err := pickFrag(copydeck.SlotSafety, "safety")
		if err != nil {
			return "", err
		}
		lines = append(lines, "", safety)
	}

	// 6. Special-event blurbs: one line per matched token, in a fixed check
	// order. No match at all for non-empty text yields exactly one generic
	// fallback line echoing the raw text.
	if strings.TrimSpace(rec.SpecialEvent) != "" {
		eventLines, err := eventBlock(rec, pickFrag)
		if err != nil {
			return "", err
		}
		lines = append(lines, "")
		lines = append(lines, eventLines...)
	}

	// 7. Fixed booking and cancellation call-to-action lines.
	lines = append(lines,
		"",
		st.bookLabel+" "+opts.BookingURL,
		st.cancelLabel+" "+opts.CancelURL,
		"",
	)

	// 8. Outro, plus the fixed hashtag block on Instagram.
	outro, err := pickFrag(copydeck.SlotOutro, "outro")
	if err != nil {
		return "", err
	}
	lines = append(lines, outro)
	if st.hashtags {
		lines = append(lines, strings.Join(opts.Hashtags, " "))
	}

	return strings.Join(lines, "\n"), nil
}

// eventBlock renders the special-event lines for a record whose event text
// is non-empty. On-tour fragments embed the meeting map link when the
// record has one and omit it otherwise.
func eventBlock(rec model.RunRecord, pickFrag func(copydeck.Slot, string) (string, error)) ([]string, error) {
	tags := rec.EventTags()
	if len(tags) == 0 {
		return []string{"This week: " + strings.TrimSpace(rec.SpecialEvent)}, nil
	}

	var out []string
	for _, tag := range tags {
		var slot copydeck.Slot
		switch tag {
		case model.EventSocial:
			slot = copydeck.SlotEventSocial
		case model.EventGreen:
			slot = copydeck.SlotEventGreen
		case model.EventPride:
			slot = copydeck.SlotEventPride
		case model.EventOnTour:
			slot = copydeck.SlotEventOnTour
			if strings.TrimSpace(rec.MeetingMap) != "" {
				slot = copydeck.SlotEventOnTourMap
			}
		}

		line, err := pickFrag(slot, "event:"+string(tag))
		if err != nil {
			return nil, err
		}
		line = strings.Replace(line, "{map}", strings.TrimSpace(rec.MeetingMap), 1)
		out = append(out, line)
	}
	return out, nil
}
