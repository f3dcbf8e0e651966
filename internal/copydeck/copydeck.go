// Package copydeck holds the fixed copy pools the composer selects from:
// per-platform (and optionally per-tone) ordered lists of candidate text
// fragments for each message slot.
//
// Pool order matters only for reproducibility of a selection given an
// index, not for ranking. Fragments may carry a single {date} placeholder,
// which the composer fills exactly once per render with the human-readable
// date label.
package copydeck

import (
	"fmt"

	"rtrgen/internal/model"
)

// Slot names a position in the message template whose content is chosen
// from a pool.
type Slot string

const (
	SlotIntro        Slot = "intro"
	SlotIntroTrail   Slot = "intro-trail"
	SlotRoutesHeader Slot = "routes-header"
	SlotSafety       Slot = "safety"
	SlotOutro        Slot = "outro"

	SlotEventSocial    Slot = "event-social"
	SlotEventGreen     Slot = "event-green"
	SlotEventPride     Slot = "event-pride"
	SlotEventOnTour    Slot = "event-on-tour"
	SlotEventOnTourMap Slot = "event-on-tour-map" // variants carrying a {map} placeholder
)

type poolKey struct {
	Platform model.Platform
	Slot     Slot
}

type toneKey struct {
	Platform model.Platform
	Slot     Slot
	Tone     model.Tone
}

// Deck is an immutable registry of copy pools. Use Default for the built-in
// deck.
type Deck struct {
	base     map[poolKey][]string
	toneExts map[toneKey][]string
}

func newDeck(base map[poolKey][]string, toneExts map[toneKey][]string) *Deck {
	if base == nil {
		base = map[poolKey][]string{}
	}
	if toneExts == nil {
		toneExts = map[toneKey][]string{}
	}
	return &Deck{base: base, toneExts: toneExts}
}

// FragmentsFor returns the candidate fragments for (platform, slot, tone):
// the platform's base pool, concatenated with the tone-specific extension
// pool when tone is non-empty and a matching extension exists. When no
// extension exists the base pool alone is returned.
//
// An empty result fails with model.ErrEmptyPool: a missing pool must never
// be substituted silently.
func (d *Deck) FragmentsFor(platform model.Platform, slot Slot, tone model.Tone) ([]string, error) {
	base := d.base[poolKey{Platform: platform, Slot: slot}]

	var ext []string
	if tone != model.ToneNone {
		ext = d.toneExts[toneKey{Platform: platform, Slot: slot, Tone: tone}]
	}

	if len(base) == 0 && len(ext) == 0 {
		return nil, fmt.Errorf("slot %q for platform %q: %w", slot, platform, model.ErrEmptyPool)
	}

	out := make([]string, 0, len(base)+len(ext))
	out = append(out, base...)
	out = append(out, ext...)
	return out, nil
}

// ElevationBand maps metres of elevation gain onto a named band and that
// band's descriptor pool. Bands: [0,20) flat, [20,60) rolling, [60,140)
// hilly, [140,∞) mountain. The name doubles as the selection tag so each
// band draws from its own stream.
func (d *Deck) ElevationBand(gainM float64) (name string, pool []string) {
	switch {
	case gainM < 20:
		return "elev-flat", elevFlat
	case gainM < 60:
		return "elev-rolling", elevRolling
	case gainM < 140:
		return "elev-hilly", elevHilly
	default:
		return "elev-mountain", elevMountain
	}
}

var (
	elevFlat = []string{
		"pancake flat – great for pace",
		"barely a bump all the way round",
		"flat as they come",
	}
	elevRolling = []string{
		"gently rolling, nothing scary",
		"a few friendly undulations",
		"rolling rather than hilly",
	}
	elevHilly = []string{
		"a proper hill or two in there",
		"some honest climbing this week",
		"legs will know about the hills",
	}
	elevMountain = []string{
		"a big old climb – bragging rights included",
		"serious elevation, take it steady",
		"one for the hill lovers",
	}
)

var defaultDeck = newDeck(defaultBase, defaultToneExts)

// Default returns the built-in deck.
func Default() *Deck {
	return defaultDeck
}

var defaultBase = map[poolKey][]string{
	// Intros.
	{model.PlatformWhatsApp, SlotIntro}: {
		"Evening crew! Fancy a run on {date}? Here’s the plan…",
		"Ready for Thursday miles? Here’s what’s happening…",
		"Hiya! Plan for {date}…",
	},
	{model.PlatformFacebook, SlotIntro}: {
		"Hello runners! Here’s what we’ve got lined up for {date}…",
		"Hey team — it’s nearly Thursday night run time!",
		"Evening crew! Here’s the plan…",
	},
	{model.PlatformInstagram, SlotIntro}: {
		"Thursday vibes. Let’s run.",
		"We run Thursday. You in?",
		"Ready to roll this Thursday?",
	},
	{model.PlatformEmail, SlotIntro}: {
		"Here are the details for {date}:",
		"This is the plan for Thursday’s run:",
		"Thursday run details:",
	},

	// Trail intros take precedence when the surface notes mention trail.
	{model.PlatformWhatsApp, SlotIntroTrail}: {
		"Trail night this week! Here’s the plan for {date}…",
		"Off road we go — trail shoes at the ready…",
	},
	{model.PlatformFacebook, SlotIntroTrail}: {
		"It’s a trail week! Here’s what’s lined up for {date}…",
		"Taking it off road this Thursday — details below…",
	},
	{model.PlatformInstagram, SlotIntroTrail}: {
		"Trail Thursday. Mud optional.",
		"Off road this week. You in?",
	},
	{model.PlatformEmail, SlotIntroTrail}: {
		"This week we’re on the trails. Details for {date}:",
		"Trail run this Thursday — here’s the plan:",
	},

	// Routes-section headers.
	{model.PlatformWhatsApp, SlotRoutesHeader}: {
		"📍 *Two routes on offer this Thursday:*",
		"🗺️ *Pick from two options this week:*",
	},
	{model.PlatformFacebook, SlotRoutesHeader}: {
		"📍 Two routes on offer this Thursday:",
		"🗺️ Pick from two options this week:",
	},
	{model.PlatformInstagram, SlotRoutesHeader}: {
		"Two routes tonight:",
		"Pick your route:",
	},
	{model.PlatformEmail, SlotRoutesHeader}: {
		"Two routes available:",
		"Routes this week:",
	},

	// Safety notes, shared wording across platforms.
	{model.PlatformWhatsApp, SlotSafety}:  safetyLines,
	{model.PlatformFacebook, SlotSafety}:  safetyLines,
	{model.PlatformInstagram, SlotSafety}: safetyLines,
	{model.PlatformEmail, SlotSafety}:     safetyLines,

	// Outros.
	{model.PlatformWhatsApp, SlotOutro}: {
		"Happy running – see you soon!",
		"👟 See you Thursday!",
	},
	{model.PlatformFacebook, SlotOutro}: {
		"Happy running – see you soon!",
		"Bring a mate, say hello – see you there!",
	},
	{model.PlatformInstagram, SlotOutro}: {
		"See you out there ✌️",
		"Good vibes only ✨",
	},
	{model.PlatformEmail, SlotOutro}: {
		"See you Thursday.",
		"Thanks, and see you soon.",
	},

	// Special-event blurbs, shared wording across platforms.
	{model.PlatformWhatsApp, SlotEventSocial}:  eventSocial,
	{model.PlatformFacebook, SlotEventSocial}:  eventSocial,
	{model.PlatformInstagram, SlotEventSocial}: eventSocial,
	{model.PlatformEmail, SlotEventSocial}:     eventSocial,

	{model.PlatformWhatsApp, SlotEventGreen}:  eventGreen,
	{model.PlatformFacebook, SlotEventGreen}:  eventGreen,
	{model.PlatformInstagram, SlotEventGreen}: eventGreen,
	{model.PlatformEmail, SlotEventGreen}:     eventGreen,

	{model.PlatformWhatsApp, SlotEventPride}:  eventPride,
	{model.PlatformFacebook, SlotEventPride}:  eventPride,
	{model.PlatformInstagram, SlotEventPride}: eventPride,
	{model.PlatformEmail, SlotEventPride}:     eventPride,

	{model.PlatformWhatsApp, SlotEventOnTour}:  eventOnTour,
	{model.PlatformFacebook, SlotEventOnTour}:  eventOnTour,
	{model.PlatformInstagram, SlotEventOnTour}: eventOnTour,
	{model.PlatformEmail, SlotEventOnTour}:     eventOnTour,

	{model.PlatformWhatsApp, SlotEventOnTourMap}:  eventOnTourMap,
	{model.PlatformFacebook, SlotEventOnTourMap}:  eventOnTourMap,
	{model.PlatformInstagram, SlotEventOnTourMap}: eventOnTourMap,
	{model.PlatformEmail, SlotEventOnTourMap}:     eventOnTourMap,
}

var safetyLines = []string{
	"If you’re able to join us, please ensure you have your lights with you and wear hi-vis clothing.",
	"Please bring a headtorch and wear hi-vis so we can all be seen.",
	"Pack your lights and pop on some hi-vis for the darker miles, please.",
}

var eventSocial = []string{
	"🍻 We’re heading for a post-run social afterwards — everyone welcome, runners and walkers alike!",
	"🍻 Social after the run this week! Stick around for a drink and a natter.",
}

var eventGreen = []string{
	"💚 It’s Wear It Green week for mental health awareness — dig out something green to run in!",
	"💚 We’re wearing green this week in support of mental health awareness. Join in if you can!",
}

var eventPride = []string{
	"🌈 We’re celebrating Pride this week — rainbow colours very much encouraged!",
	"🌈 Pride run! Wear your brightest colours and run with pride.",
}

var eventOnTour = []string{
	"🚌 We’re on tour this week! Note the different start location above.",
	"🚌 RTR on tour — we’re starting somewhere different this week, check the meeting point!",
}

var eventOnTourMap = []string{
	"🚌 We’re on tour this week! Note the different start location — map here: {map}",
	"🚌 RTR on tour — different start this week. Find us here: {map}",
}

var defaultToneExts = map[toneKey][]string{
	// Upbeat extensions.
	{model.PlatformWhatsApp, SlotIntro, model.ToneUpbeat}: {
		"Let’s GO team — {date} is run night! 🎉",
	},
	{model.PlatformFacebook, SlotIntro, model.ToneUpbeat}: {
		"Best night of the week is nearly here — {date}! 🎉",
	},
	{model.PlatformInstagram, SlotIntro, model.ToneUpbeat}: {
		"Run night loading… 🔥",
	},
	{model.PlatformWhatsApp, SlotOutro, model.ToneUpbeat}: {
		"Bring the energy — see you Thursday! ⚡",
	},
	{model.PlatformInstagram, SlotOutro, model.ToneUpbeat}: {
		"Let’s make it a good one 🔥",
	},

	// Low-key extensions.
	{model.PlatformWhatsApp, SlotIntro, model.ToneLowKey}: {
		"No pressure, no pace — here’s Thursday’s plan.",
	},
	{model.PlatformEmail, SlotIntro, model.ToneLowKey}: {
		"A gentle reminder of this Thursday’s run:",
	},
	{model.PlatformWhatsApp, SlotOutro, model.ToneLowKey}: {
		"Come as you are — see you there.",
	},
	{model.PlatformEmail, SlotOutro, model.ToneLowKey}: {
		"Hope to see you there.",
	},
}
