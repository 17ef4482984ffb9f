// Package mood provides the mood archetype table and mood-fit scoring used
// by the personalization overlay. Archetypes are defined as data (keyword
// sets, recency bands, weight profiles) so new moods are additive: adding a
// map entry is the whole change.
package mood

import (
	"strings"
	"time"

	"github.com/onnwee/currents/internal/ranking"
)

// Mood identifies one of the supported mood archetypes.
type Mood string

// Supported mood archetypes.
const (
	Calm     Mood = "calm"
	Focused  Mood = "focused"
	Curious  Mood = "curious"
	Hyped    Mood = "hyped"
	Meh      Mood = "meh"
	Stressed Mood = "stressed"
	Sad      Mood = "sad"
)

// DefaultMood is used when a request supplies no mood or an unknown one.
const DefaultMood = Curious

// DefaultBlend is the neutral comfort/challenge dial position.
const DefaultBlend = 0.5

// Scoring weights shared across archetypes.
const (
	baseline        = 0.5  // Neutral mood score before adjustments
	avoidPenalty    = 0.15 // Deduction per matched avoid-keyword set
	arousalFitScale = 0.15 // Always-on term rewarding arousal closeness
)

// ItemView is the slice of article state mood scoring reads. The overlay
// builds it from snapshot items; tests build it directly.
type ItemView struct {
	Title       string
	Summary     string
	Topics      []string
	PublishedAt time.Time

	Arousal       float64
	Sentiment     float64
	Depth         float64
	Explainer     float64
	Wholesome     float64
	HumanInterest float64
	Novelty       float64
	Hype          float64
}

// RecencyBand expresses an archetype's preferred article age range.
type RecencyBand struct {
	Min time.Duration
	Max time.Duration
}

// Contains reports whether an age falls inside the band. A zero band
// matches nothing.
func (b RecencyBand) Contains(age time.Duration) bool {
	if b.Max == 0 {
		return false
	}
	return age >= b.Min && age <= b.Max
}

// Profile defines one mood archetype: which keywords it rewards and avoids,
// which signal it leans on, its preferred recency band, and the weights
// combining them.
type Profile struct {
	// Keywords reward a match in title/summary/topics.
	Keywords []string
	// AvoidKeywords penalize a match.
	AvoidKeywords []string
	// Signal extracts the archetype's preferred signal from the item.
	Signal func(ItemView) float64
	// Band is the preferred article age range.
	Band RecencyBand

	KeywordWeight float64
	SignalWeight  float64
	RecencyWeight float64
}

// profiles is the archetype lookup table. Branching on mood anywhere else
// in the engine is a bug; behavior differences live here.
var profiles = map[Mood]Profile{
	Calm: {
		Keywords:      []string{"nature", "garden", "slow", "community", "restoration", "craft", "wildlife"},
		AvoidKeywords: []string{"breaking", "crisis", "slams", "chaos", "panic"},
		Signal:        func(v ItemView) float64 { return v.Wholesome },
		Band:          RecencyBand{Min: 6 * time.Hour, Max: 48 * time.Hour},
		KeywordWeight: 0.2,
		SignalWeight:  0.3,
		RecencyWeight: 0.1,
	},
	Focused: {
		Keywords:      []string{"analysis", "explained", "deep dive", "research", "report", "study"},
		AvoidKeywords: []string{"rumor", "gossip", "viral"},
		Signal:        func(v ItemView) float64 { return v.Depth },
		Band:          RecencyBand{Min: 0, Max: 24 * time.Hour},
		KeywordWeight: 0.2,
		SignalWeight:  0.35,
		RecencyWeight: 0.05,
	},
	Curious: {
		Keywords:      []string{"discovery", "first", "new", "unexpected", "mystery", "how", "why"},
		AvoidKeywords: nil,
		Signal:        func(v ItemView) float64 { return v.Novelty },
		Band:          RecencyBand{Min: 0, Max: 12 * time.Hour},
		KeywordWeight: 0.25,
		SignalWeight:  0.3,
		RecencyWeight: 0.1,
	},
	Hyped: {
		Keywords:      []string{"launch", "record", "wins", "breakthrough", "milestone", "debut"},
		AvoidKeywords: []string{"obituary", "decline"},
		Signal:        func(v ItemView) float64 { return (v.Arousal + v.Hype) / 2 },
		Band:          RecencyBand{Min: 0, Max: 6 * time.Hour},
		KeywordWeight: 0.25,
		SignalWeight:  0.3,
		RecencyWeight: 0.15,
	},
	Meh: {
		Keywords:      []string{"quiz", "ranking", "list", "trailer", "recap"},
		AvoidKeywords: []string{"in-depth", "longread"},
		Signal:        func(v ItemView) float64 { return 1 - v.Depth },
		Band:          RecencyBand{Min: 0, Max: 24 * time.Hour},
		KeywordWeight: 0.2,
		SignalWeight:  0.25,
		RecencyWeight: 0.05,
	},
	Stressed: {
		Keywords:      []string{"guide", "tips", "practical", "checklist", "calm", "routine"},
		AvoidKeywords: []string{"war", "collapse", "crash", "deadly", "outbreak"},
		Signal:        func(v ItemView) float64 { return v.Explainer },
		Band:          RecencyBand{Min: 12 * time.Hour, Max: 72 * time.Hour},
		KeywordWeight: 0.25,
		SignalWeight:  0.25,
		RecencyWeight: 0.1,
	},
	Sad: {
		Keywords:      []string{"kindness", "rescue", "recovered", "reunited", "hope", "volunteers"},
		AvoidKeywords: []string{"tragedy", "grief", "victims"},
		Signal:        func(v ItemView) float64 { return (v.Wholesome + v.HumanInterest) / 2 },
		Band:          RecencyBand{Min: 6 * time.Hour, Max: 72 * time.Hour},
		KeywordWeight: 0.25,
		SignalWeight:  0.3,
		RecencyWeight: 0.1,
	},
}

// Parse maps a request string onto a supported mood, falling back to
// DefaultMood for unknown values.
func Parse(s string) Mood {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[m]; ok {
		return m
	}
	return DefaultMood
}

// Known reports whether m is a supported archetype.
func Known(m Mood) bool {
	_, ok := profiles[m]
	return ok
}

// All returns the supported moods in stable order.
func All() []Mood {
	return []Mood{Calm, Focused, Curious, Hyped, Meh, Stressed, Sad}
}

// Score computes the mood-fit score in [0, 1] for an item under (mood,
// blend) at the given time. blend is the comfort/challenge dial: 0 targets
// low arousal, 1 targets high arousal. The always-on arousal-closeness term
// applies to every archetype; the rest comes from the archetype's profile.
func Score(item ItemView, m Mood, blend float64, now time.Time) float64 {
	profile, ok := profiles[m]
	if !ok {
		profile = profiles[DefaultMood]
	}
	blend = ranking.Clamp01(blend)

	score := baseline

	text := strings.ToLower(item.Title + " " + item.Summary + " " + strings.Join(item.Topics, " "))
	if matchesAny(text, profile.Keywords) {
		score += profile.KeywordWeight
	}
	if matchesAny(text, profile.AvoidKeywords) {
		score -= avoidPenalty
	}

	if profile.Signal != nil {
		score += profile.SignalWeight * (ranking.Clamp01(profile.Signal(item)) - 0.5)
	}

	if profile.Band.Contains(now.Sub(item.PublishedAt)) {
		score += profile.RecencyWeight
	}

	// Comfort wants quiet, challenge wants charged: target arousal is 1-blend
	// inverted through the dial so blend=1 rewards high-arousal items.
	targetArousal := blend
	closeness := 1 - absFloat(ranking.Clamp01(item.Arousal)-targetArousal)
	score += arousalFitScale * (closeness - 0.5)

	return ranking.Clamp01(score)
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
