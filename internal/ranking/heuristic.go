package ranking

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/onnwee/currents/internal/article"
)

// Heuristic formula weights.
// raw = recency^weight + log10(1+clusterSize)*corroboration + arousal*arousalWeight,
// scaled by source authority, plus additive event boosts and penalties.
const (
	RecencyExponent     = 0.45
	RecencyWeight       = 1.1
	CorroborationWeight = 0.7
	ArousalWeight       = 0.25
	Tier1Authority      = 1.25
	BoostKeywordBonus   = 0.25
	PenaltyKeywordMalus = 0.35
	CasualtyBonus       = 0.25
	LegalActionBonus    = 0.2

	// MinAgeHours floors the publish age so brand-new articles do not
	// dominate purely through the recency power law.
	MinAgeHours = 0.5
)

// boostKeywords mark likely hard-news events.
var boostKeywords = []string{
	"ceasefire", "merger", "acquisition", "earthquake", "eruption",
	"invasion", "airstrike", "indictment", "resigns", "resignation",
	"breakthrough", "outbreak", "sanctions", "default", "bailout",
	"landfall", "evacuation", "verdict", "impeachment", "coup",
}

// penaltyKeywords mark promotional or evergreen filler.
var penaltyKeywords = []string{
	"discount", "deal", "deals", "coupon", "roundup", "how-to",
	"how to", "best of", "gift guide", "sponsored", "giveaway",
	"sale", "review:", "hands-on", "top 10",
}

// casualtyPattern matches casualty counts ("12 dead", "dozens injured").
var casualtyPattern = regexp.MustCompile(`(?i)\b(\d+|dozens|hundreds|thousands)\s+(dead|killed|injured|missing|casualties)\b`)

// legalPattern matches legal and regulatory actions.
var legalPattern = regexp.MustCompile(`(?i)\b(lawsuit|subpoena|antitrust|indicted|charged|convicted|regulator|ruling|injunction|fined)\b`)

// Scorer computes raw heuristic importance scores for cluster representatives.
type Scorer struct {
	tier1Sources map[string]bool
	now          func() time.Time // For testability
}

// NewScorer creates a heuristic scorer. tier1Sources is the configured
// allow-list of high-authority source ids; membership multiplies the score
// by Tier1Authority.
func NewScorer(tier1Sources []string) *Scorer {
	set := make(map[string]bool, len(tier1Sources))
	for _, s := range tier1Sources {
		set[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return &Scorer{tier1Sources: set, now: time.Now}
}

// WithNow overrides the clock, for deterministic tests.
func (s *Scorer) WithNow(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Score computes the raw importance score for a cluster and the list of
// human-readable reasons that contributed to it.
func (s *Scorer) Score(cluster article.Cluster) (float64, []string) {
	rep := cluster.Representative
	var reasons []string

	hours := s.now().Sub(rep.PublishedAt).Hours()
	if hours < MinAgeHours {
		hours = MinAgeHours
	}
	recency := 1.0 / math.Pow(hours, RecencyExponent)

	raw := recency * RecencyWeight
	raw += math.Log10(1+float64(cluster.Size)) * CorroborationWeight
	raw += rep.Signals.Arousal * ArousalWeight

	if cluster.Size > 1 {
		reasons = append(reasons, "Covered by multiple sources")
	}

	if s.tier1Sources[strings.ToLower(rep.SourceID)] {
		raw *= Tier1Authority
		reasons = append(reasons, "High-authority source")
	}

	text := strings.ToLower(rep.Title + " " + rep.Summary)
	if n := countMatches(text, boostKeywords); n > 0 {
		raw += BoostKeywordBonus * float64(n)
		reasons = append(reasons, "Major event signal")
	}
	if n := countMatches(text, penaltyKeywords); n > 0 {
		raw -= PenaltyKeywordMalus * float64(n)
	}
	if casualtyPattern.MatchString(text) {
		raw += CasualtyBonus
		reasons = append(reasons, "Casualty report")
	}
	if legalPattern.MatchString(text) {
		raw += LegalActionBonus
		reasons = append(reasons, "Legal or regulatory action")
	}

	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		raw = 0
	}
	return raw, reasons
}

// countMatches returns how many keywords occur in text. Each matched keyword
// counts once regardless of how often it repeats.
func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}
