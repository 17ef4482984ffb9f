package learn

import (
	"strings"
	"unicode"

	"github.com/onnwee/currents/internal/article"
)

// MinTokenLength filters short title tokens out of the feature set.
const MinTokenLength = 3

// ExtractFeatures derives the learnable feature set from an article: its
// source id, each of the user's interests the article matches, each tag,
// and each title token of at least MinTokenLength characters. Keys are
// lowercased; duplicates are dropped.
func ExtractFeatures(cand *article.Candidate, interests []string) []Feature {
	var features []Feature
	seen := make(map[Feature]bool)
	add := func(ft FeatureType, key string) {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return
		}
		f := Feature{Type: ft, Key: key}
		if seen[f] {
			return
		}
		seen[f] = true
		features = append(features, f)
	}

	add(FeatureSource, cand.SourceID)

	haystack := strings.ToLower(cand.Title + " " + strings.Join(cand.Topics, " "))
	for _, interest := range interests {
		if needle := strings.ToLower(strings.TrimSpace(interest)); needle != "" && strings.Contains(haystack, needle) {
			add(FeatureInterest, needle)
		}
	}

	for _, tag := range cand.Topics {
		add(FeatureTag, tag)
	}

	for _, token := range TitleTokens(cand.Title) {
		add(FeatureTitleToken, token)
	}

	return features
}

// TitleTokens splits a title into lowercased, punctuation-stripped tokens
// of at least MinTokenLength characters.
func TitleTokens(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= MinTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
