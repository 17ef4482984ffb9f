package ranking

import "strings"

// FallbackBucket is assigned when an item has no usable topics.
const FallbackBucket = "misc"

// preferredBuckets is the small ontology used only for output diversity.
// Order matters: the first bucket matching any of an item's topics wins.
var preferredBuckets = []string{
	"politics", "finance", "ai", "tech", "science", "space",
	"sports", "health", "climate", "entertainment", "disaster", "world",
}

// bucketAliases maps common raw topic spellings onto ontology buckets.
var bucketAliases = map[string]string{
	"economy":       "finance",
	"business":      "finance",
	"markets":       "finance",
	"artificial intelligence": "ai",
	"machine learning":        "ai",
	"technology":    "tech",
	"astronomy":     "space",
	"medicine":      "health",
	"environment":   "climate",
	"weather":       "climate",
	"movies":        "entertainment",
	"music":         "entertainment",
	"celebrity":     "entertainment",
	"election":      "politics",
	"government":    "politics",
	"international": "world",
}

// BucketFor maps an item's topics onto a diversity bucket. Preferred
// ontology buckets are matched in priority order; otherwise the first raw
// topic is used verbatim; items without topics fall back to "misc".
// Buckets are a diversity constraint only and never feed into scoring.
func BucketFor(topics []string) string {
	normalized := make([]string, 0, len(topics))
	for _, topic := range topics {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(topic)))
	}

	for _, bucket := range preferredBuckets {
		for _, topic := range normalized {
			if topic == bucket || bucketAliases[topic] == bucket {
				return bucket
			}
		}
	}

	for _, topic := range normalized {
		if topic != "" {
			return topic
		}
	}
	return FallbackBucket
}
