package intel

import "strings"

// Classifier turns a raw news headline into a polarity weight. The scoring
// vocabulary is an implementation detail of the classifier; the aggregator
// only consumes the resulting classified items.
type Classifier interface {
	// Classify returns the polarity in [-1, 1] and whether the item matches
	// a regulatory-risk classification.
	Classify(headline string, topics []string) (polarity float64, regulatory bool)
}

// KeywordClassifier is a simple keyword-weighted classifier. Positive and
// Negative map lowercase keywords to weights; Regulatory lists keywords that
// mark an item as regulatory risk.
type KeywordClassifier struct {
	Positive   map[string]float64
	Negative   map[string]float64
	Regulatory []string
}

// DefaultKeywordClassifier returns a classifier with a small built-in
// vocabulary. Deployments replace it via configuration.
func DefaultKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		Positive: map[string]float64{
			"adoption": 0.6, "partnership": 0.5, "upgrade": 0.4,
			"listing": 0.5, "bullish": 0.7, "rally": 0.6, "approval": 0.8,
		},
		Negative: map[string]float64{
			"hack": -0.9, "exploit": -0.9, "rug": -0.8, "lawsuit": -0.6,
			"ban": -0.7, "bearish": -0.7, "selloff": -0.6, "depeg": -0.8,
		},
		Regulatory: []string{"sec", "regulation", "regulator", "subpoena", "enforcement", "ban", "lawsuit"},
	}
}

// Classify scores the headline by summing matched keyword weights, clipping
// to [-1, 1].
func (c *KeywordClassifier) Classify(headline string, topics []string) (float64, bool) {
	text := strings.ToLower(headline)
	for _, t := range topics {
		text += " " + strings.ToLower(t)
	}

	var score float64
	for kw, w := range c.Positive {
		if strings.Contains(text, kw) {
			score += w
		}
	}
	for kw, w := range c.Negative {
		if strings.Contains(text, kw) {
			score += w
		}
	}
	score = clip(score, -1, 1)

	for _, kw := range c.Regulatory {
		if strings.Contains(text, kw) {
			return score, true
		}
	}
	return score, false
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
