package intel

import "github.com/ascheung/poolbot/internal/domain"

// bucketConfidence maps a volume-weighted yes-probability to a label using
// the configured thresholds: below low → low, above high → high, medium
// otherwise.
func bucketConfidence(p, lowMax, highMin float64) domain.ConfidenceLabel {
	switch {
	case p < lowMax:
		return domain.ConfidenceLow
	case p > highMin:
		return domain.ConfidenceHigh
	default:
		return domain.ConfidenceMedium
	}
}
