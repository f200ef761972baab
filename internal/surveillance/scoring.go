package surveillance

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// scoreCard accumulates a confidence score as a fixed base plus bounded
// additive bonuses, then clamps to [0,100]. Additive-then-clamp keeps the
// score monotonic in its inputs and lets each bonus condition be verified
// independently.
type scoreCard struct {
	score decimal.Decimal
}

func newScore(base int64) *scoreCard {
	return &scoreCard{score: decimal.NewFromInt(base)}
}

// addIf adds bonus points when cond holds.
func (s *scoreCard) addIf(cond bool, bonus int64) *scoreCard {
	if cond {
		s.score = s.score.Add(decimal.NewFromInt(bonus))
	}
	return s
}

// add adds bonus points unconditionally.
func (s *scoreCard) add(bonus decimal.Decimal) *scoreCard {
	s.score = s.score.Add(bonus)
	return s
}

// value returns the accumulated score clamped to [0,100].
func (s *scoreCard) value() decimal.Decimal {
	return clampScore(s.score)
}

// clampScore bounds a confidence score to [0,100].
func clampScore(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(hundred) {
		return hundred
	}
	return v
}

// severityForConfidence maps a clamped confidence score to a severity band.
// Bands follow the convention used across the alerting layer.
func severityForConfidence(confidence decimal.Decimal) string {
	switch {
	case confidence.GreaterThanOrEqual(decimal.NewFromInt(90)):
		return "CRITICAL"
	case confidence.GreaterThanOrEqual(decimal.NewFromInt(75)):
		return "HIGH"
	case confidence.GreaterThanOrEqual(decimal.NewFromInt(50)):
		return "MEDIUM"
	case confidence.GreaterThanOrEqual(decimal.NewFromInt(25)):
		return "LOW"
	default:
		return "INFO"
	}
}
