package crime

import "math"

const (
	// scalingFactor damps the banded score so raw counts read less alarming.
	scalingFactor = 0.5

	minScore = 5
	maxScore = 75
)

// Score converts an incident total into a crime score.
//
// The total is mapped onto banded raw values (0-25 up to 50 incidents,
// 25-45 up to 200, 45-65 up to 1000, then logarithmic towards 75) which are
// halved and clamped to [5, 75]. Zero incidents always score 0.
func Score(total int) int {
	if total <= 0 {
		return 0
	}

	t := float64(total)
	var raw float64
	switch {
	case total <= 50:
		raw = math.Round(t / 50 * 25)
	case total <= 200:
		raw = math.Round(25 + (t-50)/150*20)
	case total <= 1000:
		raw = math.Round(45 + (t-200)/800*20)
	default:
		raw = math.Min(75, math.Round(65+math.Log10(t-1000+1)/math.Log10(4001)*10))
	}

	score := int(math.Round(raw * scalingFactor))
	return clamp(score, minScore, maxScore)
}

// Clamp100 bounds a score to [0, 100].
func Clamp100(score int) int {
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
