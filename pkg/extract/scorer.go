package extract

import (
	"math"
	"sort"
)

// Scoring weights. The ideal area is roughly the visual footprint of a
// prominent product-page price block.
const (
	idealArea       = 10000.0
	maxFontBonus    = 30.0
	areaBonus       = 25.0
	currencyBonus   = 30.0
	keywordBonus    = 25.0
	positionBonus   = 20.0
	centerBonus     = 10.0
	positionCeiling = 2000.0
)

// Score computes the weighted sum for a single candidate. Deterministic
// for identical geometry inputs.
func Score(c Candidate) float64 {
	s := 0.0

	if c.FontSize > 12 {
		s += math.Min((c.FontSize-12)*3, maxFontBonus)
	}

	switch {
	case c.FontWeight >= 600:
		s += 20
	case c.FontWeight >= 500:
		s += 10
	}

	if c.Area > 0 {
		distance := math.Abs(c.Area-idealArea) / idealArea
		if distance < 1 {
			s += areaBonus * (1 - distance)
		}
	}

	if c.HasCurrency {
		s += currencyBonus
	}
	if c.HasKeyword {
		s += keywordBonus
	}

	if c.YPosition < positionCeiling {
		s += positionBonus * (1 - c.YPosition/positionCeiling)
	}

	if c.Centered {
		s += centerBonus
	}

	return s
}

// Rank sorts candidates by descending score. The sort is stable, so
// ties keep original scan order.
func Rank(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Score(ranked[i]) > Score(ranked[j])
	})
	return ranked
}
