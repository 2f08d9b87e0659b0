package release

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

// MatchConfidence is the confidence level of a fuzzy title match.
type MatchConfidence int

const (
	ConfidenceNone   MatchConfidence = iota // score < 0.70
	ConfidenceLow                           // score >= 0.70
	ConfidenceMedium                        // score >= 0.85
	ConfidenceHigh                          // score >= 0.95
)

func (c MatchConfidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// MatchResult is the outcome of matching one title against candidates.
type MatchResult struct {
	Title      string  // best candidate title, empty on no match
	Score      float64 // Jaro-Winkler similarity, 0.0-1.0
	Confidence MatchConfidence
}

// MatchTitle finds the best candidate for a parsed title. Jaro-Winkler favors
// prefix agreement, which suits show titles where the noise sits at the end.
func MatchTitle(parsed string, candidates []string) MatchResult {
	if len(candidates) == 0 {
		return MatchResult{Confidence: ConfidenceNone}
	}

	cleaned := CleanTitle(parsed)
	best := MatchResult{Confidence: ConfidenceNone}

	for _, candidate := range candidates {
		score := float64(edlib.JaroWinklerSimilarity(cleaned, CleanTitle(candidate)))
		if score > best.Score {
			best.Title = candidate
			best.Score = score
		}
	}

	switch {
	case best.Score >= 0.95:
		best.Confidence = ConfidenceHigh
	case best.Score >= 0.85:
		best.Confidence = ConfidenceMedium
	case best.Score >= 0.70:
		best.Confidence = ConfidenceLow
	default:
		best.Confidence = ConfidenceNone
		best.Title = ""
	}

	return best
}

// TitlesRelated reports whether two show titles plausibly refer to the same
// show, either by fuzzy similarity or by one containing the other.
func TitlesRelated(a, b string) bool {
	ca, cb := CleanTitle(a), CleanTitle(b)
	if ca == "" || cb == "" {
		return false
	}
	if strings.Contains(ca, cb) || strings.Contains(cb, ca) {
		return true
	}
	return float64(edlib.JaroWinklerSimilarity(ca, cb)) >= 0.85
}
