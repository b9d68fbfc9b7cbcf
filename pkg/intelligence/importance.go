package intelligence

import (
	"strings"
	"unicode/utf8"
)

// Importance bounds.
const (
	MinImportance     = 1
	MaxImportance     = 10
	DefaultImportance = 5
)

// Length tiers, in runes. Each tier crossed adds one point; the total length
// contribution is capped at maxLengthBonus.
var lengthTiers = []int{200, 1000}

const (
	maxLengthBonus = 2
	sensitiveBonus = 3
)

// typeBonus is the additive adjustment per content type.
var typeBonus = map[string]int{
	TypeInsight: 2,
	TypeError:   1,
	TypeGoal:    2,
}

// sensitiveTerms flag security- or credential-related content. Matching is a
// case-insensitive substring test.
var sensitiveTerms = []string{
	"security",
	"password",
	"passwd",
	"secret",
	"credential",
	"api key",
	"api_key",
	"apikey",
	"private key",
	"access key",
	"token",
}

// ScoreImportance returns the importance of a memory in [1,10].
//
// An explicit importance is clamped and returned unchanged otherwise; the scorer
// never overrides the caller. Without one, the score starts at 5 and adds
// length, content-type and sensitive-term bonuses before clamping.
//
// Example:
//
//	ScoreImportance("User prefers dark mode", "preference", nil) // 5
//	ScoreImportance("My API key leaked", "", nil)                // 8
func ScoreImportance(content, contentType string, explicit *int) int {
	if explicit != nil {
		return ClampImportance(*explicit)
	}

	score := DefaultImportance

	length := utf8.RuneCountInString(content)
	lengthBonus := 0
	for _, tier := range lengthTiers {
		if length > tier {
			lengthBonus++
		}
	}
	if lengthBonus > maxLengthBonus {
		lengthBonus = maxLengthBonus
	}
	score += lengthBonus

	score += typeBonus[NormalizeContentType(contentType)]

	if ContainsSensitiveTerm(content) {
		score += sensitiveBonus
	}

	return ClampImportance(score)
}

// ContainsSensitiveTerm reports whether content mentions security or
// credential material.
func ContainsSensitiveTerm(content string) bool {
	lower := strings.ToLower(content)
	for _, term := range sensitiveTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// ClampImportance clamps v to [MinImportance, MaxImportance].
func ClampImportance(v int) int {
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}
