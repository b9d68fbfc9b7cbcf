// Package intelligence provides the content heuristics used when storing and
// ranking memories: keyword extraction and importance scoring.
package intelligence

import (
	"strings"
	"unicode"
)

// MinKeywordLength is the shortest token kept as a keyword, in runes.
const MinKeywordLength = 3

// Content types with built-in meaning.
const (
	TypeInsight      = "insight"
	TypePreference   = "preference"
	TypeError        = "error"
	TypeGoal         = "goal"
	TypeDecision     = "decision"
	TypeConversation = "conversation"
)

// stopwords are dropped during extraction. Entries shorter than
// MinKeywordLength are filtered by length anyway and are omitted.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "but": {}, "for": {}, "with": {}, "from": {},
	"was": {}, "are": {}, "been": {}, "being": {}, "have": {}, "has": {},
	"had": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "you": {}, "she": {}, "they": {}, "them": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "when": {}, "where": {},
	"why": {}, "how": {}, "not": {}, "all": {}, "any": {}, "some": {},
	"into": {}, "onto": {}, "about": {}, "over": {}, "under": {}, "than": {},
	"then": {}, "there": {}, "their": {}, "here": {}, "also": {}, "just": {},
	"very": {}, "our": {}, "your": {}, "his": {}, "her": {}, "its": {},
	"were": {}, "shall": {}, "must": {}, "each": {}, "such": {}, "only": {},
	"own": {}, "same": {}, "too": {}, "more": {}, "most": {}, "other": {},
	"again": {}, "once": {}, "while": {}, "because": {}, "until": {}, "after": {},
	"before": {}, "between": {}, "through": {}, "during": {}, "above": {}, "below": {},
	"off": {}, "out": {}, "yes": {}, "nor": {}, "both": {}, "few": {},
	"myself": {}, "yourself": {}, "itself": {}, "ourselves": {}, "themselves": {},
	"him": {}, "hers": {}, "mine": {}, "yours": {}, "ours": {}, "theirs": {},
	"let": {}, "get": {}, "got": {}, "now": {}, "like": {},
}

// ExtractKeywords turns content into its ordered, deduplicated set of
// significant terms.
//
// Tokens are lower-cased and split on every rune that is not a letter or digit;
// stop-words and tokens shorter than MinKeywordLength are dropped. Every content
// type other than conversation contributes itself as a trailing keyword.
// The result is deterministic for a given (content, contentType).
func ExtractKeywords(content, contentType string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		if !isSignificant(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
	}

	tag := NormalizeContentType(contentType)
	if tag != TypeConversation {
		if _, dup := seen[tag]; !dup {
			keywords = append(keywords, tag)
		}
	}

	return keywords
}

// NormalizeContentType lower-cases and trims a content type, defaulting to
// conversation.
func NormalizeContentType(contentType string) string {
	t := strings.ToLower(strings.TrimSpace(contentType))
	if t == "" {
		return TypeConversation
	}
	return t
}

func isSignificant(token string) bool {
	if len([]rune(token)) < MinKeywordLength {
		return false
	}
	_, stop := stopwords[token]
	return !stop
}
