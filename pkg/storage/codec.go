package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// DefaultCollection is the table / key namespace used when none is configured.
const DefaultCollection = "memories"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateCollection checks that name is safe to splice into SQL as a table name.
func ValidateCollection(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// EncodeKeywords serializes keywords as a JSON array for text columns.
func EncodeKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("encode keywords: %w", err)
	}
	return string(data), nil
}

// DecodeKeywords parses a JSON array produced by EncodeKeywords.
func DecodeKeywords(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var keywords []string
	if err := json.Unmarshal([]byte(s), &keywords); err != nil {
		return nil, fmt.Errorf("parse keywords: %w", err)
	}
	return keywords, nil
}
