package sqlite

import (
	"strings"
	"time"
)

// buildWhereClause builds the WHERE clause shared by both select operations.
// Zero-valued bounds are omitted.
func buildWhereClause(agentID string, since, until time.Time, minImportance int) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	if agentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, agentID)
	}

	if !since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, since.UnixNano())
	}

	if !until.IsZero() {
		conditions = append(conditions, "created_at < ?")
		args = append(args, until.UnixNano())
	}

	if minImportance > 0 {
		conditions = append(conditions, "importance >= ?")
		args = append(args, minImportance)
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// uriPathEscaper escapes the characters SQLite's URI filename parser treats
// as syntax, so the DSN names exactly the configured file.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func escapeURIPath(path string) string {
	return uriPathEscaper.Replace(path)
}
