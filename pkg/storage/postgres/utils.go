package postgres

import (
	"fmt"
	"strings"
	"time"
)

// buildWhereClause builds a WHERE clause with placeholders numbered from $1.
// Zero-valued bounds are omitted.
func buildWhereClause(agentID string, since, until time.Time, minImportance int) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if agentID != "" {
		conditions = append(conditions, fmt.Sprintf("agent_id = $%d", argIndex))
		args = append(args, agentID)
		argIndex++
	}

	if !since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, since.UTC())
		argIndex++
	}

	if !until.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIndex))
		args = append(args, until.UTC())
		argIndex++
	}

	if minImportance > 0 {
		conditions = append(conditions, fmt.Sprintf("importance >= $%d", argIndex))
		args = append(args, minImportance)
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// quoteValue quotes a keyword/value connection string value so passwords may
// contain spaces and quotes.
func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
