package oceanbase

import (
	"strings"
	"time"
)

// buildWhereClause builds a WHERE clause.
func buildWhereClause(agentID string, since, until time.Time, minImportance int) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	if agentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, agentID)
	}

	if !since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, since.UTC())
	}

	if !until.IsZero() {
		conditions = append(conditions, "created_at < ?")
		args = append(args, until.UTC())
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
