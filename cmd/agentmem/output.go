package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	agentmem "github.com/oceanbase/agentmem-go/pkg/core"
)

const previewLength = 120

func printStored(w io.Writer, id int64, asJSON bool) error {
	if asJSON {
		return writeJSON(w, map[string]int64{"id": id})
	}
	_, err := fmt.Fprintf(w, "Stored memory %d\n", id)
	return err
}

func printQuery(w io.Writer, results []*agentmem.RankedMemory, asJSON bool) error {
	if asJSON {
		return writeJSON(w, results)
	}
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No matching memories.")
		return err
	}
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "[%.2f] %s  %-12s imp=%-2d %s\n",
			r.Relevance,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.ContentType,
			r.Importance,
			preview(r.Content),
		); err != nil {
			return err
		}
	}
	return nil
}

func printTimeline(w io.Writer, timeline agentmem.Timeline, asJSON bool) error {
	if asJSON {
		return writeJSON(w, timeline)
	}
	if len(timeline) == 0 {
		_, err := fmt.Fprintln(w, "No memories in this window.")
		return err
	}
	for _, day := range timeline.Dates() {
		if _, err := fmt.Fprintln(w, day); err != nil {
			return err
		}
		for _, m := range timeline[day] {
			if _, err := fmt.Fprintf(w, "  %s  %-12s imp=%-2d %s\n",
				m.CreatedAt.Format("15:04"),
				m.ContentType,
				m.Importance,
				preview(m.Content),
			); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// preview flattens content to one line of at most previewLength runes.
func preview(content string) string {
	line := strings.Join(strings.Fields(content), " ")
	runes := []rune(line)
	if len(runes) > previewLength {
		return string(runes[:previewLength-3]) + "..."
	}
	return line
}
