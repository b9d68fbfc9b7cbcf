package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	agentmem "github.com/oceanbase/agentmem-go/pkg/core"
)

func newStoreCmd(opts *rootOptions) *cobra.Command {
	var (
		contentType string
		importance  int
		source      string
		agentID     string
	)

	cmd := &cobra.Command{
		Use:   "store <content>",
		Short: "Store a memory",
		Long: `Store a memory for an agent.

Use "-" as the content to read it from stdin.

Examples:
  # Record a preference
  agentmem store --type preference "User prefers dark mode"

  # Record a goal with an explicit importance
  agentmem store --type goal --importance 9 "Ship three products this quarter"

  # Pipe content in
  echo "Deploys happen on Fridays" | agentmem store -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			if content == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
				content = string(data)
			}

			storeOpts := []agentmem.StoreOption{
				agentmem.WithContentType(contentType),
				agentmem.WithSource(source),
				agentmem.WithAgentID(agentID),
			}
			if cmd.Flags().Changed("importance") {
				storeOpts = append(storeOpts, agentmem.WithImportance(importance))
			}

			return opts.withClient(cmd.Context(), func(client *agentmem.Client) error {
				id, err := client.Store(cmd.Context(), content, storeOpts...)
				if err != nil {
					return err
				}
				return printStored(cmd.OutOrStdout(), id, opts.jsonOutput)
			})
		},
	}

	cmd.Flags().StringVarP(&contentType, "type", "t", agentmem.TypeConversation,
		"content type (insight, preference, error, goal, decision, conversation or custom)")
	cmd.Flags().IntVarP(&importance, "importance", "i", 0, "explicit importance 1-10 (computed when omitted)")
	cmd.Flags().StringVar(&source, "source", "", "provenance tag")
	cmd.Flags().StringVar(&agentID, "agent", "", "owning agent (default from config)")

	return cmd
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit         int
		days          int
		minImportance int
		agentID       string
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Find the most relevant memories",
		Long: `Query memories by keyword relevance within a recent window.

Examples:
  agentmem query "database decision"
  agentmem query --limit 10 --days 7 --min-importance 6 "deploy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return opts.withClient(cmd.Context(), func(client *agentmem.Client) error {
				results, err := client.Query(cmd.Context(), text,
					agentmem.WithLimit(limit),
					agentmem.WithDays(days),
					agentmem.WithMinImportance(minImportance),
					agentmem.WithAgentIDForQuery(agentID),
				)
				if err != nil {
					return err
				}
				return printQuery(cmd.OutOrStdout(), results, opts.jsonOutput)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", agentmem.DefaultQueryLimit, "maximum number of results")
	cmd.Flags().IntVarP(&days, "days", "d", agentmem.DefaultQueryDays, "how many days back to search")
	cmd.Flags().IntVar(&minImportance, "min-importance", 0, "minimum importance (0-10)")
	cmd.Flags().StringVar(&agentID, "agent", "", "agent to search (default from config)")

	return cmd
}

func newTimelineCmd(opts *rootOptions) *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "timeline [days]",
		Short: "List memories grouped by day",
		Long: `Show the memories of the last N days (default 7), newest first.

Examples:
  agentmem timeline
  agentmem timeline 30 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days := 7
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid day count %q: %w", args[0], err)
				}
				days = n
			}

			return opts.withClient(cmd.Context(), func(client *agentmem.Client) error {
				timeline, err := client.Timeline(cmd.Context(), days, agentmem.WithAgentIDForTimeline(agentID))
				if err != nil {
					return err
				}
				return printTimeline(cmd.OutOrStdout(), timeline, opts.jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent to list (default from config)")

	return cmd
}
