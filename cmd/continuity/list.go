package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/ui"
)

// newListCmd builds the open-item listing: "backlog" under Pivotal Tracker,
// "issues" elsewhere. Output goes through the pager.
func newListCmd(kind string) *cobra.Command {
	var mine bool

	use := "issues"
	if kind == "pivotal" {
		use = "backlog"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("list open %s", use),
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := newWorkflow()
			runGuarded("", func() error {
				return runList(w, mine)
			})
		},
	}

	switch kind {
	case "pivotal":
		cmd.Flags().BoolVarP(&mine, "mywork", "m", false, "list stories owned by you")
	case "jira":
		cmd.Flags().BoolVarP(&mine, "myissues", "m", false, "list issues assigned to you")
	default:
		cmd.Flags().BoolVarP(&mine, "assignedtoyou", "u", false, "list issues assigned to you")
	}

	return cmd
}

func runList(w *workflow, mine bool) error {
	items, err := w.adapter.ListItems(w.ctx, mine)
	if err != nil {
		return err
	}

	var output strings.Builder
	for i := range items {
		output.WriteString(formatItemLine(w.adapter.Kind(), &items[i]))
	}
	return ui.ToPager(output.String())
}

// formatItemLine renders one listing row in each tracker's historical
// format.
func formatItemLine(kind string, item *tracker.Item) string {
	switch kind {
	case "pivotal":
		detail := strings.ToUpper(item.Type)
		switch {
		case item.Estimate == nil:
		case *item.Estimate >= 0:
			detail = fmt.Sprintf("%s (%d)", detail, *item.Estimate)
		default:
			detail = fmt.Sprintf("%s (?)", detail)
		}
		name := item.Title
		if item.Assignee != "" {
			name = fmt.Sprintf("%s (%s)", name, item.Assignee)
		}
		return fmt.Sprintf("%s %s: %s\n", ui.Yellow(item.Key), detail, name)

	case "jira":
		detail := strings.ToUpper(item.Type)
		if item.Priority != "" {
			detail = fmt.Sprintf("%s (%s)", detail, strings.ToLower(item.Priority))
		}
		if item.Status != "" {
			detail = fmt.Sprintf("%s [%s]", detail, strings.ToUpper(item.Status))
		}
		title := item.Title
		if item.Assignee != "" {
			title = fmt.Sprintf("%s (%s)", title, item.Assignee)
		}
		return fmt.Sprintf("%s %s: %s\n", ui.Yellow(item.Key), detail, title)

	default: // github
		title := item.Title
		// Started wins over finished when an issue carries both labels.
		switch {
		case hasLabel(item.Labels, "started"):
			title += " [STARTED]"
		case hasLabel(item.Labels, "finished"):
			title += " [FINISHED]"
		}
		information := item.Assignee
		if information != "" && item.Milestone != "" {
			information = fmt.Sprintf("%s, %s", information, item.Milestone)
		} else if information == "" {
			information = item.Milestone
		}
		if information != "" {
			title = fmt.Sprintf("%s (%s)", title, information)
		}
		return fmt.Sprintf("%s: %s\n", ui.Yellow(item.Key), strings.TrimSpace(title))
	}
}

func hasLabel(labels []string, name string) bool {
	for _, label := range labels {
		if label == name {
			return true
		}
	}
	return false
}
