package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/ui"
)

const itemDateFormat = "02 Jan 2006, 03:04PM"

// newItemCmd builds the command that displays the current branch's item:
// "story" under Pivotal Tracker, "issue" elsewhere.
func newItemCmd(kind string) *cobra.Command {
	var comments bool

	use := "issue"
	if kind == "pivotal" {
		use = "story"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("display the current branch's %s", use),
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := newWorkflow()
			runGuarded("", func() error {
				return runItem(w, comments)
			})
		},
	}
	cmd.Flags().BoolVarP(&comments, "comments", "c", false, "include comments")

	return cmd
}

func runItem(w *workflow, comments bool) error {
	item, err := w.currentItem(w.branch)
	if err != nil {
		return err
	}

	fmt.Println(item.Title)

	if item.Type != "" && w.adapter.Kind() == "pivotal" {
		fmt.Println()
		switch {
		case item.Estimate == nil:
			fmt.Println(capitalize(item.Type))
		case *item.Estimate >= 0:
			fmt.Printf("%s Estimate: %d points\n", capitalize(item.Type), *item.Estimate)
		default:
			fmt.Printf("%s Unestimated.\n", capitalize(item.Type))
		}
	}

	if item.Milestone != "" {
		fmt.Println()
		fmt.Printf("Milestone: %s\n", item.Milestone)
	}

	if item.Description != "" {
		fmt.Println()
		fmt.Print(ui.RenderMarkdown(item.Description))
	}

	verb := "Created"
	if w.adapter.Kind() == "pivotal" {
		verb = "Requested"
	}
	fmt.Println()
	fmt.Println(ui.White(fmt.Sprintf("%s by %s on %s", verb, item.Requester,
		item.Created.Format(itemDateFormat))))
	fmt.Println(ui.White(item.URL))

	if comments {
		lister, ok := w.adapter.(tracker.CommentLister)
		if !ok {
			return nil
		}
		list, err := lister.ListComments(w.ctx, item)
		if err != nil {
			return err
		}
		for _, comment := range list {
			fmt.Println()
			fmt.Println(ui.Yellow(fmt.Sprintf("%s (%s)", comment.Author,
				comment.Created.Format(itemDateFormat))))
			fmt.Println()
			fmt.Println(comment.Text)
		}
	}
	return nil
}
