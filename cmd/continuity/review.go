package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/tracker"
)

func newReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "open a pull request for branch review",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := newWorkflow()
			runGuarded("Aborted branch review.", func() error {
				return runReview(w)
			})
		},
	}
}

func runReview(w *workflow) error {
	item, err := w.currentItem(w.branch)
	if err != nil {
		return err
	}

	fmt.Println("Creating pull request...")

	if err := w.repo.Push(w.branch); err != nil {
		return err
	}
	base, err := w.store.ResolveIntegrationBranch(w.branch)
	if err != nil {
		fatal(err.Error())
	}

	url, err := w.adapter.CreatePullRequest(w.ctx, item, base, w.branch)
	if err != nil {
		var reqErr *tracker.RequestError
		if errors.As(err, &reqErr) && !reqErr.Transport() {
			fatal(pullRequestFailure(reqErr))
		}
		return err
	}
	fmt.Printf("Opened pull request: %s\n", url)

	if rt, ok := w.adapter.(tracker.ReviewTransitioner); ok {
		return rt.CompleteReview(w.ctx, item)
	}
	return nil
}

// pullRequestFailure turns a structured API error into the review failure
// line, folding the first payload message in when one exists.
func pullRequestFailure(reqErr *tracker.RequestError) string {
	message := "Unable to create pull request"
	if len(reqErr.Errors) > 0 {
		if detail := reqErr.Errors[0]; detail != "" {
			return fmt.Sprintf("%s - %s%s.", message, strings.ToLower(detail[:1]), detail[1:])
		}
	}
	return message + "."
}
