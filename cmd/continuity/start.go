package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/gitrepo"
	"github.com/jzempel/continuity/internal/state"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/ui"
)

// newStartCmd builds the start command. The exclusive flag keeps its
// historical spelling per tracker: --mywork for Pivotal Tracker,
// --assignedtoyou for GitHub.
func newStartCmd(kind string) *cobra.Command {
	var (
		mywork       bool
		assignedToMe bool
		ignoreStatus bool
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "start [key]",
		Short: "start a branch linked to a tracker item",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			w := newWorkflow()
			abortMessage := fmt.Sprintf("Aborted %s branch.", w.adapter.Noun())
			runGuarded(abortMessage, func() error {
				key := ""
				if len(args) > 0 {
					key = args[0]
				}
				opts := tracker.FilterOptions{
					Key:          key,
					Exclusive:    mywork || assignedToMe || w.store.Exclusive(),
					IgnoreStatus: ignoreStatus,
				}
				return runStart(w, opts, force)
			})
		},
	}

	switch kind {
	case "pivotal":
		cmd.Flags().BoolVarP(&mywork, "mywork", "m", false, "only start stories owned by you")
	case "jira":
		cmd.Flags().BoolVarP(&mywork, "myissues", "m", false, "only start issues assigned to you")
	default:
		cmd.Flags().BoolVarP(&assignedToMe, "assignedtoyou", "u", false, "only start issues assigned to you")
	}
	cmd.Flags().BoolVarP(&ignoreStatus, "ignore", "i", false, "ignore the item's status when selecting by key")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "allow start from non-integration branch")

	return cmd
}

func runStart(w *workflow, opts tracker.FilterOptions, force bool) error {
	integration, err := w.store.IntegrationBranch()
	if err != nil {
		fatal(err.Error())
	}
	if !force && w.branch != integration {
		fatal(fmt.Sprintf(
			"error: Attempted start from non-integration branch; switch to '%s'.\nUse -f if you really want to start from '%s'.",
			integration, w.branch))
	}

	item, err := w.adapter.FilterAvailableItem(w.ctx, opts)
	if err != nil {
		return err
	}
	if item == nil {
		fmt.Println(w.adapter.NoMatchMessage(opts))
		return nil
	}

	fmt.Printf("%s: %s\n", capitalize(w.adapter.Noun()), item.Title)

	item, err = w.adapter.ClaimOwnership(w.ctx, item)
	if err != nil {
		return err
	}
	if !w.adapter.IsMine(item) {
		if w.adapter.Noun() == "story" {
			fatal("Unable to update story owner.")
		}
		fatal("Unable to update issue assignee.")
	}

	name, err := ui.Prompt("Enter branch name", "")
	if err != nil {
		return err
	}
	branch := strings.Join(strings.Fields(name), "-")

	if err := w.repo.CreateBranch(branch); err != nil {
		return err
	}
	fmt.Printf("Switched to a new branch '%s'\n", branch)

	if w.repo.HasRemote() {
		if err := pushNewBranch(w.repo, w.branch, branch); err != nil {
			return err
		}
	}

	association := state.Association{BranchName: branch, ItemKey: item.Key}
	if force {
		association.IntegrationBranchOverride = w.branch
	}
	if err := w.store.SetAssociation(association); err != nil {
		return err
	}

	return w.adapter.AdvanceStatus(w.ctx, item, tracker.PhaseInProgress)
}

// pushNewBranch publishes a freshly created branch upstream. A half-created
// branch the remote never saw is rolled back on failure; a previously pushed
// branch is left alone.
func pushNewBranch(repo *gitrepo.Repository, previous, branch string) error {
	if err := repo.PushUpstream(branch); err != nil {
		if !repo.HasRemoteTracking(branch) {
			_ = repo.Checkout(previous)
			_ = repo.ForceDeleteBranch(branch)
		}
		return err
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
