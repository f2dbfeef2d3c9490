package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/gitrepo"
	"github.com/jzempel/continuity/internal/tracker"
)

func newFinishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finish <branchname> [-- merge flags]",
		Short: "merge a finished branch into the integration branch",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			w := newWorkflow()
			runGuarded("", func() error {
				return runFinish(w, args[0], args[1:])
			})
		},
	}
}

func runFinish(w *workflow, branch string, mergeArgs []string) error {
	if w.branch == branch {
		fatal("Already up-to-date.")
	}

	target, err := w.store.ResolveIntegrationBranch(branch)
	if err != nil {
		fatal(err.Error())
	}
	if w.branch != target {
		fatal(fmt.Sprintf(
			"error: Attempted finish from non-integration branch; switch to '%s'.",
			target))
	}

	// Resolve the branch's item from the branch itself, then come back. The
	// item is read once here and reused for the merge tag and the status
	// transition.
	if err := w.repo.Checkout(branch); err != nil {
		return err
	}
	item, lookupErr := w.currentItem(branch)
	if err := w.repo.Checkout(w.branch); err != nil {
		return err
	}
	if lookupErr != nil {
		return lookupErr
	}

	tag, err := w.adapter.BeginFinish(w.ctx, item)
	if err != nil {
		return err
	}

	if err := w.repo.Merge(branch, tag, mergeArgs...); err != nil {
		paths, status, ok := mergeFailure(w.repo, err)
		if !ok {
			return err
		}
		if len(paths) > 0 {
			// An in-progress merge is recoverable state; leave it for the
			// user to resolve.
			for _, path := range paths {
				fmt.Fprintf(os.Stderr, "Merge conflict: %s\n", path)
			}
			os.Exit(status)
		}
		fatalStatus(err.Error(), status)
	}
	fmt.Printf("Merged branch '%s' into %s.\n", branch, w.branch)

	if err := w.repo.DeleteBranch(branch); err != nil {
		fatal("conflict: Fix conflicts and then commit the result.")
	}
	fmt.Printf("Deleted branch %s.\n", branch)

	if err := w.adapter.CompleteFinish(w.ctx, item); err != nil {
		return err
	}
	fmt.Printf("Finished %s %s.\n", w.adapter.Noun(), w.adapter.FormatKey(item))

	// The remote copy of a merged branch is cleanup, not workflow: failures
	// here are ignored because the merge already landed.
	if cleaner, ok := w.adapter.(tracker.RemoteBranchCleaner); ok && w.repo.HasRemote() {
		_ = cleaner.CleanupRemoteBranch(w.ctx, branch)
		_ = w.repo.PruneRemote()
	}

	return nil
}

// mergeFailure classifies a failed merge: the conflicted paths when the merge
// stopped on conflicts, plus the git exit status to terminate with. ok is
// false when the failure did not come from git itself.
func mergeFailure(repo *gitrepo.Repository, err error) (paths []string, status int, ok bool) {
	var gitErr *gitrepo.CommandError
	if !errors.As(err, &gitErr) {
		return nil, 0, false
	}
	return repo.UnmergedPaths(), gitErr.ExitStatus, true
}
