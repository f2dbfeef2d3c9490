package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/gitrepo"
	"github.com/jzempel/continuity/internal/state"
)

// newCommitCmd builds the prepare-commit-msg hook entry point. It prefixes
// the commit message with the branch's item key and silently no-ops in every
// other situation; a hook must never block a commit.
func newCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "commit <file>",
		Hidden: true,
		Args:   cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runCommit(args[0])
		},
	}
	return cmd
}

func runCommit(file string) {
	repo, err := gitrepo.Open()
	if err != nil {
		return
	}
	branch, err := repo.CurrentBranch()
	if err != nil || branch == "" {
		return
	}
	store := state.NewStore(repo)
	association, ok := store.GetAssociation(branch)
	if !ok {
		return
	}

	mention := commitMention(store, association.ItemKey)

	message, err := os.ReadFile(file)
	if err != nil {
		return
	}
	if strings.Contains(string(message), mention) {
		return
	}

	prefixed := fmt.Sprintf("[%s] %s", mention, message)
	_ = os.WriteFile(file, []byte(prefixed), 0o644)
}

// commitMention renders the item reference the way each tracker's commit
// hooks expect it: "#123" for numeric ids, the bare key for JIRA.
func commitMention(store *state.Store, itemKey string) string {
	kind, err := store.TrackerKind()
	if err == nil && kind == "jira" {
		return itemKey
	}
	return "#" + itemKey
}
