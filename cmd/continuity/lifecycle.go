package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jzempel/continuity/internal/gitrepo"
	"github.com/jzempel/continuity/internal/state"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/ui"
)

// workflow carries the collaborators every tracker command needs: the
// repository, the branch-state store, the configured tracker adapter, and
// the branch that was checked out at invocation.
type workflow struct {
	ctx     context.Context
	repo    *gitrepo.Repository
	store   *state.Store
	adapter tracker.Adapter
	branch  string
}

// newWorkflow wires the command collaborators, terminating on the fatal
// preconditions: not a repository, or missing configuration. Configuration
// failures happen here, before any network call.
func newWorkflow() *workflow {
	repo := openRepo()
	store := state.NewStore(repo)

	kind, err := store.TrackerKind()
	if err != nil {
		fatal(err.Error())
	}
	adapter, err := tracker.New(kind, trackerConfig{store: store, repo: repo})
	if err != nil {
		fatal(err.Error())
	}
	branch, err := repo.CurrentBranch()
	if err != nil {
		fatal(err.Error())
	}

	return &workflow{
		ctx:     context.Background(),
		repo:    repo,
		store:   store,
		adapter: adapter,
		branch:  branch,
	}
}

func openRepo() *gitrepo.Repository {
	repo, err := gitrepo.Open()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: Not a git repository.")
		os.Exit(128)
	}
	return repo
}

// trackerConfig adapts the store and repository to the tracker.Config
// contract.
type trackerConfig struct {
	store *state.Store
	repo  *gitrepo.Repository
}

func (c trackerConfig) Required(section, key string) (string, error) {
	return c.store.Required(section, key)
}

func (c trackerConfig) Optional(section, key string) string {
	return c.store.Optional(section, key)
}

func (c trackerConfig) OptionalBool(section, key string) bool {
	return c.store.OptionalBool(section, key)
}

func (c trackerConfig) GetAssociation(branch string) (string, bool) {
	a, ok := c.store.GetAssociation(branch)
	return a.ItemKey, ok
}

func (c trackerConfig) RemoteURL() string {
	return c.repo.RemoteURL()
}

// runGuarded executes a command body under the uniform failure
// classification: a canceled prompt prints a blank line, an unreachable
// remote (HTTP transport or an unhandled git failure) prints one fatal line,
// and either is followed by the command's abort message. Anything a command
// did not handle itself terminates with its message.
func runGuarded(abortMessage string, fn func() error) {
	err := fn()
	if err == nil {
		return
	}

	var reqErr *tracker.RequestError
	var gitErr *gitrepo.CommandError
	switch {
	case errors.Is(err, ui.ErrCanceled):
		fmt.Println()
	case errors.As(err, &reqErr) && reqErr.Transport():
		fmt.Println("fatal: unable to access remote.")
	case errors.As(err, &gitErr):
		fmt.Println("fatal: unable to access remote.")
	default:
		fatal(err.Error())
	}

	abort(abortMessage)
}

// abort prints the command's abort message and ends the invocation without
// an error status; an aborted command is a user decision, not a failure.
func abort(message string) {
	if message != "" {
		fmt.Println(message)
	}
	os.Exit(0)
}

// fatal prints a message to stderr and terminates with an error status.
func fatal(message string) {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}

// fatalStatus is fatal preserving a git process's exit status.
func fatalStatus(message string, status int) {
	fmt.Fprintln(os.Stderr, message)
	if status <= 0 {
		status = 1
	}
	os.Exit(status)
}

// notBranchMessage is the lookup failure line: "fatal: Not a story branch."
// or "fatal: Not an issue branch.".
func notBranchMessage(adapter tracker.Adapter) string {
	noun := adapter.Noun()
	article := "a"
	if noun == "issue" {
		article = "an"
	}
	return fmt.Sprintf("fatal: Not %s %s branch.", article, noun)
}

// currentItem resolves a branch's tracker item, terminating when the branch
// has no association. Other failures flow back to runGuarded.
func (w *workflow) currentItem(branch string) (*tracker.Item, error) {
	item, err := w.adapter.LookupCurrentItem(w.ctx, branch)
	if errors.Is(err, tracker.ErrNoAssociation) {
		fatal(notBranchMessage(w.adapter))
	}
	return item, err
}
