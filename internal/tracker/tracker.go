package tracker

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Adapter is the capability set the workflow commands need from a backend.
// One implementation exists per tracker; the configured `continuity.tracker`
// value selects which one is constructed at startup.
type Adapter interface {
	// Kind returns the config identifier ("pivotal", "github", "jira").
	Kind() string

	// Noun returns "story" or "issue" for user-visible messages.
	Noun() string

	// FormatKey renders an item key for display ("#123" or "PROJ-42").
	FormatKey(item *Item) string

	// LookupCurrentItem resolves a branch's associated item key into a live
	// item. ErrNoAssociation is returned when the branch has none.
	LookupCurrentItem(ctx context.Context, branch string) (*Item, error)

	// FilterAvailableItem runs the Start selection algorithm. A nil item
	// with nil error means no match; that is not a failure.
	FilterAvailableItem(ctx context.Context, opts FilterOptions) (*Item, error)

	// ClaimOwnership assigns the item to the caller if unowned and returns
	// the re-read item. Callers must verify ownership actually transferred.
	ClaimOwnership(ctx context.Context, item *Item) (*Item, error)

	// IsMine reports whether the item is owned by the caller.
	IsMine(item *Item) bool

	// AdvanceStatus moves the item to the target phase. For JIRA this may
	// prompt for a transition; zero applicable transitions is a no-op.
	AdvanceStatus(ctx context.Context, item *Item, phase Phase) error

	// BeginFinish prepares the finish transition and returns the tag
	// prepended to the merge commit message ("[finish #id]", "[close #id]",
	// or "KEY #slug"). An empty tag produces a plain merge.
	BeginFinish(ctx context.Context, item *Item) (string, error)

	// CompleteFinish applies the finish transition selected by BeginFinish
	// after a successful merge.
	CompleteFinish(ctx context.Context, item *Item) error

	// ListTasks returns the item's checklist in position order.
	ListTasks(ctx context.Context, item *Item) ([]Task, error)

	// SetTask toggles one checklist entry, updating task in place.
	SetTask(ctx context.Context, item *Item, task *Task, checked bool) error

	// ListItems returns open items for the issues/backlog listing, optionally
	// restricted to the caller's.
	ListItems(ctx context.Context, mine bool) ([]Item, error)

	// CreatePullRequest opens a pull request merging head into base and
	// returns its URL.
	CreatePullRequest(ctx context.Context, item *Item, base, head string) (string, error)

	// NoMatchMessage is the selection-context-specific message printed when
	// FilterAvailableItem finds nothing.
	NoMatchMessage(opts FilterOptions) string
}

// ErrNoAssociation is returned by LookupCurrentItem when the current branch
// has no tracker item bound to it.
var ErrNoAssociation = fmt.Errorf("no branch association")

// RequestError reports a failed HTTP exchange with a tracker. StatusCode is
// zero when the request never completed (transport failure).
type RequestError struct {
	Op         string
	StatusCode int
	Errors     []string // structured error messages from the response payload
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Transport reports whether the failure happened below HTTP, i.e. the remote
// was unreachable. The command lifecycle maps these onto the uniform
// "fatal: unable to access remote." path.
func (e *RequestError) Transport() bool {
	return e.StatusCode == 0
}

var slugPattern = regexp.MustCompile(`\W+`)

func slugify(name string) string {
	return slugPattern.ReplaceAllString(strings.ToLower(name), "-")
}
