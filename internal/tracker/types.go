// Package tracker defines the adapter contract the workflow commands are
// written against. Each backend (Pivotal Tracker, GitHub Issues, JIRA)
// provides one Adapter implementation; commands never depend on a concrete
// tracker type.
package tracker

import "time"

// Phase is the abstract lifecycle position every tracker-specific status
// maps onto.
type Phase int

const (
	// PhaseAvailable items may be claimed and started.
	PhaseAvailable Phase = iota
	// PhaseInProgress items are claimed and being worked.
	PhaseInProgress
	// PhaseDone items are finished, closed, or accepted.
	PhaseDone
)

// Item is one unit of work: a story, an issue, or a JIRA issue. Key is the
// story id, issue number, or issue key. Fields a backend has no concept of
// stay zero.
type Item struct {
	Key         string
	Title       string
	Description string
	Type        string // feature/bug/chore, or "" for github/jira
	Estimate    *int   // pivotal points; nil for unestimated types
	Status      string // tracker-specific status or state name
	Priority    string // jira priority name; "" elsewhere
	Milestone   string // github milestone title; "" elsewhere
	Labels      []string
	Assignee    string
	Owners      []string // pivotal stories may have several owners
	Requester   string
	URL         string
	Created     time.Time
}

// Task is a checklist entry on an item, indexed from 1 in listing order.
type Task struct {
	Number      int
	Description string
	Checked     bool
	InProgress  bool   // JIRA-only indeterminate state
	ID          string // backend handle for updates
}

// Transition is a tracker-specific allowed status change. Resolutions lists
// the values acceptable for the transition's resolution field, when it has
// one.
type Transition struct {
	ID                 string
	Name               string
	Resolutions        []Resolution
	ResolutionRequired bool
}

// Slug renders the transition name the way it is embedded in merge commit
// messages (lowercased, hyphenated).
func (t Transition) Slug() string {
	return slugify(t.Name)
}

// Resolution is a value a JIRA transition may require.
type Resolution struct {
	ID   string
	Name string
}

// FilterOptions selects the item Start operates on. The zero value means
// "first unclaimed-or-mine available item in the backlog".
type FilterOptions struct {
	// Key restricts selection to one explicit item.
	Key string
	// Exclusive restricts selection to items owned by or assignable to the
	// caller.
	Exclusive bool
	// IgnoreStatus skips the available-status requirement for explicit keys.
	IgnoreStatus bool
}
