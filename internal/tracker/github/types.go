// Package github implements the tracker adapter for GitHub Issues.
//
// GitHub has no native workflow state beyond open/closed, so the adapter
// models the in-progress and finished phases with "started" and "finished"
// labels, and synthesizes checklists from markdown checkbox syntax in issue
// bodies.
package github

import (
	"net/http"
	"time"
)

const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the number of issues fetched per page.
	MaxPageSize = 100

	// MaxPages bounds pagination so malformed Link headers cannot loop
	// forever.
	MaxPages = 1000
)

// Workflow labels marking issue lifecycle phases.
const (
	LabelStarted  = "started"
	LabelFinished = "finished"
)

// Client provides methods to interact with the GitHub REST API.
type Client struct {
	Token      string
	Owner      string
	Repo       string
	BaseURL    string
	HTTPClient *http.Client
}

// Issue represents an issue from the GitHub API.
type Issue struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	State       string     `json:"state"` // "open" or "closed"
	Labels      []Label    `json:"labels"`
	Assignee    *User      `json:"assignee,omitempty"`
	Milestone   *Milestone `json:"milestone,omitempty"`
	User        *User      `json:"user,omitempty"`
	PullRequest *PRRef     `json:"pull_request,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	HTMLURL     string     `json:"html_url"`
}

// HasLabel reports whether the issue carries the named label.
func (i *Issue) HasLabel(name string) bool {
	for _, label := range i.Labels {
		if label.Name == name {
			return true
		}
	}
	return false
}

// Label represents a GitHub issue label.
type Label struct {
	Name string `json:"name"`
}

// User represents a GitHub user.
type User struct {
	Login string `json:"login"`
}

// Milestone represents a GitHub milestone.
type Milestone struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
}

// PRRef marks an issue as a pull request. GitHub returns pull requests from
// the issues endpoints; continuity never starts work on one.
type PRRef struct {
	URL string `json:"url"`
}

// PullRequest represents a created pull request.
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// apiError is the error payload GitHub returns for failed requests.
type apiError struct {
	Message string `json:"message"`
	Errors  []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}
