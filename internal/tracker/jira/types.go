// Package jira implements the tracker adapter for JIRA.
//
// JIRA statuses are free-form per workflow, so the adapter works in terms of
// status categories (new, indeterminate, done) and moves issues by selecting
// among the workflow's allowed transitions, prompting when more than one
// applies. Sub-tasks stand in for checklists.
package jira

import (
	"net/http"
	"strings"
	"time"
)

const (
	// apiPath is the JIRA REST API v2 prefix under the instance base URL.
	apiPath = "/rest/api/2"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second
)

// Status category keys.
const (
	StatusNew        = "new"
	StatusInProgress = "indeterminate"
	StatusComplete   = "done"
)

// Client provides methods to interact with the JIRA REST API. BaseURL is the
// instance root (for example https://example.atlassian.net); Token is a
// ready-made basic auth token.
type Client struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

// Time wraps time.Time to parse JIRA's timestamp format, which writes the
// zone offset without a colon.
type Time struct {
	time.Time
}

const timeLayout = "2006-01-02T15:04:05.000-0700"

func (t *Time) UnmarshalJSON(data []byte) error {
	value := strings.Trim(string(data), `"`)
	if value == "" || value == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		// Some instances emit RFC 3339.
		parsed, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return err
		}
	}
	t.Time = parsed
	return nil
}

// Issue represents an issue from the JIRA API.
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// StatusCategory returns the issue's status category key, or "" when the
// search omitted status fields.
func (i *Issue) StatusCategory() string {
	if i.Fields.Status == nil {
		return ""
	}
	return i.Fields.Status.StatusCategory.Key
}

// IssueFields holds the issue attributes the workflow reads.
type IssueFields struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Status      *Status  `json:"status,omitempty"`
	Assignee    *User    `json:"assignee,omitempty"`
	Creator     *User    `json:"creator,omitempty"`
	Priority    *Named   `json:"priority,omitempty"`
	IssueType   Named    `json:"issuetype"`
	Labels      []string `json:"labels"`
	Subtasks    []Issue  `json:"subtasks"`
	Created     Time     `json:"created"`
}

// Status represents an issue status with its category.
type Status struct {
	Name           string   `json:"name"`
	StatusCategory Category `json:"statusCategory"`
}

// Category represents a JIRA status category.
type Category struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Named is any JIRA value object the workflow only needs the name of.
type Named struct {
	Name string `json:"name"`
}

// User represents a JIRA user.
type User struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress"`
}

// Transition represents an allowed workflow transition for an issue.
type Transition struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	To     TransitionTarget     `json:"to"`
	Fields map[string]FieldMeta `json:"fields"`
}

// TransitionTarget is the status a transition moves an issue into.
type TransitionTarget struct {
	StatusCategory Category `json:"statusCategory"`
}

// FieldMeta describes one field a transition screen carries; the workflow
// only cares about the resolution field.
type FieldMeta struct {
	Required      bool         `json:"required"`
	AllowedValues []Resolution `json:"allowedValues"`
}

// Resolution represents a JIRA resolution value.
type Resolution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment represents an issue comment.
type Comment struct {
	Body    string `json:"body"`
	Author  *User  `json:"author,omitempty"`
	Created Time   `json:"created"`
}
