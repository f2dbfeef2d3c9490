// Package pivotal implements the tracker adapter for Pivotal Tracker.
//
// Stories carry native workflow state (unscheduled through accepted) and
// native tasks, so the adapter maps phases onto story states directly. The
// one wrinkle is chores: Pivotal rejects "finished" for them, so finishing a
// chore accepts it instead.
package pivotal

import (
	"net/http"
	"time"
)

const (
	// DefaultAPIEndpoint is the Pivotal Tracker v5 API base URL.
	DefaultAPIEndpoint = "https://www.pivotaltracker.com/services/v5"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second
)

// Story workflow states.
const (
	StateUnscheduled = "unscheduled"
	StateUnstarted   = "unstarted"
	StateStarted     = "started"
	StateFinished    = "finished"
	StateDelivered   = "delivered"
	StateAccepted    = "accepted"
	StateRejected    = "rejected"
)

// Story types.
const (
	TypeBug     = "bug"
	TypeChore   = "chore"
	TypeFeature = "feature"
	TypeRelease = "release"
)

// storyFields selects the story attributes the workflow needs beyond the API
// defaults.
const storyFields = ":default,owners,requested_by"

// Client provides methods to interact with the Pivotal Tracker REST API.
type Client struct {
	Token      string
	ProjectID  int
	BaseURL    string
	HTTPClient *http.Client
}

// Story represents a story from the Pivotal Tracker API.
type Story struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"story_type"`
	Estimate    *int      `json:"estimate,omitempty"`
	State       string    `json:"current_state"`
	Owners      []Person  `json:"owners"`
	RequestedBy *Person   `json:"requested_by,omitempty"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// OwnedBy reports whether the named member owns the story.
func (s *Story) OwnedBy(name string) bool {
	for _, owner := range s.Owners {
		if owner.Name == name {
			return true
		}
	}
	return false
}

// Person represents a Pivotal Tracker person.
type Person struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Initials string `json:"initials"`
}

// Membership joins a person to a project with a role.
type Membership struct {
	Person Person `json:"person"`
	Role   string `json:"role"`
}

// Project represents a Pivotal Tracker project.
type Project struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	Memberships []Membership `json:"memberships"`
}

// Member returns the project member with the given name, or nil.
func (p *Project) Member(name string) *Person {
	for i := range p.Memberships {
		if p.Memberships[i].Person.Name == name {
			return &p.Memberships[i].Person
		}
	}
	return nil
}

// MemberByID returns the project member with the given person ID, or nil.
func (p *Project) MemberByID(id int) *Person {
	for i := range p.Memberships {
		if p.Memberships[i].Person.ID == id {
			return &p.Memberships[i].Person
		}
	}
	return nil
}

// Iteration represents one iteration's slice of the backlog.
type Iteration struct {
	Number  int     `json:"number"`
	Stories []Story `json:"stories"`
}

// Task represents a native story task.
type Task struct {
	ID          int    `json:"id"`
	Position    int    `json:"position"`
	Description string `json:"description"`
	Complete    bool   `json:"complete"`
}

// Comment represents a story comment.
type Comment struct {
	Text      string    `json:"text"`
	Person    *Person   `json:"person,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
