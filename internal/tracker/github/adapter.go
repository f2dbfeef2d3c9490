package github

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jzempel/continuity/internal/tracker"
)

func init() {
	tracker.Register("github", New)
}

// Adapter implements tracker.Adapter for GitHub Issues.
type Adapter struct {
	client *Client
	cfg    tracker.Config
	user   *User // authenticated user, resolved on first use
}

// New builds the GitHub adapter from git configuration. The origin remote
// must point at github.com; owner and repository come from its URL.
func New(cfg tracker.Config) (tracker.Adapter, error) {
	token, err := cfg.Required("github", "oauth-token")
	if err != nil {
		return nil, err
	}
	owner, repo, ok := ParseRemote(cfg.RemoteURL())
	if !ok {
		return nil, fmt.Errorf("no github remote configured")
	}
	return &Adapter{client: NewClient(token, owner, repo), cfg: cfg}, nil
}

func (a *Adapter) Kind() string { return "github" }
func (a *Adapter) Noun() string { return "issue" }

func (a *Adapter) FormatKey(item *tracker.Item) string {
	return "#" + item.Key
}

func (a *Adapter) currentUser(ctx context.Context) (*User, error) {
	if a.user == nil {
		user, err := a.client.GetUser(ctx)
		if err != nil {
			return nil, err
		}
		a.user = user
	}
	return a.user, nil
}

func itemFromIssue(issue *Issue) *tracker.Item {
	item := &tracker.Item{
		Key:         strconv.Itoa(issue.Number),
		Title:       issue.Title,
		Description: issue.Body,
		Status:      issue.State,
		URL:         issue.HTMLURL,
		Created:     issue.CreatedAt,
	}
	for _, label := range issue.Labels {
		item.Labels = append(item.Labels, label.Name)
	}
	if issue.Assignee != nil {
		item.Assignee = issue.Assignee.Login
	}
	if issue.User != nil {
		item.Requester = issue.User.Login
	}
	if issue.Milestone != nil {
		item.Milestone = issue.Milestone.Title
	}
	return item
}

// available reports whether an issue may be claimed: open, not already
// moving through the workflow, and not a pull request.
func available(issue *Issue) bool {
	return issue.State == "open" &&
		!issue.HasLabel(LabelStarted) &&
		!issue.HasLabel(LabelFinished) &&
		issue.PullRequest == nil
}

func (a *Adapter) LookupCurrentItem(ctx context.Context, branch string) (*tracker.Item, error) {
	key, ok := a.cfg.GetAssociation(branch)
	if !ok {
		return nil, tracker.ErrNoAssociation
	}
	number, err := strconv.Atoi(key)
	if err != nil {
		return nil, tracker.ErrNoAssociation
	}
	issue, err := a.client.GetIssue(ctx, number)
	if err != nil {
		return nil, err
	}
	return itemFromIssue(issue), nil
}

// fetchIssue returns nil for a missing issue number instead of an error so
// selection can report "no match".
func (a *Adapter) fetchIssue(ctx context.Context, key string) (*Issue, error) {
	number, err := strconv.Atoi(key)
	if err != nil {
		return nil, nil
	}
	issue, err := a.client.GetIssue(ctx, number)
	if err != nil {
		var reqErr *tracker.RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	return issue, nil
}

// openIssues lists open issues in the original's order: milestone by
// milestone, then issues with no milestone, oldest first within each group.
func (a *Adapter) openIssues(ctx context.Context, assignee string) ([]Issue, error) {
	milestones, err := a.client.ListMilestones(ctx)
	if err != nil {
		return nil, err
	}

	var all []Issue
	for _, milestone := range milestones {
		issues, err := a.client.ListIssues(ctx, IssueParams{
			Assignee:  assignee,
			Milestone: strconv.Itoa(milestone.Number),
		})
		if err != nil {
			return nil, err
		}
		all = append(all, issues...)
	}

	issues, err := a.client.ListIssues(ctx, IssueParams{
		Assignee:  assignee,
		Milestone: "none",
	})
	if err != nil {
		return nil, err
	}
	return append(all, issues...), nil
}

func (a *Adapter) FilterAvailableItem(ctx context.Context, opts tracker.FilterOptions) (*tracker.Item, error) {
	switch {
	case opts.Key != "" && opts.Exclusive:
		user, err := a.currentUser(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Retrieving issue #%s from GitHub for %s...\n", opts.Key, user.Login)
		issue, err := a.fetchIssue(ctx, opts.Key)
		if err != nil {
			return nil, err
		}
		if issue == nil || issue.Assignee == nil || issue.Assignee.Login != user.Login {
			return nil, nil
		}
		if !available(issue) && !opts.IgnoreStatus {
			return nil, nil
		}
		return itemFromIssue(issue), nil

	case opts.Key != "":
		fmt.Printf("Retrieving issue #%s from GitHub...\n", opts.Key)
		issue, err := a.fetchIssue(ctx, opts.Key)
		if err != nil {
			return nil, err
		}
		if issue == nil || (!available(issue) && !opts.IgnoreStatus) {
			return nil, nil
		}
		return itemFromIssue(issue), nil

	case opts.Exclusive:
		user, err := a.currentUser(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Retrieving next issue from GitHub for %s...\n", user.Login)
		issues, err := a.openIssues(ctx, user.Login)
		if err != nil {
			return nil, err
		}
		for i := range issues {
			if available(&issues[i]) {
				return itemFromIssue(&issues[i]), nil
			}
		}
		return nil, nil

	default:
		user, err := a.currentUser(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Println("Retrieving next available issue from GitHub...")
		issues, err := a.openIssues(ctx, "")
		if err != nil {
			return nil, err
		}
		for i := range issues {
			issue := &issues[i]
			if !available(issue) {
				continue
			}
			if issue.Assignee == nil || issue.Assignee.Login == user.Login {
				return itemFromIssue(issue), nil
			}
		}
		return nil, nil
	}
}

func (a *Adapter) ClaimOwnership(ctx context.Context, item *tracker.Item) (*tracker.Item, error) {
	user, err := a.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	number, err := strconv.Atoi(item.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid issue number %q", item.Key)
	}
	if item.Assignee == "" {
		if _, err := a.client.UpdateIssue(ctx, number, map[string]interface{}{"assignee": user.Login}); err != nil {
			return nil, err
		}
	}
	// Re-read: GitHub rejects assignments to non-collaborators silently.
	issue, err := a.client.GetIssue(ctx, number)
	if err != nil {
		return nil, err
	}
	return itemFromIssue(issue), nil
}

func (a *Adapter) IsMine(item *tracker.Item) bool {
	return a.user != nil && item.Assignee == a.user.Login
}

func (a *Adapter) AdvanceStatus(ctx context.Context, item *tracker.Item, phase tracker.Phase) error {
	number, err := strconv.Atoi(item.Key)
	if err != nil {
		return fmt.Errorf("invalid issue number %q", item.Key)
	}
	switch phase {
	case tracker.PhaseInProgress:
		return a.client.AddLabels(ctx, number, LabelStarted)
	case tracker.PhaseDone:
		if err := a.client.AddLabels(ctx, number, LabelFinished); err != nil {
			return err
		}
		if err := a.client.RemoveLabel(ctx, number, LabelStarted); err != nil {
			var reqErr *tracker.RequestError
			if errors.As(err, &reqErr) && reqErr.StatusCode == 404 {
				return nil // label was never applied
			}
			return err
		}
	}
	return nil
}

func (a *Adapter) BeginFinish(ctx context.Context, item *tracker.Item) (string, error) {
	return fmt.Sprintf("[close #%s]", item.Key), nil
}

func (a *Adapter) CompleteFinish(ctx context.Context, item *tracker.Item) error {
	return a.AdvanceStatus(ctx, item, tracker.PhaseDone)
}

func (a *Adapter) ListTasks(ctx context.Context, item *tracker.Item) ([]tracker.Task, error) {
	return ParseTasks(item.Description), nil
}

func (a *Adapter) SetTask(ctx context.Context, item *tracker.Item, task *tracker.Task, checked bool) error {
	number, err := strconv.Atoi(item.Key)
	if err != nil {
		return fmt.Errorf("invalid issue number %q", item.Key)
	}
	body, ok := ToggleTask(item.Description, task.Number, checked)
	if !ok {
		return fmt.Errorf("no task %d in issue #%s", task.Number, item.Key)
	}
	if _, err := a.client.UpdateIssue(ctx, number, map[string]interface{}{"body": body}); err != nil {
		return err
	}
	item.Description = body
	task.Checked = checked
	return nil
}

func (a *Adapter) ListItems(ctx context.Context, mine bool) ([]tracker.Item, error) {
	assignee := ""
	if mine {
		user, err := a.currentUser(ctx)
		if err != nil {
			return nil, err
		}
		assignee = user.Login
	}
	issues, err := a.openIssues(ctx, assignee)
	if err != nil {
		return nil, err
	}
	var items []tracker.Item
	for i := range issues {
		if issues[i].PullRequest != nil {
			continue
		}
		items = append(items, *itemFromIssue(&issues[i]))
	}
	return items, nil
}

func (a *Adapter) CreatePullRequest(ctx context.Context, item *tracker.Item, base, head string) (string, error) {
	number, err := strconv.Atoi(item.Key)
	if err != nil {
		return "", fmt.Errorf("invalid issue number %q", item.Key)
	}
	pr, err := a.client.CreatePullRequest(ctx, "", number, "", base, head)
	if err != nil {
		return "", err
	}
	return pr.HTMLURL, nil
}

// CleanupRemoteBranch removes the merged branch's remote ref. Finish calls
// this best-effort after a successful merge; failures are ignored there.
func (a *Adapter) CleanupRemoteBranch(ctx context.Context, branch string) error {
	return a.client.DeleteBranchRef(ctx, branch)
}

func (a *Adapter) NoMatchMessage(opts tracker.FilterOptions) string {
	switch {
	case opts.Key != "" && opts.Exclusive:
		return fmt.Sprintf("No available issue #%s found assigned to you.", opts.Key)
	case opts.Key != "":
		return fmt.Sprintf("No available issue #%s found.", opts.Key)
	case opts.Exclusive:
		return "No available issues found assigned to you."
	default:
		return "No available issues found."
	}
}
