package jira

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/tracker/github"
	"github.com/jzempel/continuity/internal/ui"
)

func init() {
	tracker.Register("jira", New)
}

// Adapter implements tracker.Adapter for JIRA.
type Adapter struct {
	client     *Client
	cfg        tracker.Config
	projectKey string
	user       string

	// finish transition selected by BeginFinish, applied by CompleteFinish
	// after the merge lands.
	finishTransition *tracker.Transition
	finishResolution *tracker.Resolution

	// review transition selected during pull-request creation.
	reviewTransition *tracker.Transition
	reviewResolution *tracker.Resolution
}

// New builds the JIRA adapter from git configuration.
func New(cfg tracker.Config) (tracker.Adapter, error) {
	token, err := cfg.Required("jira", "auth-token")
	if err != nil {
		return nil, err
	}
	base, err := cfg.Required("jira", "url")
	if err != nil {
		return nil, err
	}
	projectKey, err := cfg.Required("jira", "project-key")
	if err != nil {
		return nil, err
	}
	user, err := cfg.Required("jira", "user")
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client:     NewClient(base, token),
		cfg:        cfg,
		projectKey: projectKey,
		user:       user,
	}, nil
}

func (a *Adapter) Kind() string { return "jira" }
func (a *Adapter) Noun() string { return "issue" }

func (a *Adapter) FormatKey(item *tracker.Item) string {
	return item.Key
}

// normalizeKey expands a bare issue number into a full key within the
// configured project.
func (a *Adapter) normalizeKey(key string) string {
	if _, err := strconv.Atoi(key); err == nil {
		return a.projectKey + "-" + key
	}
	return key
}

func (a *Adapter) itemFromIssue(issue *Issue) *tracker.Item {
	item := &tracker.Item{
		Key:         issue.Key,
		Title:       issue.Fields.Summary,
		Description: issue.Fields.Description,
		Type:        issue.Fields.IssueType.Name,
		Labels:      issue.Fields.Labels,
		URL:         a.client.IssueURL(issue.Key),
		Created:     issue.Fields.Created.Time,
	}
	if issue.Fields.Status != nil {
		// Listings show the workflow's own status name, not the category.
		item.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Assignee != nil {
		item.Assignee = issue.Fields.Assignee.Name
	}
	if issue.Fields.Creator != nil {
		item.Requester = issue.Fields.Creator.Name
	}
	if issue.Fields.Priority != nil {
		item.Priority = issue.Fields.Priority.Name
	}
	return item
}

// getIssue resolves a single issue by JQL, returning nil when the query does
// not name exactly one issue.
func (a *Adapter) getIssue(ctx context.Context, jql string) (*Issue, error) {
	issues, err := a.client.Search(ctx, jql)
	if err != nil {
		var reqErr *tracker.RequestError
		// An unknown key makes the JQL itself invalid; that is "no match",
		// not a failure.
		if errors.As(err, &reqErr) && reqErr.StatusCode == 400 {
			return nil, nil
		}
		return nil, err
	}
	if len(issues) != 1 {
		return nil, nil
	}
	return &issues[0], nil
}

// searchJQL builds the standard backlog query: standard issue types in the
// configured project, oldest first.
func (a *Adapter) searchJQL(assigneeClause string, statuses ...string) string {
	quoted := make([]string, len(statuses))
	for i, status := range statuses {
		quoted[i] = "'" + status + "'"
	}
	jql := fmt.Sprintf(
		"project = %s AND statusCategory in (%s) AND issueType in standardIssueTypes() ORDER BY created ASC",
		a.projectKey, strings.Join(quoted, ","))
	if assigneeClause != "" {
		jql = assigneeClause + " AND " + jql
	}
	return jql
}

func (a *Adapter) LookupCurrentItem(ctx context.Context, branch string) (*tracker.Item, error) {
	key, ok := a.cfg.GetAssociation(branch)
	if !ok {
		return nil, tracker.ErrNoAssociation
	}
	issue, err := a.getIssue(ctx, "issue = "+key)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, tracker.ErrNoAssociation
	}
	return a.itemFromIssue(issue), nil
}

func (a *Adapter) FilterAvailableItem(ctx context.Context, opts tracker.FilterOptions) (*tracker.Item, error) {
	status := fmt.Sprintf("statusCategory = %s AND ", StatusNew)
	if opts.IgnoreStatus {
		status = ""
	}

	switch {
	case opts.Key != "" && opts.Exclusive:
		key := a.normalizeKey(opts.Key)
		fmt.Printf("Retrieving issue %s from JIRA for %s...\n", key, a.user)
		jql := fmt.Sprintf("project = %s AND %sissue = %s AND assignee = %q",
			a.projectKey, status, key, a.user)
		issue, err := a.getIssue(ctx, jql)
		if err != nil || issue == nil {
			return nil, err
		}
		return a.itemFromIssue(issue), nil

	case opts.Key != "":
		key := a.normalizeKey(opts.Key)
		fmt.Printf("Retrieving issue %s from JIRA...\n", key)
		jql := fmt.Sprintf("project = %s AND %sissue = %s", a.projectKey, status, key)
		issue, err := a.getIssue(ctx, jql)
		if err != nil || issue == nil {
			return nil, err
		}
		return a.itemFromIssue(issue), nil

	case opts.Exclusive:
		fmt.Printf("Retrieving next issue from JIRA for %s...\n", a.user)
		issues, err := a.client.Search(ctx, a.searchJQL(fmt.Sprintf("assignee = %q", a.user), StatusNew))
		if err != nil {
			return nil, err
		}
		if len(issues) == 0 {
			return nil, nil
		}
		return a.itemFromIssue(&issues[0]), nil

	default:
		fmt.Println("Retrieving next available issue from JIRA...")
		issues, err := a.client.Search(ctx, a.searchJQL("", StatusNew))
		if err != nil {
			return nil, err
		}
		for i := range issues {
			issue := &issues[i]
			if issue.Fields.Assignee == nil || issue.Fields.Assignee.Name == a.user {
				return a.itemFromIssue(issue), nil
			}
		}
		return nil, nil
	}
}

func (a *Adapter) ClaimOwnership(ctx context.Context, item *tracker.Item) (*tracker.Item, error) {
	if item.Assignee == "" {
		if err := a.client.SetAssignee(ctx, item.Key, a.user); err != nil {
			return nil, err
		}
	}
	issue, err := a.getIssue(ctx, "issue = "+item.Key)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return item, nil
	}
	return a.itemFromIssue(issue), nil
}

func (a *Adapter) IsMine(item *tracker.Item) bool {
	return item.Assignee == a.user
}

// transitionsFor maps the allowed transitions into the target status
// category.
func (a *Adapter) transitionsFor(ctx context.Context, key, category string) ([]tracker.Transition, error) {
	native, err := a.client.GetTransitions(ctx, key)
	if err != nil {
		return nil, err
	}
	var transitions []tracker.Transition
	for _, t := range native {
		if t.To.StatusCategory.Key != category {
			continue
		}
		transition := tracker.Transition{ID: t.ID, Name: t.Name}
		if meta, ok := t.Fields["resolution"]; ok {
			transition.ResolutionRequired = meta.Required
			for _, value := range meta.AllowedValues {
				transition.Resolutions = append(transition.Resolutions,
					tracker.Resolution{ID: value.ID, Name: value.Name})
			}
		}
		transitions = append(transitions, transition)
	}
	return transitions, nil
}

// selectTransition resolves which transition (and resolution) to apply for
// the target status category. Zero applicable transitions yields nil; one is
// taken automatically unless forcePrompt; several present a numbered menu
// answered with a single keypress. An optional prompt accepts Enter as
// "none".
func (a *Adapter) selectTransition(ctx context.Context, key, category string, forcePrompt, optional bool) (*tracker.Transition, *tracker.Resolution, error) {
	transitions, err := a.transitionsFor(ctx, key, category)
	if err != nil {
		return nil, nil, err
	}
	if len(transitions) == 0 {
		return nil, nil, nil
	}

	var transition *tracker.Transition
	if len(transitions) > 1 || forcePrompt {
		shown, characters := menuSize(len(transitions))
		transitions = transitions[:shown]
		for i := range transitions {
			fmt.Printf("%s. %s\n", ui.Yellow(strconv.Itoa(i+1)), transitions[i].Name)
		}
		if optional {
			c, selected, err := ui.PromptCharOptional("Select transition (optional):", characters)
			if err != nil {
				return nil, nil, err
			}
			if !selected {
				return nil, nil, nil
			}
			transition = &transitions[c-'1']
		} else {
			c, err := ui.PromptChar("Select transition:", 0, characters)
			if err != nil {
				return nil, nil, err
			}
			transition = &transitions[c-'1']
		}
	} else {
		transition = &transitions[0]
	}

	resolution, err := a.selectResolution(transition)
	if err != nil {
		return nil, nil, err
	}
	return transition, resolution, nil
}

func (a *Adapter) selectResolution(transition *tracker.Transition) (*tracker.Resolution, error) {
	if len(transition.Resolutions) == 0 {
		return nil, nil
	}
	if len(transition.Resolutions) == 1 {
		return &transition.Resolutions[0], nil
	}

	shown, characters := menuSize(len(transition.Resolutions))
	resolutions := transition.Resolutions[:shown]
	for i := range resolutions {
		fmt.Printf("%s. %s\n", ui.Yellow(strconv.Itoa(i+1)), resolutions[i].Name)
	}
	if transition.ResolutionRequired {
		c, err := ui.PromptChar("Select resolution:", 0, characters)
		if err != nil {
			return nil, err
		}
		return &resolutions[c-'1'], nil
	}
	c, selected, err := ui.PromptCharOptional("Select resolution (optional):", characters)
	if err != nil {
		return nil, err
	}
	if !selected {
		return nil, nil
	}
	return &resolutions[c-'1'], nil
}

// menuSize bounds a numbered keypress menu to the nine entries one digit can
// address, returning the shown count and the digits accepted.
func menuSize(n int) (int, string) {
	const digits = "123456789"
	if n > len(digits) {
		n = len(digits)
	}
	return n, digits[:n]
}

func categoryFor(phase tracker.Phase) string {
	switch phase {
	case tracker.PhaseInProgress:
		return StatusInProgress
	case tracker.PhaseDone:
		return StatusComplete
	default:
		return StatusNew
	}
}

func (a *Adapter) AdvanceStatus(ctx context.Context, item *tracker.Item, phase tracker.Phase) error {
	transition, resolution, err := a.selectTransition(ctx, item.Key, categoryFor(phase), false, false)
	if err != nil {
		return err
	}
	if transition == nil {
		return nil
	}
	resolutionID := ""
	if resolution != nil {
		resolutionID = resolution.ID
	}
	return a.client.DoTransition(ctx, item.Key, transition.ID, resolutionID)
}

// BeginFinish selects the finish transition before the merge so its slug can
// ride in the merge commit message. jira.finish-transition = false turns the
// whole mechanism off.
func (a *Adapter) BeginFinish(ctx context.Context, item *tracker.Item) (string, error) {
	a.finishTransition, a.finishResolution = nil, nil
	if value := a.cfg.Optional("jira", "finish-transition"); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil && !enabled {
			return "", nil
		}
	}
	transition, resolution, err := a.selectTransition(ctx, item.Key, StatusComplete, false, false)
	if err != nil {
		return "", err
	}
	if transition == nil {
		return "", nil
	}
	a.finishTransition = transition
	a.finishResolution = resolution
	return fmt.Sprintf("%s #%s", item.Key, transition.Slug()), nil
}

// CompleteFinish applies the transition selected by BeginFinish. Failures are
// swallowed: a smart commit in the merged history may already have moved the
// issue.
func (a *Adapter) CompleteFinish(ctx context.Context, item *tracker.Item) error {
	if a.finishTransition == nil {
		return nil
	}
	resolutionID := ""
	if a.finishResolution != nil {
		resolutionID = a.finishResolution.ID
	}
	if err := a.client.DoTransition(ctx, item.Key, a.finishTransition.ID, resolutionID); err != nil {
		log.Debug().Err(err).Str("issue", item.Key).Msg("finish transition skipped")
	}
	return nil
}

func (a *Adapter) ListTasks(ctx context.Context, item *tracker.Item) ([]tracker.Task, error) {
	issue, err := a.getIssue(ctx, "issue = "+item.Key)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, nil
	}
	var tasks []tracker.Task
	for i := range issue.Fields.Subtasks {
		subtask := &issue.Fields.Subtasks[i]
		tasks = append(tasks, tracker.Task{
			Number:      i + 1,
			Description: subtask.Fields.Summary,
			Checked:     subtask.StatusCategory() == StatusComplete,
			InProgress:  subtask.StatusCategory() == StatusInProgress,
			ID:          subtask.Key,
		})
	}
	return tasks, nil
}

func (a *Adapter) SetTask(ctx context.Context, item *tracker.Item, task *tracker.Task, checked bool) error {
	phase := tracker.PhaseAvailable
	if checked {
		phase = tracker.PhaseDone
	}
	return a.SetTaskPhase(ctx, item, task, phase)
}

// SetTaskPhase transitions a sub-task into the target status category.
func (a *Adapter) SetTaskPhase(ctx context.Context, item *tracker.Item, task *tracker.Task, phase tracker.Phase) error {
	category := categoryFor(phase)
	transition, resolution, err := a.selectTransition(ctx, task.ID, category, false, false)
	if err != nil {
		return err
	}
	if transition == nil {
		return nil
	}
	resolutionID := ""
	if resolution != nil {
		resolutionID = resolution.ID
	}
	if err := a.client.DoTransition(ctx, task.ID, transition.ID, resolutionID); err != nil {
		return err
	}
	task.Checked = phase == tracker.PhaseDone
	task.InProgress = phase == tracker.PhaseInProgress
	return nil
}

func (a *Adapter) ListItems(ctx context.Context, mine bool) ([]tracker.Item, error) {
	assignee := ""
	if mine {
		assignee = "assignee = currentUser()"
	}
	issues, err := a.client.Search(ctx, a.searchJQL(assignee, StatusNew, StatusInProgress))
	if err != nil {
		return nil, err
	}
	var items []tracker.Item
	for i := range issues {
		items = append(items, *a.itemFromIssue(&issues[i]))
	}
	return items, nil
}

// CreatePullRequest opens a GitHub pull request for the issue branch and,
// when jira.review-transition is set, offers an optional in-progress
// transition to mark the issue as in review.
func (a *Adapter) CreatePullRequest(ctx context.Context, item *tracker.Item, base, head string) (string, error) {
	a.reviewTransition, a.reviewResolution = nil, nil

	token, err := a.cfg.Required("github", "oauth-token")
	if err != nil {
		return "", err
	}
	owner, repo, ok := github.ParseRemote(a.cfg.RemoteURL())
	if !ok {
		return "", fmt.Errorf("no github remote configured")
	}

	title, err := ui.Prompt("Pull request title", head)
	if err != nil {
		return "", err
	}
	text, err := ui.PromptOptional("Pull request description (optional)")
	if err != nil {
		return "", err
	}
	description := item.URL
	if text != "" {
		description = fmt.Sprintf("%s\n\n%s", item.URL, text)
	}

	if a.cfg.OptionalBool("jira", "review-transition") {
		transition, resolution, err := a.selectTransition(ctx, item.Key, StatusInProgress, true, true)
		if err != nil {
			return "", err
		}
		a.reviewTransition = transition
		a.reviewResolution = resolution
	}

	pr, err := github.NewClient(token, owner, repo).CreatePullRequest(ctx, title, 0, description, base, head)
	if err != nil {
		return "", err
	}
	return pr.HTMLURL, nil
}

// CompleteReview applies the transition selected during pull-request
// creation.
func (a *Adapter) CompleteReview(ctx context.Context, item *tracker.Item) error {
	if a.reviewTransition == nil {
		return nil
	}
	resolutionID := ""
	if a.reviewResolution != nil {
		resolutionID = a.reviewResolution.ID
	}
	return a.client.DoTransition(ctx, item.Key, a.reviewTransition.ID, resolutionID)
}

// ListComments returns the issue's comments with their authors.
func (a *Adapter) ListComments(ctx context.Context, item *tracker.Item) ([]tracker.Comment, error) {
	native, err := a.client.GetComments(ctx, item.Key)
	if err != nil {
		return nil, err
	}
	var comments []tracker.Comment
	for _, comment := range native {
		c := tracker.Comment{Text: comment.Body, Created: comment.Created.Time}
		if comment.Author != nil {
			c.Author = comment.Author.Name
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func (a *Adapter) NoMatchMessage(opts tracker.FilterOptions) string {
	key := opts.Key
	if key != "" {
		key = a.normalizeKey(key)
		if !strings.HasPrefix(key, a.projectKey+"-") {
			return fmt.Sprintf("No issue %s found in project %s.", key, a.projectKey)
		}
	}
	switch {
	case key != "" && opts.Exclusive:
		return fmt.Sprintf("No available issue %s found assigned to you.", key)
	case key != "":
		return fmt.Sprintf("No available issue %s found.", key)
	case opts.Exclusive:
		return "No available issues found assigned to you."
	default:
		return "No available issues found."
	}
}
