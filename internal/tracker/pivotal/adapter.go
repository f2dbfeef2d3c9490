package pivotal

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/tracker/github"
	"github.com/jzempel/continuity/internal/ui"
)

func init() {
	tracker.Register("pivotal", New)
}

// Adapter implements tracker.Adapter for Pivotal Tracker.
type Adapter struct {
	client  *Client
	cfg     tracker.Config
	ownerID int
	owner   string // member name resolved from ownerID
	project *Project
}

// New builds the Pivotal Tracker adapter from git configuration.
func New(cfg tracker.Config) (tracker.Adapter, error) {
	token, err := cfg.Required("pivotal", "api-token")
	if err != nil {
		return nil, err
	}
	projectID, err := cfg.Required("pivotal", "project-id")
	if err != nil {
		return nil, err
	}
	id, err := strconv.Atoi(projectID)
	if err != nil {
		return nil, fmt.Errorf("invalid pivotal.project-id %q", projectID)
	}
	ownerID, err := cfg.Required("pivotal", "owner-id")
	if err != nil {
		return nil, err
	}
	oid, err := strconv.Atoi(ownerID)
	if err != nil {
		return nil, fmt.Errorf("invalid pivotal.owner-id %q", ownerID)
	}
	return &Adapter{client: NewClient(token, id), cfg: cfg, ownerID: oid}, nil
}

func (a *Adapter) Kind() string { return "pivotal" }
func (a *Adapter) Noun() string { return "story" }

func (a *Adapter) FormatKey(item *tracker.Item) string {
	return "#" + item.Key
}

func (a *Adapter) getProject(ctx context.Context) (*Project, error) {
	if a.project == nil {
		project, err := a.client.GetProject(ctx)
		if err != nil {
			return nil, err
		}
		a.project = project
	}
	return a.project, nil
}

// member resolves the configured owner-id into a project member, caching the
// member name for filters and ownership checks.
func (a *Adapter) member(ctx context.Context) (*Person, error) {
	project, err := a.getProject(ctx)
	if err != nil {
		return nil, err
	}
	member := project.MemberByID(a.ownerID)
	if member == nil {
		return nil, fmt.Errorf("no project member with id %d", a.ownerID)
	}
	a.owner = member.Name
	return member, nil
}

func itemFromStory(story *Story) *tracker.Item {
	item := &tracker.Item{
		Key:         strconv.Itoa(story.ID),
		Title:       story.Name,
		Description: story.Description,
		Type:        story.Type,
		Estimate:    story.Estimate,
		Status:      story.State,
		URL:         story.URL,
		Created:     story.CreatedAt,
	}
	for _, owner := range story.Owners {
		item.Owners = append(item.Owners, owner.Name)
	}
	if len(item.Owners) > 0 {
		item.Assignee = item.Owners[0]
	}
	if story.RequestedBy != nil {
		item.Requester = story.RequestedBy.Name
	}
	return item
}

func (a *Adapter) LookupCurrentItem(ctx context.Context, branch string) (*tracker.Item, error) {
	key, ok := a.cfg.GetAssociation(branch)
	if !ok {
		return nil, tracker.ErrNoAssociation
	}
	story, err := a.client.GetStory(ctx, "id:"+key)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, tracker.ErrNoAssociation
	}
	return itemFromStory(story), nil
}

// startable reports whether a backlog story may be picked up by default
// selection.
func startable(story *Story) bool {
	switch story.Type {
	case TypeFeature, TypeBug, TypeChore:
	default:
		return false
	}
	return story.State == StateUnstarted || story.State == StateRejected
}

func (a *Adapter) FilterAvailableItem(ctx context.Context, opts tracker.FilterOptions) (*tracker.Item, error) {
	state := " state:unstarted,rejected"
	if opts.IgnoreStatus {
		state = ""
	}

	var filter string
	switch {
	case opts.Key != "" && opts.Exclusive:
		member, err := a.member(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Retrieving story #%s from Pivotal Tracker for %s...\n", opts.Key, member.Name)
		filter = fmt.Sprintf("id:%s owner:%q%s", opts.Key, member.Name, state)
	case opts.Key != "":
		fmt.Printf("Retrieving story #%s from Pivotal Tracker...\n", opts.Key)
		filter = fmt.Sprintf("id:%s%s", opts.Key, state)
	case opts.Exclusive:
		member, err := a.member(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Retrieving next story from Pivotal Tracker for %s...\n", member.Name)
		filter = fmt.Sprintf("owner:%q%s", member.Name, state)
	default:
		member, err := a.member(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Println("Retrieving next available story from Pivotal Tracker...")
		stories, err := a.client.GetBacklog(ctx)
		if err != nil {
			return nil, err
		}
		for i := range stories {
			story := &stories[i]
			if startable(story) && (len(story.Owners) == 0 || story.OwnedBy(member.Name)) {
				return itemFromStory(story), nil
			}
		}
		return nil, nil
	}

	story, err := a.client.GetStory(ctx, filter)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, nil
	}
	return itemFromStory(story), nil
}

func (a *Adapter) ClaimOwnership(ctx context.Context, item *tracker.Item) (*tracker.Item, error) {
	member, err := a.member(ctx)
	if err != nil {
		return nil, err
	}
	if len(item.Owners) > 0 {
		return item, nil
	}
	storyID, err := strconv.Atoi(item.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid story id %q", item.Key)
	}
	story, err := a.client.UpdateStory(ctx, storyID, map[string]interface{}{
		"current_state": item.Status,
		"owner_ids":     []int{member.ID},
	})
	if err != nil {
		return nil, err
	}
	return itemFromStory(story), nil
}

func (a *Adapter) IsMine(item *tracker.Item) bool {
	for _, owner := range item.Owners {
		if owner == a.owner {
			return true
		}
	}
	return false
}

func (a *Adapter) AdvanceStatus(ctx context.Context, item *tracker.Item, phase tracker.Phase) error {
	storyID, err := strconv.Atoi(item.Key)
	if err != nil {
		return fmt.Errorf("invalid story id %q", item.Key)
	}
	var state string
	switch phase {
	case tracker.PhaseInProgress:
		state = StateStarted
	case tracker.PhaseDone:
		// Pivotal rejects "finished" for chores.
		if item.Type == TypeChore {
			state = StateAccepted
		} else {
			state = StateFinished
		}
	default:
		return nil
	}
	story, err := a.client.UpdateStory(ctx, storyID, map[string]interface{}{"current_state": state})
	if err != nil {
		return err
	}
	item.Status = story.State
	return nil
}

func (a *Adapter) BeginFinish(ctx context.Context, item *tracker.Item) (string, error) {
	return fmt.Sprintf("[finish #%s]", item.Key), nil
}

func (a *Adapter) CompleteFinish(ctx context.Context, item *tracker.Item) error {
	return a.AdvanceStatus(ctx, item, tracker.PhaseDone)
}

func (a *Adapter) ListTasks(ctx context.Context, item *tracker.Item) ([]tracker.Task, error) {
	storyID, err := strconv.Atoi(item.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid story id %q", item.Key)
	}
	native, err := a.client.GetTasks(ctx, storyID)
	if err != nil {
		return nil, err
	}
	var tasks []tracker.Task
	for _, task := range native {
		tasks = append(tasks, tracker.Task{
			Number:      task.Position,
			Description: task.Description,
			Checked:     task.Complete,
			ID:          strconv.Itoa(task.ID),
		})
	}
	return tasks, nil
}

func (a *Adapter) SetTask(ctx context.Context, item *tracker.Item, task *tracker.Task, checked bool) error {
	storyID, err := strconv.Atoi(item.Key)
	if err != nil {
		return fmt.Errorf("invalid story id %q", item.Key)
	}
	taskID, err := strconv.Atoi(task.ID)
	if err != nil {
		return fmt.Errorf("invalid task id %q", task.ID)
	}
	updated, err := a.client.SetTask(ctx, storyID, taskID, checked)
	if err != nil {
		return err
	}
	task.Checked = updated.Complete
	return nil
}

func (a *Adapter) ListItems(ctx context.Context, mine bool) ([]tracker.Item, error) {
	var owner string
	if mine {
		member, err := a.member(ctx)
		if err != nil {
			return nil, err
		}
		owner = member.Name
	}
	stories, err := a.client.GetBacklog(ctx)
	if err != nil {
		return nil, err
	}
	var items []tracker.Item
	for i := range stories {
		story := &stories[i]
		if story.State != StateUnscheduled && story.State != StateUnstarted {
			continue
		}
		if mine && !story.OwnedBy(owner) {
			continue
		}
		item := itemFromStory(story)
		if len(story.Owners) > 0 {
			// Listings show the first owner's initials.
			project, err := a.getProject(ctx)
			if err != nil {
				return nil, err
			}
			if member := project.Member(story.Owners[0].Name); member != nil {
				item.Assignee = member.Initials
			}
		}
		items = append(items, *item)
	}
	return items, nil
}

// CreatePullRequest opens a GitHub pull request for the story branch. The
// review itself always lives on GitHub; the story URL ties the request back
// to Pivotal Tracker.
func (a *Adapter) CreatePullRequest(ctx context.Context, item *tracker.Item, base, head string) (string, error) {
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

	pr, err := github.NewClient(token, owner, repo).CreatePullRequest(ctx, title, 0, description, base, head)
	if err != nil {
		return "", err
	}
	return pr.HTMLURL, nil
}

// ListComments returns the story's comments with their authors.
func (a *Adapter) ListComments(ctx context.Context, item *tracker.Item) ([]tracker.Comment, error) {
	storyID, err := strconv.Atoi(item.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid story id %q", item.Key)
	}
	native, err := a.client.GetComments(ctx, storyID)
	if err != nil {
		return nil, err
	}
	var comments []tracker.Comment
	for _, comment := range native {
		c := tracker.Comment{Text: comment.Text, Created: comment.CreatedAt}
		if comment.Person != nil {
			c.Author = comment.Person.Name
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func (a *Adapter) NoMatchMessage(opts tracker.FilterOptions) string {
	switch {
	case opts.Key != "" && opts.Exclusive:
		return fmt.Sprintf("No estimated story #%s found assigned to you.", opts.Key)
	case opts.Key != "":
		return fmt.Sprintf("No estimated story #%s found in the backlog.", opts.Key)
	case opts.Exclusive:
		return "No estimated stories found in my work."
	default:
		return "No estimated stories found in the backlog."
	}
}
