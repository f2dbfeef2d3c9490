package pivotal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/jzempel/continuity/internal/tracker"
)

// NewClient creates a new Pivotal Tracker client for the given project.
func NewClient(token string, projectID int) *Client {
	return &Client{
		Token:     token,
		ProjectID: projectID,
		BaseURL:   DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a new client with a custom base URL (for testing).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		ProjectID:  c.ProjectID,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

func (c *Client) projectPath(resource string) string {
	return "/projects/" + strconv.Itoa(c.ProjectID) + resource
}

func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}
	return u
}

// doRequest performs one authenticated HTTP exchange against the Tracker API.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	log.Debug().Str("method", method).Str("url", urlStr).Msg("pivotal request")

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-TrackerToken", c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &tracker.RequestError{Op: "pivotal " + method, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &tracker.RequestError{Op: "pivotal " + method, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := &tracker.RequestError{
			Op:         "pivotal " + method,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", string(respBody)),
		}
		var payload struct {
			Error          string `json:"error"`
			GeneralProblem string `json:"general_problem"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			if payload.GeneralProblem != "" {
				reqErr.Errors = append(reqErr.Errors, payload.GeneralProblem)
			} else if payload.Error != "" {
				reqErr.Errors = append(reqErr.Errors, payload.Error)
			}
		}
		return nil, reqErr
	}

	return respBody, nil
}

// GetProject retrieves the configured project with its memberships.
func (c *Client) GetProject(ctx context.Context) (*Project, error) {
	urlStr := c.buildURL("/projects/"+strconv.Itoa(c.ProjectID), map[string]string{
		"fields": ":default,memberships",
	})
	respBody, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	var project Project
	if err := json.Unmarshal(respBody, &project); err != nil {
		return nil, fmt.Errorf("parse project response: %w", err)
	}
	return &project, nil
}

// GetStory retrieves the first story matching a Tracker search filter. The
// filter is always restricted to workable story types; a release can never be
// started. Returns nil when nothing matches.
func (c *Client) GetStory(ctx context.Context, filter string) (*Story, error) {
	urlStr := c.buildURL(c.projectPath("/stories"), map[string]string{
		"fields": storyFields,
		"filter": "type:feature,chore,bug " + filter,
		"limit":  "1",
	})
	respBody, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	var stories []Story
	if err := json.Unmarshal(respBody, &stories); err != nil {
		return nil, fmt.Errorf("parse stories response: %w", err)
	}
	if len(stories) != 1 {
		return nil, nil
	}
	return &stories[0], nil
}

// GetBacklog returns the stories of the current and future iterations in
// priority order. Projects between iterations have an empty current_backlog
// scope; the plain backlog is the fallback.
func (c *Client) GetBacklog(ctx context.Context) ([]Story, error) {
	for _, scope := range []string{"current_backlog", "backlog"} {
		urlStr := c.buildURL(c.projectPath("/iterations"), map[string]string{
			"fields": ":default,stories(" + storyFields + ")",
			"scope":  scope,
		})
		respBody, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		var iterations []Iteration
		if err := json.Unmarshal(respBody, &iterations); err != nil {
			return nil, fmt.Errorf("parse iterations response: %w", err)
		}
		if len(iterations) == 0 {
			continue
		}
		var stories []Story
		for _, iteration := range iterations {
			stories = append(stories, iteration.Stories...)
		}
		return stories, nil
	}
	return nil, nil
}

// UpdateStory patches story fields and returns the updated story.
func (c *Client) UpdateStory(ctx context.Context, storyID int, fields map[string]interface{}) (*Story, error) {
	urlStr := c.buildURL(c.projectPath("/stories/"+strconv.Itoa(storyID)), map[string]string{
		"fields": storyFields,
	})
	respBody, err := c.doRequest(ctx, http.MethodPut, urlStr, fields)
	if err != nil {
		return nil, err
	}
	var story Story
	if err := json.Unmarshal(respBody, &story); err != nil {
		return nil, fmt.Errorf("parse story response: %w", err)
	}
	return &story, nil
}

// GetTasks retrieves a story's tasks in position order.
func (c *Client) GetTasks(ctx context.Context, storyID int) ([]Task, error) {
	urlStr := c.buildURL(c.projectPath("/stories/"+strconv.Itoa(storyID)+"/tasks"), nil)
	respBody, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := json.Unmarshal(respBody, &tasks); err != nil {
		return nil, fmt.Errorf("parse tasks response: %w", err)
	}
	return tasks, nil
}

// SetTask sets a task's completion state and returns the updated task.
func (c *Client) SetTask(ctx context.Context, storyID, taskID int, complete bool) (*Task, error) {
	urlStr := c.buildURL(c.projectPath("/stories/"+strconv.Itoa(storyID)+"/tasks/"+strconv.Itoa(taskID)), nil)
	respBody, err := c.doRequest(ctx, http.MethodPut, urlStr, map[string]interface{}{"complete": complete})
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(respBody, &task); err != nil {
		return nil, fmt.Errorf("parse task response: %w", err)
	}
	return &task, nil
}

// GetComments retrieves a story's comments with their authors.
func (c *Client) GetComments(ctx context.Context, storyID int) ([]Comment, error) {
	urlStr := c.buildURL(c.projectPath("/stories/"+strconv.Itoa(storyID)+"/comments"), map[string]string{
		"fields": ":default,person",
	})
	respBody, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	var comments []Comment
	if err := json.Unmarshal(respBody, &comments); err != nil {
		return nil, fmt.Errorf("parse comments response: %w", err)
	}
	return comments, nil
}
