package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/jzempel/continuity/internal/tracker"
)

// NewClient creates a new GitHub client for the given repository.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a new client with a custom base URL (for testing or
// GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		Repo:       c.Repo,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

// remotePattern extracts "owner/repo" from a github.com remote URL.
var remotePattern = regexp.MustCompile(`github\.com[/:]([\w-]+)/([\w.-]+?)(?:\.git)?$`)

// ParseRemote splits a github.com remote URL into owner and repo.
func ParseRemote(remoteURL string) (owner, repo string, ok bool) {
	matches := remotePattern.FindStringSubmatch(remoteURL)
	if matches == nil {
		return "", "", false
	}
	return matches[1], matches[2], true
}

func (c *Client) repoPath() string {
	return c.Owner + "/" + c.Repo
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

// doRequest performs one authenticated HTTP exchange. Transport failures and
// API errors both surface as *tracker.RequestError; the lifecycle controller
// distinguishes them by status code.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, http.Header, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	log.Debug().Str("method", method).Str("url", urlStr).Msg("github request")

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, &tracker.RequestError{Op: "github " + method, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &tracker.RequestError{Op: "github " + method, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := &tracker.RequestError{
			Op:         "github " + method,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", string(respBody)),
		}
		var payload apiError
		if json.Unmarshal(respBody, &payload) == nil {
			for _, e := range payload.Errors {
				if e.Code == "custom" && e.Message != "" {
					reqErr.Errors = append(reqErr.Errors, e.Message)
				}
			}
		}
		return nil, nil, reqErr
	}

	return respBody, resp.Header, nil
}

var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

func hasNextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// IssueParams filter an issue listing.
type IssueParams struct {
	Assignee  string
	Milestone string // milestone number, "none", or ""
}

// ListIssues retrieves open issues ordered oldest-first.
func (c *Client) ListIssues(ctx context.Context, opts IssueParams) ([]Issue, error) {
	var all []Issue
	page := 1

	for {
		params := map[string]string{
			"state":     "open",
			"sort":      "created",
			"direction": "asc",
			"per_page":  strconv.Itoa(MaxPageSize),
			"page":      strconv.Itoa(page),
		}
		if opts.Assignee != "" {
			params["assignee"] = opts.Assignee
		}
		if opts.Milestone != "" {
			params["milestone"] = opts.Milestone
		}

		urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues", params)
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}

		var issues []Issue
		if err := json.Unmarshal(respBody, &issues); err != nil {
			return nil, fmt.Errorf("parse issues response: %w", err)
		}
		all = append(all, issues...)

		if _, ok := hasNextPage(headers); !ok {
			break
		}
		page++
		if page > MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}

	return all, nil
}

// ListMilestones retrieves open milestones in due-date order.
func (c *Client) ListMilestones(ctx context.Context) ([]Milestone, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/milestones", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	var milestones []Milestone
	if err := json.Unmarshal(respBody, &milestones); err != nil {
		return nil, fmt.Errorf("parse milestones response: %w", err)
	}
	return milestones, nil
}

// GetIssue retrieves one issue by number.
func (c *Client) GetIssue(ctx context.Context, number int) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}
	return &issue, nil
}

// UpdateIssue patches issue fields and returns the updated issue.
func (c *Client) UpdateIssue(ctx context.Context, number int, fields map[string]interface{}) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPatch, urlStr, fields)
	if err != nil {
		return nil, err
	}
	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("parse update response: %w", err)
	}
	return &issue, nil
}

// AddLabels adds labels to an issue.
func (c *Client) AddLabels(ctx context.Context, number int, labels ...string) error {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/labels", nil)
	_, _, err := c.doRequest(ctx, http.MethodPost, urlStr, labels)
	return err
}

// RemoveLabel removes one label from an issue.
func (c *Client) RemoveLabel(ctx context.Context, number int, label string) error {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/labels/"+url.PathEscape(label), nil)
	_, _, err := c.doRequest(ctx, http.MethodDelete, urlStr, nil)
	return err
}

// GetUser retrieves the authenticated user.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	urlStr := c.buildURL("/user", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("parse user response: %w", err)
	}
	return &user, nil
}

// CreatePullRequest opens a pull request merging head into base. When issue
// is non-zero the pull request is attached to that issue instead of carrying
// its own title.
func (c *Client) CreatePullRequest(ctx context.Context, title string, issue int, description, base, head string) (*PullRequest, error) {
	body := map[string]interface{}{
		"base": base,
		"head": head,
	}
	if issue != 0 {
		body["issue"] = issue
	} else {
		body["title"] = title
		body["body"] = description
	}

	urlStr := c.buildURL("/repos/"+c.repoPath()+"/pulls", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, body)
	if err != nil {
		return nil, err
	}
	var pr PullRequest
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return nil, fmt.Errorf("parse pull request response: %w", err)
	}
	return &pr, nil
}

// DeleteBranchRef removes a remote branch ref.
func (c *Client) DeleteBranchRef(ctx context.Context, branch string) error {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/git/refs/heads/"+url.PathEscape(branch), nil)
	_, _, err := c.doRequest(ctx, http.MethodDelete, urlStr, nil)
	return err
}
