package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jzempel/continuity/internal/tracker"
)

// NewClient creates a new JIRA client for the given instance.
func NewClient(baseURL, token string) *Client {
	return &Client{
		Token:   token,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a new client with a custom base URL (for testing).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: c.HTTPClient,
	}
}

// IssueURL returns the browse URL for an issue key.
func (c *Client) IssueURL(key string) string {
	return c.BaseURL + "/browse/" + key
}

func (c *Client) buildURL(resource string, params map[string]string) string {
	u := c.BaseURL + apiPath + resource
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}
	return u
}

// doRequest performs one authenticated HTTP exchange against the JIRA API.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	log.Debug().Str("method", method).Str("url", urlStr).Msg("jira request")

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &tracker.RequestError{Op: "jira " + method, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &tracker.RequestError{Op: "jira " + method, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := &tracker.RequestError{
			Op:         "jira " + method,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", string(respBody)),
		}
		var payload struct {
			ErrorMessages []string          `json:"errorMessages"`
			Errors        map[string]string `json:"errors"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			reqErr.Errors = append(reqErr.Errors, payload.ErrorMessages...)
			for _, message := range payload.Errors {
				reqErr.Errors = append(reqErr.Errors, message)
			}
		}
		return nil, reqErr
	}

	return respBody, nil
}

// Search runs a JQL query and returns the matching issues.
func (c *Client) Search(ctx context.Context, jql string) ([]Issue, error) {
	urlStr := c.buildURL("/search", map[string]string{"jql": jql})
	respBody, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Issues []Issue `json:"issues"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	return result.Issues, nil
}

// GetTransitions returns the transitions currently allowed for an issue,
// expanded with their transition-screen fields so resolutions are visible.
func (c *Client) GetTransitions(ctx context.Context, key string) ([]Transition, error) {
	urlStr := c.buildURL("/issue/"+key+"/transitions", map[string]string{
		"expand": "transitions.fields",
	})
	respBody, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse transitions response: %w", err)
	}
	return result.Transitions, nil
}

// SetAssignee assigns an issue to the named user.
func (c *Client) SetAssignee(ctx context.Context, key, name string) error {
	urlStr := c.buildURL("/issue/"+key+"/assignee", nil)
	_, err := c.doRequest(ctx, http.MethodPut, urlStr, map[string]string{"name": name})
	return err
}

// DoTransition applies a transition to an issue, with an optional resolution.
func (c *Client) DoTransition(ctx context.Context, key, transitionID, resolutionID string) error {
	body := map[string]interface{}{
		"transition": map[string]string{"id": transitionID},
	}
	if resolutionID != "" {
		body["fields"] = map[string]interface{}{
			"resolution": map[string]string{"id": resolutionID},
		}
	}
	urlStr := c.buildURL("/issue/"+key+"/transitions", nil)
	_, err := c.doRequest(ctx, http.MethodPost, urlStr, body)
	return err
}

// GetComments retrieves an issue's comments.
func (c *Client) GetComments(ctx context.Context, key string) ([]Comment, error) {
	urlStr := c.buildURL("/issue/"+key+"/comment", nil)
	respBody, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Comments []Comment `json:"comments"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse comments response: %w", err)
	}
	return result.Comments, nil
}
