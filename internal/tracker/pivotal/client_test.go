package pivotal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jzempel/continuity/internal/tracker"
)

func TestGetStoryFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-TrackerToken"); got != "test-token" {
			t.Errorf("X-TrackerToken = %q", got)
		}
		filter := r.URL.Query().Get("filter")
		if !strings.HasPrefix(filter, "type:feature,chore,bug ") {
			t.Errorf("filter = %q, want the story-type prefix", filter)
		}
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("limit = %q, want 1", r.URL.Query().Get("limit"))
		}
		fmt.Fprint(w, `[{"id": 123, "name": "Fix login", "story_type": "bug", "current_state": "unstarted"}]`)
	}))
	defer server.Close()

	client := NewClient("test-token", 99).WithBaseURL(server.URL)
	story, err := client.GetStory(context.Background(), "id:123 state:unstarted,rejected")
	if err != nil {
		t.Fatalf("GetStory() returned error: %v", err)
	}
	if story == nil || story.ID != 123 || story.Type != TypeBug {
		t.Errorf("story = %+v", story)
	}
}

func TestGetStoryNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := NewClient("token", 99).WithBaseURL(server.URL)
	story, err := client.GetStory(context.Background(), "id:999")
	if err != nil {
		t.Fatalf("GetStory() returned error: %v", err)
	}
	if story != nil {
		t.Errorf("story = %+v, want nil for an empty result", story)
	}
}

func TestGetBacklogScopeFallback(t *testing.T) {
	var scopes []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := r.URL.Query().Get("scope")
		scopes = append(scopes, scope)
		if scope == "current_backlog" {
			// Between iterations the current_backlog scope is empty.
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[
			{"number": 7, "stories": [{"id": 1, "name": "first"}]},
			{"number": 8, "stories": [{"id": 2, "name": "second"}, {"id": 3, "name": "third"}]}
		]`)
	}))
	defer server.Close()

	client := NewClient("token", 99).WithBaseURL(server.URL)
	stories, err := client.GetBacklog(context.Background())
	if err != nil {
		t.Fatalf("GetBacklog() returned error: %v", err)
	}

	if len(scopes) != 2 || scopes[0] != "current_backlog" || scopes[1] != "backlog" {
		t.Errorf("scopes queried = %v, want [current_backlog backlog]", scopes)
	}
	if len(stories) != 3 {
		t.Fatalf("GetBacklog() returned %d stories, want 3 flattened across iterations", len(stories))
	}
	if stories[0].ID != 1 || stories[2].ID != 3 {
		t.Errorf("stories = %+v, want iteration order preserved", stories)
	}
}

func TestUpdateStory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %q, want PUT", r.Method)
		}
		var fields map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if fields["current_state"] != "started" {
			t.Errorf("current_state = %v", fields["current_state"])
		}
		fmt.Fprint(w, `{"id": 123, "name": "Fix login", "story_type": "bug", "current_state": "started"}`)
	}))
	defer server.Close()

	client := NewClient("token", 99).WithBaseURL(server.URL)
	story, err := client.UpdateStory(context.Background(), 123, map[string]interface{}{"current_state": "started"})
	if err != nil {
		t.Fatalf("UpdateStory() returned error: %v", err)
	}
	if story.State != StateStarted {
		t.Errorf("state = %q, want started", story.State)
	}
}

func TestErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_parameter", "general_problem": "Chores cannot be finished."}`)
	}))
	defer server.Close()

	client := NewClient("token", 99).WithBaseURL(server.URL)
	_, err := client.UpdateStory(context.Background(), 123, map[string]interface{}{"current_state": "finished"})
	if err == nil {
		t.Fatal("UpdateStory() succeeded, want error")
	}

	var reqErr *tracker.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %T, want *tracker.RequestError", err)
	}
	if reqErr.StatusCode != http.StatusBadRequest || reqErr.Transport() {
		t.Errorf("StatusCode = %d, Transport = %v", reqErr.StatusCode, reqErr.Transport())
	}
	if len(reqErr.Errors) != 1 || reqErr.Errors[0] != "Chores cannot be finished." {
		t.Errorf("Errors = %v", reqErr.Errors)
	}
}

func TestSetTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/99/stories/123/tasks/7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"id": 7, "position": 2, "description": "write tests", "complete": true}`)
	}))
	defer server.Close()

	client := NewClient("token", 99).WithBaseURL(server.URL)
	task, err := client.SetTask(context.Background(), 123, 7, true)
	if err != nil {
		t.Fatalf("SetTask() returned error: %v", err)
	}
	if !task.Complete || task.Position != 2 {
		t.Errorf("task = %+v", task)
	}
}
