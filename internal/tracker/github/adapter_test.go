package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jzempel/continuity/internal/tracker"
)

type fakeConfig struct {
	values       map[string]string
	associations map[string]string
	remote       string
}

func (c *fakeConfig) Required(section, key string) (string, error) {
	if value := c.values[section+"."+key]; value != "" {
		return value, nil
	}
	return "", fmt.Errorf("Missing '%s.%s' git configuration.", section, key)
}

func (c *fakeConfig) Optional(section, key string) string {
	return c.values[section+"."+key]
}

func (c *fakeConfig) OptionalBool(section, key string) bool {
	return c.values[section+"."+key] == "true"
}

func (c *fakeConfig) GetAssociation(branch string) (string, bool) {
	key, ok := c.associations[branch]
	return key, ok
}

func (c *fakeConfig) RemoteURL() string {
	return c.remote
}

func testAdapter(serverURL string, cfg *fakeConfig) *Adapter {
	return &Adapter{
		client: NewClient("token", "owner", "repo").WithBaseURL(serverURL),
		cfg:    cfg,
	}
}

func TestNewRequiresTokenAndRemote(t *testing.T) {
	_, err := New(&fakeConfig{remote: "git@github.com:owner/repo.git"})
	if err == nil {
		t.Error("New() without github.oauth-token succeeded")
	}

	_, err = New(&fakeConfig{
		values: map[string]string{"github.oauth-token": "token"},
		remote: "https://example.com/owner/repo.git",
	})
	if err == nil {
		t.Error("New() without a github remote succeeded")
	}

	adapter, err := New(&fakeConfig{
		values: map[string]string{"github.oauth-token": "token"},
		remote: "git@github.com:owner/repo.git",
	})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if adapter.Kind() != "github" || adapter.Noun() != "issue" {
		t.Errorf("Kind/Noun = %q/%q", adapter.Kind(), adapter.Noun())
	}
}

func TestLookupCurrentItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number": 42, "title": "Fix login", "state": "open"}`)
	}))
	defer server.Close()

	cfg := &fakeConfig{associations: map[string]string{"work": "42"}}
	a := testAdapter(server.URL, cfg)

	item, err := a.LookupCurrentItem(context.Background(), "work")
	if err != nil {
		t.Fatalf("LookupCurrentItem() returned error: %v", err)
	}
	if item.Key != "42" || item.Title != "Fix login" {
		t.Errorf("item = %+v", item)
	}
	if got := a.FormatKey(item); got != "#42" {
		t.Errorf("FormatKey() = %q, want #42", got)
	}

	if _, err := a.LookupCurrentItem(context.Background(), "other"); err != tracker.ErrNoAssociation {
		t.Errorf("LookupCurrentItem(other) error = %v, want ErrNoAssociation", err)
	}
}

func TestFilterAvailableItemByKey(t *testing.T) {
	started := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		labels := "[]"
		if started {
			labels = `[{"name": "started"}]`
		}
		fmt.Fprintf(w, `{"number": 42, "title": "Fix login", "state": "open", "labels": %s}`, labels)
	}))
	defer server.Close()

	a := testAdapter(server.URL, &fakeConfig{})

	item, err := a.FilterAvailableItem(context.Background(), tracker.FilterOptions{Key: "42"})
	if err != nil {
		t.Fatalf("FilterAvailableItem() returned error: %v", err)
	}
	if item == nil || item.Key != "42" {
		t.Fatalf("item = %+v, want issue 42", item)
	}

	// A started issue is no longer available unless status is ignored.
	started = true
	item, err = a.FilterAvailableItem(context.Background(), tracker.FilterOptions{Key: "42"})
	if err != nil || item != nil {
		t.Errorf("started issue matched: item = %+v, err = %v", item, err)
	}
	item, err = a.FilterAvailableItem(context.Background(), tracker.FilterOptions{Key: "42", IgnoreStatus: true})
	if err != nil || item == nil {
		t.Errorf("ignore-status lookup failed: item = %+v, err = %v", item, err)
	}
}

func TestFilterAvailableItemMissingKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))
	defer server.Close()

	a := testAdapter(server.URL, &fakeConfig{})

	item, err := a.FilterAvailableItem(context.Background(), tracker.FilterOptions{Key: "999"})
	if err != nil {
		t.Fatalf("FilterAvailableItem() returned error: %v", err)
	}
	if item != nil {
		t.Errorf("item = %+v, want no match", item)
	}

	// Non-numeric keys can never name a GitHub issue.
	item, err = a.FilterAvailableItem(context.Background(), tracker.FilterOptions{Key: "abc"})
	if err != nil || item != nil {
		t.Errorf("non-numeric key matched: item = %+v, err = %v", item, err)
	}
}

func TestFilterAvailableItemDefaultScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/user":
			fmt.Fprint(w, `{"login": "me"}`)
		case r.URL.Path == "/repos/owner/repo/milestones":
			fmt.Fprint(w, `[{"number": 1, "title": "v1.0"}]`)
		case r.URL.Query().Get("milestone") == "1":
			// Claimed by someone else, then a pull request, then available.
			fmt.Fprint(w, `[
				{"number": 1, "title": "taken", "state": "open", "assignee": {"login": "other"}},
				{"number": 2, "title": "a pr", "state": "open", "pull_request": {"url": "x"}},
				{"number": 3, "title": "free", "state": "open", "milestone": {"number": 1, "title": "v1.0"}}
			]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer server.Close()

	a := testAdapter(server.URL, &fakeConfig{})

	item, err := a.FilterAvailableItem(context.Background(), tracker.FilterOptions{})
	if err != nil {
		t.Fatalf("FilterAvailableItem() returned error: %v", err)
	}
	if item == nil || item.Key != "3" {
		t.Fatalf("item = %+v, want issue 3", item)
	}
	if item.Milestone != "v1.0" {
		t.Errorf("Milestone = %q, want v1.0", item.Milestone)
	}
}

func TestClaimOwnershipVerifies(t *testing.T) {
	patched := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user" {
			fmt.Fprint(w, `{"login": "me"}`)
			return
		}
		if r.Method == http.MethodPatch {
			patched = true
		}
		// The assignment did not stick; the re-read shows someone else.
		fmt.Fprint(w, `{"number": 42, "title": "Fix login", "state": "open", "assignee": {"login": "other"}}`)
	}))
	defer server.Close()

	a := testAdapter(server.URL, &fakeConfig{})

	item := &tracker.Item{Key: "42"}
	item, err := a.ClaimOwnership(context.Background(), item)
	if err != nil {
		t.Fatalf("ClaimOwnership() returned error: %v", err)
	}
	if !patched {
		t.Error("unowned issue was not assigned")
	}
	if a.IsMine(item) {
		t.Error("IsMine() = true after the assignment failed to stick")
	}
}

func TestAdvanceStatusDone(t *testing.T) {
	var added []string
	var removed []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			added = append(added, r.URL.Path)
			fmt.Fprint(w, `[]`)
		case http.MethodDelete:
			removed = append(removed, r.URL.Path)
			// The started label was never applied; GitHub 404s.
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "Label does not exist"}`)
		}
	}))
	defer server.Close()

	a := testAdapter(server.URL, &fakeConfig{})

	err := a.AdvanceStatus(context.Background(), &tracker.Item{Key: "42"}, tracker.PhaseDone)
	if err != nil {
		t.Fatalf("AdvanceStatus() returned error: %v", err)
	}
	if len(added) != 1 || len(removed) != 1 {
		t.Errorf("label calls = add %v, remove %v", added, removed)
	}
}

func TestBeginFinishTag(t *testing.T) {
	a := testAdapter("http://unused", &fakeConfig{})
	tag, err := a.BeginFinish(context.Background(), &tracker.Item{Key: "42"})
	if err != nil {
		t.Fatalf("BeginFinish() returned error: %v", err)
	}
	if tag != "[close #42]" {
		t.Errorf("tag = %q, want [close #42]", tag)
	}
}

func TestNoMatchMessage(t *testing.T) {
	a := testAdapter("http://unused", &fakeConfig{})

	tests := []struct {
		opts tracker.FilterOptions
		want string
	}{
		{tracker.FilterOptions{Key: "42", Exclusive: true}, "No available issue #42 found assigned to you."},
		{tracker.FilterOptions{Key: "42"}, "No available issue #42 found."},
		{tracker.FilterOptions{Exclusive: true}, "No available issues found assigned to you."},
		{tracker.FilterOptions{}, "No available issues found."},
	}
	for _, tt := range tests {
		if got := a.NoMatchMessage(tt.opts); got != tt.want {
			t.Errorf("NoMatchMessage(%+v) = %q, want %q", tt.opts, got, tt.want)
		}
	}
}
