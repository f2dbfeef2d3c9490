package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jzempel/continuity/internal/gitrepo"
	"github.com/jzempel/continuity/internal/state"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/ui"
)

// newTestRepo creates a repository with one commit on main and returns it
// with its store.
func newTestRepo(t *testing.T) (*gitrepo.Repository, *state.Store) {
	t.Helper()
	dir := t.TempDir()

	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test User"},
		{"checkout", "-b", "main"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, output)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("readme\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{{"add", "."}, {"commit", "-m", "initial commit"}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, output)
		}
	}

	repo, err := gitrepo.OpenPath(dir)
	if err != nil {
		t.Fatalf("OpenPath() returned error: %v", err)
	}
	return repo, state.NewStore(repo)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	original, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(original) })
}

func intp(v int) *int { return &v }

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, output)
	}
}

func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	git(t, dir, "add", name)
	git(t, dir, "commit", "-m", message)
}

func TestPushNewBranch(t *testing.T) {
	repo, _ := newTestRepo(t)
	remote := t.TempDir()
	git(t, remote, "init", "--bare")
	git(t, repo.Dir(), "remote", "add", "origin", remote)

	if err := repo.CreateBranch("work"); err != nil {
		t.Fatal(err)
	}
	if err := pushNewBranch(repo, "main", "work"); err != nil {
		t.Fatalf("pushNewBranch() returned error: %v", err)
	}
	if !repo.HasRemoteTracking("work") {
		t.Error("branch not tracked on origin after push")
	}
	if branch, _ := repo.CurrentBranch(); branch != "work" {
		t.Errorf("current branch = %q, want work", branch)
	}
}

func TestPushNewBranchRollback(t *testing.T) {
	repo, _ := newTestRepo(t)
	git(t, repo.Dir(), "remote", "add", "origin",
		filepath.Join(t.TempDir(), "missing.git"))

	if err := repo.CreateBranch("work"); err != nil {
		t.Fatal(err)
	}
	if err := pushNewBranch(repo, "main", "work"); err == nil {
		t.Fatal("pushNewBranch() succeeded against a missing remote")
	}

	// The failed push rolls the local branch back.
	if branch, _ := repo.CurrentBranch(); branch != "main" {
		t.Errorf("current branch = %q, want main", branch)
	}
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", "refs/heads/work")
	cmd.Dir = repo.Dir()
	if cmd.Run() == nil {
		t.Error("branch work still exists after rollback")
	}
}

func TestMergeFailureConflict(t *testing.T) {
	repo, _ := newTestRepo(t)
	if err := repo.CreateBranch("work"); err != nil {
		t.Fatal(err)
	}
	commitFile(t, repo.Dir(), "README.md", "work\n", "work change")
	if err := repo.Checkout("main"); err != nil {
		t.Fatal(err)
	}
	commitFile(t, repo.Dir(), "README.md", "main\n", "main change")

	err := repo.Merge("work", "[finish #123]")
	if err == nil {
		t.Fatal("Merge() succeeded, want conflict")
	}

	paths, status, ok := mergeFailure(repo, err)
	if !ok {
		t.Fatal("mergeFailure() did not recognize a git failure")
	}
	if status <= 0 {
		t.Errorf("status = %d, want positive git exit status", status)
	}
	if len(paths) != 1 || paths[0] != "README.md" {
		t.Errorf("paths = %v, want [README.md]", paths)
	}

	// The merge stays in progress for the user to resolve.
	gitDir, err := repo.GitDir()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(gitDir, "MERGE_HEAD")); err != nil {
		t.Errorf("merge not left in progress: %v", err)
	}
}

func TestMergeFailureNonGitError(t *testing.T) {
	repo, _ := newTestRepo(t)
	if _, _, ok := mergeFailure(repo, fmt.Errorf("boom")); ok {
		t.Error("mergeFailure() classified a non-git error as a git failure")
	}
}

func TestFormatItemLinePivotal(t *testing.T) {
	tests := []struct {
		name string
		item tracker.Item
		want string
	}{
		{
			name: "estimated feature with owner",
			item: tracker.Item{Key: "123", Type: "feature", Estimate: intp(2), Title: "Login", Assignee: "AD"},
			want: fmt.Sprintf("%s FEATURE (2): Login (AD)\n", ui.Yellow("123")),
		},
		{
			name: "unestimated feature",
			item: tracker.Item{Key: "124", Type: "feature", Estimate: intp(-1), Title: "Logout"},
			want: fmt.Sprintf("%s FEATURE (?): Logout\n", ui.Yellow("124")),
		},
		{
			name: "chore has no estimate",
			item: tracker.Item{Key: "125", Type: "chore", Title: "Tidy"},
			want: fmt.Sprintf("%s CHORE: Tidy\n", ui.Yellow("125")),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatItemLine("pivotal", &tt.item); got != tt.want {
				t.Errorf("formatItemLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatItemLineJira(t *testing.T) {
	// Status carries the workflow's own status name, not its category key.
	item := tracker.Item{
		Key: "PROJ-7", Type: "Bug", Priority: "Major", Status: "In Progress",
		Title: "Fix login", Assignee: "alice",
	}
	want := fmt.Sprintf("%s BUG (major) [IN PROGRESS]: Fix login (alice)\n", ui.Yellow("PROJ-7"))
	if got := formatItemLine("jira", &item); got != want {
		t.Errorf("formatItemLine() = %q, want %q", got, want)
	}
}

func TestFormatItemLineGithub(t *testing.T) {
	tests := []struct {
		name string
		item tracker.Item
		want string
	}{
		{
			name: "started with assignee and milestone",
			item: tracker.Item{Key: "42", Title: "Fix login", Labels: []string{"started"},
				Assignee: "alice", Milestone: "v1.0"},
			want: fmt.Sprintf("%s: Fix login [STARTED] (alice, v1.0)\n", ui.Yellow("42")),
		},
		{
			name: "milestone only",
			item: tracker.Item{Key: "43", Title: "Add logout", Milestone: "v1.0"},
			want: fmt.Sprintf("%s: Add logout (v1.0)\n", ui.Yellow("43")),
		},
		{
			name: "bare",
			item: tracker.Item{Key: "44", Title: "Refactor"},
			want: fmt.Sprintf("%s: Refactor\n", ui.Yellow("44")),
		},
		{
			name: "started wins over finished",
			item: tracker.Item{Key: "45", Title: "Ship it", Labels: []string{"finished", "started"}},
			want: fmt.Sprintf("%s: Ship it [STARTED]\n", ui.Yellow("45")),
		},
		{
			name: "finished only",
			item: tracker.Item{Key: "46", Title: "Done deal", Labels: []string{"finished"}},
			want: fmt.Sprintf("%s: Done deal [FINISHED]\n", ui.Yellow("46")),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatItemLine("github", &tt.item); got != tt.want {
				t.Errorf("formatItemLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPullRequestFailure(t *testing.T) {
	withDetail := &tracker.RequestError{
		StatusCode: 422,
		Errors:     []string{"No commits between main and work"},
	}
	want := "Unable to create pull request - no commits between main and work."
	if got := pullRequestFailure(withDetail); got != want {
		t.Errorf("pullRequestFailure() = %q, want %q", got, want)
	}

	bare := &tracker.RequestError{StatusCode: 500}
	if got := pullRequestFailure(bare); got != "Unable to create pull request." {
		t.Errorf("pullRequestFailure() = %q", got)
	}

	empty := &tracker.RequestError{StatusCode: 422, Errors: []string{""}}
	if got := pullRequestFailure(empty); got != "Unable to create pull request." {
		t.Errorf("pullRequestFailure() with empty detail = %q", got)
	}
}

type stubAdapter struct {
	tracker.Adapter
	noun string
}

func (a stubAdapter) Noun() string { return a.noun }

func TestNotBranchMessage(t *testing.T) {
	if got := notBranchMessage(stubAdapter{noun: "story"}); got != "fatal: Not a story branch." {
		t.Errorf("notBranchMessage(story) = %q", got)
	}
	if got := notBranchMessage(stubAdapter{noun: "issue"}); got != "fatal: Not an issue branch." {
		t.Errorf("notBranchMessage(issue) = %q", got)
	}
}

func TestCapitalize(t *testing.T) {
	if got := capitalize("story"); got != "Story" {
		t.Errorf("capitalize(story) = %q", got)
	}
	if got := capitalize(""); got != "" {
		t.Errorf("capitalize(\"\") = %q", got)
	}
}

func TestCommandAliases(t *testing.T) {
	aliases := commandAliases("pivotal")
	if aliases["continuity"] != "!continuity init" {
		t.Errorf("continuity alias = %q", aliases["continuity"])
	}
	if aliases["backlog"] != "!continuity backlog" || aliases["story"] != "!continuity story" {
		t.Errorf("pivotal aliases = %v", aliases)
	}
	if _, ok := aliases["issues"]; ok {
		t.Error("pivotal aliases include issues")
	}

	aliases = commandAliases("jira")
	if aliases["issues"] != "!continuity issues" || aliases["issue"] != "!continuity issue" {
		t.Errorf("jira aliases = %v", aliases)
	}
}

func TestCommitMention(t *testing.T) {
	repo, store := newTestRepo(t)

	if err := repo.SetConfig("continuity", "", map[string]string{"tracker": "jira"}); err != nil {
		t.Fatal(err)
	}
	if got := commitMention(store, "PROJ-7"); got != "PROJ-7" {
		t.Errorf("commitMention(jira) = %q", got)
	}

	if err := repo.SetConfig("continuity", "", map[string]string{"tracker": "pivotal"}); err != nil {
		t.Fatal(err)
	}
	if got := commitMention(store, "123"); got != "#123" {
		t.Errorf("commitMention(pivotal) = %q", got)
	}
}

func TestRunCommitPrefixesMessage(t *testing.T) {
	repo, store := newTestRepo(t)
	if err := repo.SetConfig("continuity", "", map[string]string{
		"integration-branch": "main",
		"tracker":            "pivotal",
	}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateBranch("work"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetAssociation(state.Association{BranchName: "work", ItemKey: "123"}); err != nil {
		t.Fatal(err)
	}
	chdir(t, repo.Dir())

	file := filepath.Join(repo.Dir(), "COMMIT_EDITMSG")
	if err := os.WriteFile(file, []byte("fix the login form\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runCommit(file)
	message, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(message); got != "[#123] fix the login form\n" {
		t.Errorf("message = %q", got)
	}

	// A message already mentioning the story is left alone.
	runCommit(file)
	message, _ = os.ReadFile(file)
	if got := string(message); got != "[#123] fix the login form\n" {
		t.Errorf("message after second run = %q", got)
	}
}

func TestRunCommitNoAssociation(t *testing.T) {
	repo, _ := newTestRepo(t)
	chdir(t, repo.Dir())

	file := filepath.Join(repo.Dir(), "COMMIT_EDITMSG")
	if err := os.WriteFile(file, []byte("plain commit\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runCommit(file)
	message, _ := os.ReadFile(file)
	if got := string(message); got != "plain commit\n" {
		t.Errorf("message = %q, want untouched", got)
	}
}

func TestInstallCommitHook(t *testing.T) {
	repo, _ := newTestRepo(t)

	gitDir, err := repo.GitDir()
	if err != nil {
		t.Fatal(err)
	}
	hook := filepath.Join(gitDir, "hooks", "prepare-commit-msg")
	if err := os.MkdirAll(filepath.Dir(hook), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(hook, []byte("#!/bin/sh\necho existing\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := installCommitHook(repo); err != nil {
		t.Fatalf("installCommitHook() returned error: %v", err)
	}

	content, err := os.ReadFile(hook)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != commitHook {
		t.Errorf("hook content = %q", content)
	}
	info, err := os.Stat(hook)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o111 == 0 {
		t.Error("hook is not executable")
	}

	backup, err := os.ReadFile(hook + ".bak")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if !strings.Contains(string(backup), "echo existing") {
		t.Errorf("backup content = %q", backup)
	}

	// Reinstalling never clobbers the original backup.
	if err := installCommitHook(repo); err != nil {
		t.Fatalf("installCommitHook() returned error: %v", err)
	}
	backup, _ = os.ReadFile(hook + ".bak")
	if !strings.Contains(string(backup), "echo existing") {
		t.Error("backup overwritten on reinstall")
	}
}
