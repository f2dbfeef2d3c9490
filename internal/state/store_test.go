package state_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzempel/continuity/internal/gitrepo"
	"github.com/jzempel/continuity/internal/state"
)

func newTestStore(t *testing.T) (*state.Store, *gitrepo.Repository) {
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
		output, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %s: %s", strings.Join(args, " "), output)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("readme\n"), 0o644))
	for _, args := range [][]string{
		{"add", "."},
		{"commit", "-m", "initial commit"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		output, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %s: %s", strings.Join(args, " "), output)
	}

	repo, err := gitrepo.OpenPath(dir)
	require.NoError(t, err)
	return state.NewStore(repo), repo
}

func configure(t *testing.T, repo *gitrepo.Repository, tracker string) {
	t.Helper()
	require.NoError(t, repo.SetConfig(state.SectionContinuity, "", map[string]string{
		state.KeyIntegrationBranch: "main",
		state.KeyTracker:           tracker,
	}))
}

func TestRequiredMissingKey(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Required("continuity", "tracker")
	require.Error(t, err)
	assert.Equal(t, "Missing 'continuity.tracker' git configuration.", err.Error())

	var missing *state.MissingKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "continuity", missing.Section)
	assert.Equal(t, "tracker", missing.Key)
}

func TestOptional(t *testing.T) {
	store, repo := newTestStore(t)

	assert.Empty(t, store.Optional("jira", "finish-transition"))
	assert.False(t, store.OptionalBool("jira", "review-transition"))

	require.NoError(t, repo.SetConfig("jira", "", map[string]string{"review-transition": "true"}))
	assert.True(t, store.OptionalBool("jira", "review-transition"))
}

func TestAssociationKeyPerTracker(t *testing.T) {
	tests := []struct {
		tracker string
		itemKey string
		rawKey  string
	}{
		{"pivotal", "12345678", "story"},
		{"github", "42", "issue"},
		{"jira", "PROJ-7", "issue"},
	}

	for _, tt := range tests {
		t.Run(tt.tracker, func(t *testing.T) {
			store, repo := newTestStore(t)
			configure(t, repo, tt.tracker)

			err := store.SetAssociation(state.Association{BranchName: "work", ItemKey: tt.itemKey})
			require.NoError(t, err)

			value, ok := repo.ConfigValue("branch", "work", tt.rawKey)
			require.True(t, ok, "expected branch.work.%s to be written", tt.rawKey)
			assert.Equal(t, tt.itemKey, value)

			a, ok := store.GetAssociation("work")
			require.True(t, ok)
			assert.Equal(t, tt.itemKey, a.ItemKey)
			assert.Empty(t, a.IntegrationBranchOverride)
		})
	}
}

func TestAssociationRoundTripSpecialBranchNames(t *testing.T) {
	// Branch names may contain regexp metacharacters; an association written
	// for such a branch must still be readable.
	branches := []string{"c++-fix", "feature/(auth)", "topic+v1.2"}

	for _, branch := range branches {
		t.Run(branch, func(t *testing.T) {
			store, repo := newTestStore(t)
			configure(t, repo, "pivotal")

			err := store.SetAssociation(state.Association{BranchName: branch, ItemKey: "123"})
			require.NoError(t, err)

			a, ok := store.GetAssociation(branch)
			require.True(t, ok, "association written by SetAssociation was not found")
			assert.Equal(t, "123", a.ItemKey)

			associations := store.Associations()
			require.Len(t, associations, 1)
			assert.Equal(t, branch, associations[0].BranchName)
		})
	}
}

func TestIntegrationBranchOverride(t *testing.T) {
	store, repo := newTestStore(t)
	configure(t, repo, "github")

	err := store.SetAssociation(state.Association{
		BranchName:                "hotfix",
		ItemKey:                   "9",
		IntegrationBranchOverride: "release",
	})
	require.NoError(t, err)

	branch, err := store.ResolveIntegrationBranch("hotfix")
	require.NoError(t, err)
	assert.Equal(t, "release", branch)

	branch, err = store.ResolveIntegrationBranch("other")
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestResolveIntegrationBranchMissingConfiguration(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.ResolveIntegrationBranch("work")
	require.Error(t, err)
	assert.Equal(t, "Missing 'continuity.integration-branch' git configuration.", err.Error())
}

func TestAssociationsSkipGitOwnKeys(t *testing.T) {
	store, repo := newTestStore(t)
	configure(t, repo, "github")

	// branch.main.remote is git's, not an association.
	require.NoError(t, repo.SetConfig("branch", "main", map[string]string{"remote": "origin"}))
	require.NoError(t, store.SetAssociation(state.Association{BranchName: "work", ItemKey: "42"}))

	associations := store.Associations()
	require.Len(t, associations, 1)
	assert.Equal(t, "work", associations[0].BranchName)
	assert.Equal(t, "42", associations[0].ItemKey)
}

func TestRemoveAssociation(t *testing.T) {
	store, repo := newTestStore(t)
	configure(t, repo, "pivotal")

	require.NoError(t, store.SetAssociation(state.Association{BranchName: "work", ItemKey: "123"}))
	require.NoError(t, store.RemoveAssociation("work"))

	_, ok := store.GetAssociation("work")
	assert.False(t, ok)
}

func TestExclusive(t *testing.T) {
	store, repo := newTestStore(t)

	assert.False(t, store.Exclusive())
	require.NoError(t, repo.SetConfig(state.SectionContinuity, "", map[string]string{state.KeyExclusive: "true"}))
	assert.True(t, store.Exclusive())
}
