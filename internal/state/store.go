// Package state persists the branch-to-tracker-item association in git
// configuration. It is the only component that writes `branch "<name>"`
// subsections; everything else reads through it.
package state

import (
	"fmt"

	"github.com/jzempel/continuity/internal/gitrepo"
)

// Config keys owned by this package.
const (
	SectionContinuity    = "continuity"
	SectionBranch        = "branch"
	KeyIntegrationBranch = "integration-branch"
	KeyTracker           = "tracker"
	KeyExclusive         = "exclusive"
	keyStory             = "story"
	keyIssue             = "issue"
)

// Association links a local branch to a tracker item. ItemKey is a story id,
// issue number, or issue key depending on the configured tracker.
type Association struct {
	BranchName                string
	ItemKey                   string
	IntegrationBranchOverride string
}

// MissingKeyError names the exact configuration key a command needed but
// could not find. It is always fatal and is reported before any network
// call is attempted.
type MissingKeyError struct {
	Section string
	Key     string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("Missing '%s.%s' git configuration.", e.Section, e.Key)
}

// Store reads and writes continuity's branch state.
type Store struct {
	repo *gitrepo.Repository
}

// NewStore returns a Store backed by the given repository.
func NewStore(repo *gitrepo.Repository) *Store {
	return &Store{repo: repo}
}

// Required reads a configuration value that must be present, returning a
// MissingKeyError naming the exact section.key otherwise.
func (s *Store) Required(section, key string) (string, error) {
	value, ok := s.repo.ConfigValue(section, "", key)
	if !ok || value == "" {
		return "", &MissingKeyError{Section: section, Key: key}
	}
	return value, nil
}

// Optional reads a configuration value, returning "" when absent.
func (s *Store) Optional(section, key string) string {
	value, _ := s.repo.ConfigValue(section, "", key)
	return value
}

// OptionalBool reads a boolean configuration value; absent keys are false.
func (s *Store) OptionalBool(section, key string) bool {
	return s.repo.ConfigBool(section, "", key)
}

// GetAssociation reads the association for a branch. A subsection with no
// item key is treated as absent for read purposes.
func (s *Store) GetAssociation(branch string) (Association, bool) {
	section := s.repo.ConfigSection(SectionBranch, branch)
	if section == nil {
		return Association{}, false
	}
	key := section[keyStory]
	if key == "" {
		key = section[keyIssue]
	}
	if key == "" {
		return Association{}, false
	}
	return Association{
		BranchName:                branch,
		ItemKey:                   key,
		IntegrationBranchOverride: section[KeyIntegrationBranch],
	}, true
}

// SetAssociation writes the association for a branch in one complete write.
// The item key lands under "story" for pivotal and "issue" otherwise,
// matching the configuration layout existing repositories depend on.
func (s *Store) SetAssociation(a Association) error {
	tracker, err := s.Required(SectionContinuity, KeyTracker)
	if err != nil {
		return err
	}
	values := map[string]string{keyIssue: a.ItemKey}
	if tracker == "pivotal" {
		values = map[string]string{keyStory: a.ItemKey}
	}
	if a.IntegrationBranchOverride != "" {
		values[KeyIntegrationBranch] = a.IntegrationBranchOverride
	}
	return s.repo.SetConfig(SectionBranch, a.BranchName, values)
}

// Associations lists every branch that currently has a tracker association.
// Branch subsections carrying only git's own keys (remote, merge) are not
// associations and are skipped.
func (s *Store) Associations() []Association {
	var out []Association
	for _, branch := range s.repo.ConfigSubsections(SectionBranch) {
		if a, ok := s.GetAssociation(branch); ok {
			out = append(out, a)
		}
	}
	return out
}

// RemoveAssociation deletes a branch's association subsection.
func (s *Store) RemoveAssociation(branch string) error {
	return s.repo.UnsetConfigSection(SectionBranch, branch)
}

// ResolveIntegrationBranch returns the merge target for a branch: its
// association's override when the branch was started with --force, else the
// project-wide integration branch.
func (s *Store) ResolveIntegrationBranch(branch string) (string, error) {
	if a, ok := s.GetAssociation(branch); ok && a.IntegrationBranchOverride != "" {
		return a.IntegrationBranchOverride, nil
	}
	if override, ok := s.repo.ConfigValue(SectionBranch, branch, KeyIntegrationBranch); ok && override != "" {
		// Forced branches keep their override even before an item key is set.
		return override, nil
	}
	return s.Required(SectionContinuity, KeyIntegrationBranch)
}

// IntegrationBranch returns the project-wide integration branch.
func (s *Store) IntegrationBranch() (string, error) {
	return s.Required(SectionContinuity, KeyIntegrationBranch)
}

// TrackerKind returns the configured tracker identifier.
func (s *Store) TrackerKind() (string, error) {
	return s.Required(SectionContinuity, KeyTracker)
}

// Exclusive reports whether items not owned by the caller are excluded by
// default. CLI flags take precedence over this value.
func (s *Store) Exclusive() bool {
	return s.repo.ConfigBool(SectionContinuity, "", KeyExclusive)
}
