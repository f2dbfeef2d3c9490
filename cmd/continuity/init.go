package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/gitrepo"
	"github.com/jzempel/continuity/internal/state"
	"github.com/jzempel/continuity/internal/ui"
)

// commitHook is installed as .git/hooks/prepare-commit-msg so every commit
// message picks up the branch's item reference.
const commitHook = "#!/bin/sh\n\ncontinuity commit \"$@\""

// newInitCmd builds the configuration wizard. It prompts for the continuity,
// tracker, and github sections with existing values as defaults, writes the
// git aliases, and installs the commit hook.
func newInitCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "initialize a git repository for use with continuity",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			repo := openRepo()
			store := state.NewStore(repo)
			runGuarded("Initialization aborted. Changes NOT saved.", func() error {
				return runInit(repo, store, reset)
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "new", false, "discard existing configuration and branch associations")

	return cmd
}

func runInit(repo *gitrepo.Repository, store *state.Store, reset bool) error {
	if reset {
		resetConfiguration(repo, store)
	}

	fmt.Println("Enter values or accept [defaults] with Enter.")
	fmt.Println()

	continuity, err := initializeContinuity(repo)
	if err != nil {
		return err
	}
	kind := continuity[state.KeyTracker]

	sections := map[string]map[string]string{
		state.SectionContinuity: continuity,
	}
	switch kind {
	case "pivotal":
		if sections["pivotal"], err = initializePivotal(repo); err != nil {
			return err
		}
	case "jira":
		if sections["jira"], err = initializeJira(repo); err != nil {
			return err
		}
	}
	// Reviews open GitHub pull requests under every tracker, so the token is
	// always collected.
	if sections["github"], err = initializeGithub(repo); err != nil {
		return err
	}

	aliases := commandAliases(kind)

	for section, values := range sections {
		if err := repo.SetConfig(section, "", values); err != nil {
			return err
		}
	}
	if err := repo.SetConfig("alias", "", aliases); err != nil {
		return err
	}
	if err := installCommitHook(repo); err != nil {
		return err
	}

	summarizeInit(kind, sections, aliases)
	return nil
}

// resetConfiguration drops every continuity-owned section and branch
// association before the wizard starts over. Absent sections are not an
// error.
func resetConfiguration(repo *gitrepo.Repository, store *state.Store) {
	for _, a := range store.Associations() {
		_ = store.RemoveAssociation(a.BranchName)
	}
	for _, section := range []string{state.SectionContinuity, "github", "pivotal", "jira"} {
		_ = repo.UnsetConfigSection(section, "")
	}
}

// runForm executes a huh form, mapping the user backing out to the same
// cancellation the line prompts report.
func runForm(groups ...*huh.Group) error {
	err := huh.NewForm(groups...).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ui.ErrCanceled
	}
	return err
}

func initializeContinuity(repo *gitrepo.Repository) (map[string]string, error) {
	existing := repo.ConfigSection(state.SectionContinuity, "")

	integration := existing[state.KeyIntegrationBranch]
	if integration == "" {
		if branch, err := repo.CurrentBranch(); err == nil {
			integration = branch
		}
	}
	kind := existing[state.KeyTracker]
	if kind == "" {
		kind = "pivotal"
	}
	exclusive := existing[state.KeyExclusive] == "true"

	err := runForm(huh.NewGroup(
		huh.NewInput().
			Title("Integration branch").
			Value(&integration).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("a branch name is required")
				}
				return nil
			}),
		huh.NewSelect[string]().
			Title("Tracker").
			Options(
				huh.NewOption("Pivotal Tracker", "pivotal"),
				huh.NewOption("GitHub Issues", "github"),
				huh.NewOption("JIRA", "jira"),
			).
			Value(&kind),
	))
	if err != nil {
		return nil, err
	}

	question := "Exclude issues not assigned to you?"
	if kind == "pivotal" {
		question = "Exclude stories which you do not own?"
	}
	err = runForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Value(&exclusive),
	))
	if err != nil {
		return nil, err
	}

	return map[string]string{
		state.KeyIntegrationBranch: strings.TrimSpace(integration),
		state.KeyTracker:           kind,
		state.KeyExclusive:         strconv.FormatBool(exclusive),
	}, nil
}

func initializeGithub(repo *gitrepo.Repository) (map[string]string, error) {
	existing := repo.ConfigSection("github", "")
	token := existing["oauth-token"]

	err := runForm(huh.NewGroup(
		huh.NewInput().
			Title("GitHub OAuth token").
			Value(&token).
			Validate(requiredValue("a token is required")),
	))
	if err != nil {
		return nil, err
	}

	return map[string]string{"oauth-token": strings.TrimSpace(token)}, nil
}

func initializePivotal(repo *gitrepo.Repository) (map[string]string, error) {
	existing := repo.ConfigSection("pivotal", "")
	token := existing["api-token"]
	projectID := existing["project-id"]
	ownerID := existing["owner-id"]

	err := runForm(huh.NewGroup(
		huh.NewInput().
			Title("Pivotal Tracker API token").
			Value(&token).
			Validate(requiredValue("a token is required")),
		huh.NewInput().
			Title("Pivotal Tracker project ID").
			Value(&projectID).
			Validate(requiredNumber("a numeric project ID is required")),
		huh.NewInput().
			Title("Pivotal Tracker owner ID").
			Value(&ownerID).
			Validate(requiredNumber("a numeric owner ID is required")),
	))
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"api-token":  strings.TrimSpace(token),
		"project-id": strings.TrimSpace(projectID),
		"owner-id":   strings.TrimSpace(ownerID),
	}, nil
}

func initializeJira(repo *gitrepo.Repository) (map[string]string, error) {
	existing := repo.ConfigSection("jira", "")
	base := existing["url"]
	user := existing["user"]
	token := existing["auth-token"]
	projectKey := existing["project-key"]
	review := existing["review-transition"] == "true"
	// Finish transitions default on; only an explicit false disables them.
	finish := existing["finish-transition"] != "false"

	err := runForm(huh.NewGroup(
		huh.NewInput().
			Title("JIRA URL").
			Value(&base).
			Validate(func(s string) error {
				u, err := url.Parse(strings.TrimSpace(s))
				if err != nil || u.Scheme == "" || u.Host == "" {
					return fmt.Errorf("a full URL is required")
				}
				return nil
			}),
		huh.NewInput().
			Title("JIRA username").
			Value(&user).
			Validate(requiredValue("a username is required")),
		huh.NewInput().
			Title("JIRA basic auth token").
			Value(&token).
			Validate(requiredValue("a token is required")),
		huh.NewInput().
			Title("JIRA project key").
			Value(&projectKey).
			Validate(requiredValue("a project key is required")),
		huh.NewConfirm().
			Title("Transition issues on review?").
			Value(&review),
		huh.NewConfirm().
			Title("Transition issues on finish?").
			Value(&finish),
	))
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"url":               strings.TrimRight(strings.TrimSpace(base), "/"),
		"user":              strings.TrimSpace(user),
		"auth-token":        strings.TrimSpace(token),
		"project-key":       strings.ToUpper(strings.TrimSpace(projectKey)),
		"review-transition": strconv.FormatBool(review),
		"finish-transition": strconv.FormatBool(finish),
	}, nil
}

func requiredValue(message string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(message)
		}
		return nil
	}
}

func requiredNumber(message string) func(string) error {
	return func(s string) error {
		if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
			return errors.New(message)
		}
		return nil
	}
}

// commandAliases maps each workflow command to a git alias so "git start"
// works once init completes. The init command itself aliases as "continuity".
func commandAliases(kind string) map[string]string {
	names := []string{"start", "finish", "review", "tasks"}
	if kind == "pivotal" {
		names = append(names, "story", "backlog")
	} else {
		names = append(names, "issue", "issues")
	}

	aliases := map[string]string{"continuity": "!continuity init"}
	for _, name := range names {
		aliases[name] = "!continuity " + name
	}
	return aliases
}

// installCommitHook writes the prepare-commit-msg hook, preserving any
// existing hook as a one-time .bak backup.
func installCommitHook(repo *gitrepo.Repository) error {
	gitDir, err := repo.GitDir()
	if err != nil {
		return err
	}
	filename := filepath.Join(gitDir, "hooks", "prepare-commit-msg")
	if _, err := os.Stat(filename); err == nil {
		backup := filename + ".bak"
		if _, err := os.Stat(backup); os.IsNotExist(err) {
			if err := os.Rename(filename, backup); err != nil {
				return err
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(commitHook), 0o755)
}

func summarizeInit(kind string, sections map[string]map[string]string, aliases map[string]string) {
	fmt.Println()
	fmt.Println("Configured git for continuity:")
	order := []string{kind, "github", state.SectionContinuity}
	if kind == "github" {
		order = []string{"github", state.SectionContinuity}
	}
	for _, section := range order {
		values := sections[section]
		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("    %s.%s=%s\n", section, key, values[key])
		}
	}

	fmt.Println()
	fmt.Println("Aliased git commands:")
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("    %s\n", name)
	}
}
