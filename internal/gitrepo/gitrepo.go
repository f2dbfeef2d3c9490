// Package gitrepo wraps the git command line for branch operations and
// typed configuration access. All continuity state lives in git's own
// configuration store, so this package is the only writer of it.
package gitrepo

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// CommandError reports a failed git invocation. ExitStatus preserves the
// underlying git process's exit code so callers can terminate with it.
type CommandError struct {
	Args       []string
	Stderr     string
	ExitStatus int
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("git %s failed", strings.Join(e.Args, " "))
	}
	return msg
}

// Repository is a handle on a local git repository rooted at dir.
type Repository struct {
	dir string
}

// Open resolves the repository containing the current working directory.
func Open() (*Repository, error) {
	return OpenPath("")
}

// OpenPath resolves the repository containing path ("" = current directory).
func OpenPath(path string) (*Repository, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	if path != "" {
		cmd.Dir = path
	}
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	return &Repository{dir: strings.TrimSpace(string(output))}, nil
}

// Dir returns the repository working directory.
func (r *Repository) Dir() string {
	return r.dir
}

// GitDir returns the .git directory path, worktree-aware.
func (r *Repository) GitDir() (string, error) {
	out, err := r.run("rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch name, or "" when HEAD is
// detached.
func (r *Repository) CurrentBranch() (string, error) {
	out, err := r.run("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(out)
	if name == "HEAD" {
		return "", nil
	}
	return name, nil
}

// CreateBranch creates and checks out a new branch.
func (r *Repository) CreateBranch(name string) error {
	_, err := r.run("checkout", "-b", name)
	return err
}

// Checkout switches to an existing branch.
func (r *Repository) Checkout(name string) error {
	_, err := r.run("checkout", name)
	return err
}

// DeleteBranch deletes a local branch. The branch must be fully merged.
func (r *Repository) DeleteBranch(name string) error {
	_, err := r.run("branch", "-d", name)
	return err
}

// ForceDeleteBranch deletes a local branch regardless of merge state.
func (r *Repository) ForceDeleteBranch(name string) error {
	_, err := r.run("branch", "-D", name)
	return err
}

// Push pushes the named branch to origin.
func (r *Repository) Push(branch string) error {
	_, err := r.run("push", "origin", branch)
	return err
}

// PushUpstream pushes the named branch to origin and sets its upstream.
func (r *Repository) PushUpstream(branch string) error {
	_, err := r.run("push", "-u", "origin", branch)
	return err
}

// HasRemote reports whether an origin remote is configured.
func (r *Repository) HasRemote() bool {
	_, err := r.run("remote", "get-url", "origin")
	return err == nil
}

// RemoteURL returns the origin remote URL, or "" when none is configured.
func (r *Repository) RemoteURL() string {
	out, err := r.run("remote", "get-url", "origin")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// HasRemoteTracking reports whether origin already knows the named branch.
func (r *Repository) HasRemoteTracking(branch string) bool {
	_, err := r.run("rev-parse", "--verify", "--quiet", "refs/remotes/origin/"+branch)
	return err == nil
}

// Merge merges the named branch into the current branch. A non-empty tag is
// prepended to a generated --no-ff merge message, matching the commit format
// the trackers key their hooks off of.
func (r *Repository) Merge(branch, tag string, extra ...string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return err
	}
	args := []string{"merge", branch}
	args = append(args, extra...)
	if tag != "" {
		message := fmt.Sprintf("%s Merge branch '%s' into %s", tag, branch, current)
		args = append(args, "--no-ff", "-m", message)
	}
	_, err = r.run(args...)
	return err
}

// UnmergedPaths lists paths left conflicted by an in-progress merge.
func (r *Repository) UnmergedPaths() []string {
	out, err := r.run("diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths
}

// PruneRemote removes stale origin tracking refs.
func (r *Repository) PruneRemote() error {
	_, err := r.run("remote", "prune", "origin")
	return err
}

func (r *Repository) run(args ...string) (string, error) {
	log.Debug().Strs("args", args).Msg("git")
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		status := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			status = exitErr.ExitCode()
		}
		return stdout.String(), &CommandError{
			Args:       args,
			Stderr:     stderr.String(),
			ExitStatus: status,
		}
	}
	return stdout.String(), nil
}
