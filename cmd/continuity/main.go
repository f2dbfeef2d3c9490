// Command continuity binds git branches to tracker items and drives them
// through a start/review/finish workflow. Branch state lives in git
// configuration; the configured tracker (pivotal, github, or jira) decides
// which subcommands are installed and what they are called.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/gitrepo"
	"github.com/jzempel/continuity/internal/state"

	// Tracker adapters register themselves.
	_ "github.com/jzempel/continuity/internal/tracker/github"
	_ "github.com/jzempel/continuity/internal/tracker/jira"
	_ "github.com/jzempel/continuity/internal/tracker/pivotal"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "continuity",
	Short:         "git-workflow orchestration for Pivotal Tracker, GitHub Issues, and JIRA",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.Disabled)
		if verbose {
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				With().Timestamp().Logger()
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"trace git and tracker calls")
}

// configuredTracker reads the tracker kind without requiring one; commands
// are installed speculatively so help works in unconfigured repositories.
func configuredTracker() string {
	repo, err := gitrepo.Open()
	if err != nil {
		return ""
	}
	kind, err := state.NewStore(repo).TrackerKind()
	if err != nil {
		return ""
	}
	return kind
}

func main() {
	kind := configuredTracker()

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newCommitCmd())
	rootCmd.AddCommand(newStartCmd(kind))
	rootCmd.AddCommand(newFinishCmd())
	rootCmd.AddCommand(newReviewCmd())
	rootCmd.AddCommand(newTasksCmd(kind))
	rootCmd.AddCommand(newItemCmd(kind))
	rootCmd.AddCommand(newListCmd(kind))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
