package ui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// ToPager pipes content through a pager when stdout is a terminal and the
// content exceeds the terminal height; otherwise it prints directly.
// CONTINUITY_PAGER and PAGER select the pager, defaulting to less.
func ToPager(content string) error {
	if !shouldUsePager(content) {
		fmt.Print(content)
		return nil
	}

	parts := strings.Fields(pagerCommand())
	if len(parts) == 0 {
		fmt.Print(content)
		return nil
	}

	cmd := exec.Command(parts[0], parts[1:]...) // #nosec G204 - pager command is user-configurable by design
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// -F quit if one screen, -R pass color, -S chop long lines, -X no init
	if os.Getenv("LESS") == "" {
		cmd.Env = append(os.Environ(), "LESS=-FRSX")
	} else {
		cmd.Env = os.Environ()
	}

	return cmd.Run()
}

func shouldUsePager(content string) bool {
	if os.Getenv("CONTINUITY_NO_PAGER") != "" {
		return false
	}
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return false
	}
	if _, height, err := term.GetSize(fd); err == nil && height > 0 {
		if strings.Count(content, "\n")+1 <= height-1 {
			return false
		}
	}
	return true
}

func pagerCommand() string {
	if pager := os.Getenv("CONTINUITY_PAGER"); pager != "" {
		return pager
	}
	if pager := os.Getenv("PAGER"); pager != "" {
		return pager
	}
	return "less"
}
