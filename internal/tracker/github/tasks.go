package github

import (
	"regexp"
	"strings"

	"github.com/jzempel/continuity/internal/tracker"
)

// taskPattern matches one markdown checklist line: a list marker, a checkbox,
// and a non-empty description. It is deliberately conservative; anything in
// the body it does not match is never touched.
var taskPattern = regexp.MustCompile(`(?m)^([-*+]|\d+\.)[ \t]+\[( |x)\][ \t]+(\S.*)$`)

// ParseTasks extracts the checklist from an issue body, numbering tasks by
// position.
func ParseTasks(body string) []tracker.Task {
	var tasks []tracker.Task
	for i, match := range taskPattern.FindAllStringSubmatch(body, -1) {
		tasks = append(tasks, tracker.Task{
			Number:      i + 1,
			Checked:     match[2] == "x",
			Description: match[3],
		})
	}
	return tasks
}

// ToggleTask rewrites the nth checklist line's checkbox in place, preserving
// every other byte of the body verbatim. The second return is false when the
// body has no such task.
func ToggleTask(body string, number int, checked bool) (string, bool) {
	spans := taskPattern.FindAllStringIndex(body, -1)
	if number < 1 || number > len(spans) {
		return body, false
	}

	old, updated := "[x]", "[ ]"
	if checked {
		old, updated = "[ ]", "[x]"
	}

	span := spans[number-1]
	line := body[span[0]:span[1]]
	line = strings.Replace(line, old, updated, 1)
	return body[:span[0]] + line + body[span[1]:], true
}
