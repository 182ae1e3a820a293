package telegram

import "strings"

// taskCommand is the parsed form of a /task command body.
type taskCommand struct {
	Summary     string
	Description string
	Component   string
	IssueType   string
}

// Directive markers recognized inside a /task body. Longer markers come
// first so "description:" is not consumed as "desc:".
var taskMarkers = []string{"description:", "component:", "desc:", "type:"}

// parseTask splits a /task body into summary and trailing directives.
// Markers are matched case-insensitively; the summary is everything before
// the first marker, and each directive's value runs until the next marker.
// "desc:" and "description:" are synonyms; the last one present wins.
func parseTask(body string) taskCommand {
	var cmd taskCommand
	lowered := strings.ToLower(body)

	type directive struct {
		marker string
		start  int // marker start in body
		value  int // value start in body
	}

	var found []directive
	pos := 0
	for pos < len(lowered) {
		next := -1
		var nextDir directive
		for _, marker := range taskMarkers {
			at := indexWordStart(lowered, marker, pos)
			if at < 0 {
				continue
			}
			if next == -1 || at < next {
				next = at
				nextDir = directive{marker: marker, start: at, value: at + len(marker)}
			}
		}
		if next == -1 {
			break
		}
		found = append(found, nextDir)
		pos = nextDir.value
	}

	if len(found) == 0 {
		cmd.Summary = strings.TrimSpace(body)
		return cmd
	}

	cmd.Summary = strings.TrimSpace(body[:found[0].start])
	for i, d := range found {
		end := len(body)
		if i+1 < len(found) {
			end = found[i+1].start
		}
		value := strings.TrimSpace(body[d.value:end])
		switch d.marker {
		case "desc:", "description:":
			cmd.Description = value
		case "component:":
			cmd.Component = value
		case "type:":
			cmd.IssueType = value
		}
	}
	return cmd
}

// indexWordStart finds the first occurrence of marker in s at or after pos
// that starts a word, so a summary like "update prototype: phase 2" is not
// split at the embedded "type:".
func indexWordStart(s, marker string, pos int) int {
	for pos < len(s) {
		idx := strings.Index(s[pos:], marker)
		if idx < 0 {
			return -1
		}
		at := pos + idx
		if at == 0 || s[at-1] == ' ' || s[at-1] == '\n' || s[at-1] == '\t' {
			return at
		}
		pos = at + 1
	}
	return -1
}

// splitCommand separates a leading /command from its argument text.
// Returns ("", text) when the message is not a command. Bot-name suffixes
// ("/task@my_bot") are stripped.
func splitCommand(text string) (command, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	command = text
	if i := strings.IndexAny(text, " \n\t"); i >= 0 {
		command = text[:i]
		args = strings.TrimSpace(text[i+1:])
	}
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}
	return strings.ToLower(command), args
}
