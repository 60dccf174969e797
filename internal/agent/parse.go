package agent

import (
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/answer"
)

const (
	thoughtMarker     = "Thought:"
	actionMarker      = "Action:"
	actionInputMarker = "Action Input:"
	observationMarker = "Observation:"
)

type replyKind int

const (
	replyInvalid replyKind = iota
	replyAction
	replyFinal
)

type reply struct {
	kind        replyKind
	thought     string
	action      string
	actionInput string
	finalText   string
}

// parseReply reads one model completion. A reply carrying both answer
// markers ahead of any Action is final; otherwise an Action line makes it a
// tool request; anything else is invalid.
func parseReply(text string) reply {
	text = strings.TrimSpace(text)
	actionAt := strings.Index(text, actionMarker)

	if answer.HasMarkers(text) {
		first := min(indexOrLen(text, answer.SQLQueryMarker), indexOrLen(text, answer.AnswerMarker))
		if actionAt < 0 || first < actionAt {
			return reply{kind: replyFinal, thought: thoughtBefore(text, first), finalText: text}
		}
	}
	if actionAt < 0 {
		return reply{kind: replyInvalid, thought: trimThought(text)}
	}

	rest := text[actionAt+len(actionMarker):]
	action, input := rest, ""
	if idx := strings.Index(rest, actionInputMarker); idx >= 0 {
		action = rest[:idx]
		input = rest[idx+len(actionInputMarker):]
	}
	// The stop sequence is a request, not a guarantee.
	if idx := strings.Index(input, observationMarker); idx >= 0 {
		input = input[:idx]
	}
	action = strings.TrimSpace(action)
	if idx := strings.IndexByte(action, '\n'); idx >= 0 {
		action = strings.TrimSpace(action[:idx])
	}
	if action == "" {
		return reply{kind: replyInvalid, thought: thoughtBefore(text, actionAt)}
	}
	return reply{
		kind:        replyAction,
		thought:     thoughtBefore(text, actionAt),
		action:      action,
		actionInput: unquote(strings.TrimSpace(input)),
	}
}

func thoughtBefore(text string, end int) string {
	return trimThought(text[:end])
}

func trimThought(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, thoughtMarker)
	return strings.TrimSpace(text)
}

func indexOrLen(text, marker string) int {
	if idx := strings.Index(text, marker); idx >= 0 {
		return idx
	}
	return len(text)
}

// unquote drops one pair of surrounding double quotes or backticks.
func unquote(text string) string {
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if first == last && (first == '"' || first == '`') && !strings.HasPrefix(text, "```") {
			return strings.TrimSpace(text[1 : len(text)-1])
		}
	}
	return text
}
