package agent

import "testing"

func TestParseReplyAction(t *testing.T) {
	got := parseReply("Thought: I should query.\nAction: execute-query\nAction Input: SELECT name FROM person WHERE name = 'Harrison Ford'\nObservation: made up")
	if got.kind != replyAction {
		t.Fatalf("kind = %v", got.kind)
	}
	if got.thought != "I should query." || got.action != "execute-query" {
		t.Fatalf("reply = %#v", got)
	}
	if got.actionInput != "SELECT name FROM person WHERE name = 'Harrison Ford'" {
		t.Fatalf("actionInput = %q", got.actionInput)
	}
}

func TestParseReplyActionWithoutInput(t *testing.T) {
	got := parseReply("Action: list-tables")
	if got.kind != replyAction || got.action != "list-tables" || got.actionInput != "" {
		t.Fatalf("reply = %#v", got)
	}
}

func TestParseReplyStripsQuotedInput(t *testing.T) {
	got := parseReply(`Action: search-proper-nouns` + "\n" + `Action Input: "radazul"`)
	if got.actionInput != "radazul" {
		t.Fatalf("actionInput = %q", got.actionInput)
	}
}

func TestParseReplyFinal(t *testing.T) {
	text := "I now know the final answer\nSQL Query: SELECT 1\nAnswer: 1"
	got := parseReply(text)
	if got.kind != replyFinal || got.finalText != text {
		t.Fatalf("reply = %#v", got)
	}
	if got.thought != "I now know the final answer" {
		t.Fatalf("thought = %q", got.thought)
	}
}

func TestParseReplyActionBeforeMarkersIsAction(t *testing.T) {
	got := parseReply("Action: check-query\nAction Input: SQL Query: SELECT 1 Answer: x")
	if got.kind != replyAction || got.action != "check-query" {
		t.Fatalf("reply = %#v", got)
	}
}

func TestParseReplyInvalid(t *testing.T) {
	for _, text := range []string{"", "Answer: only one marker", "just chatting", "Action:   \nAction Input: x"} {
		if got := parseReply(text); got.kind != replyInvalid {
			t.Fatalf("parseReply(%q) kind = %v", text, got.kind)
		}
	}
}
