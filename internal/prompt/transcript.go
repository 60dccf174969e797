package prompt

import (
	"fmt"
	"strings"
)

// Step is one completed reasoning/acting/observing round.
type Step struct {
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	ActionInput string `json:"actionInput"`
	Observation string `json:"observation"`
}

const truncatedSuffix = " ... [truncated]"

func (s Step) render() string {
	var b strings.Builder
	if s.Thought != "" {
		b.WriteString("Thought: ")
		b.WriteString(s.Thought)
		b.WriteString("\n")
	}
	if s.Action != "" {
		b.WriteString("Action: ")
		b.WriteString(s.Action)
		b.WriteString("\n")
		b.WriteString("Action Input: ")
		b.WriteString(s.ActionInput)
		b.WriteString("\n")
	}
	b.WriteString("Observation: ")
	b.WriteString(s.Observation)
	b.WriteString("\n")
	return b.String()
}

// RenderTranscript renders steps oldest first within budget tokens. Older
// steps are replaced by a single omission line; the newest step is always
// kept, with its observation cut down if it alone exceeds the budget. A
// budget of zero or less disables the bound.
func RenderTranscript(steps []Step, budget int, counter TokenCounter) string {
	if len(steps) == 0 {
		return ""
	}
	rendered := make([]string, len(steps))
	for i, step := range steps {
		rendered[i] = step.render()
	}
	if budget <= 0 || counter == nil {
		return strings.Join(rendered, "")
	}

	last := len(steps) - 1
	lastText := rendered[last]
	if counter.Count(lastText) > budget {
		lastText = truncateObservation(steps[last], budget, counter)
	}
	used := counter.Count(lastText)

	first := last
	for first > 0 {
		cost := counter.Count(rendered[first-1])
		if used+cost > budget {
			break
		}
		used += cost
		first--
	}

	var b strings.Builder
	if first > 0 {
		fmt.Fprintf(&b, "[%d earlier steps omitted]\n", first)
	}
	for _, text := range rendered[first:last] {
		b.WriteString(text)
	}
	b.WriteString(lastText)
	return b.String()
}

func truncateObservation(step Step, budget int, counter TokenCounter) string {
	runes := []rune(step.Observation)
	keep := len(runes)
	for keep > 0 {
		step.Observation = string(runes[:keep]) + truncatedSuffix
		text := step.render()
		count := counter.Count(text)
		if count <= budget {
			return text
		}
		next := keep * budget / count
		if next >= keep {
			next = keep - 1
		}
		keep = next
	}
	step.Observation = truncatedSuffix
	return step.render()
}
