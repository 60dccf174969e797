package prompt

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrCustomPromptRejected = errors.New("custom prompt is not accepted")

// CustomPromptPolicy decides what happens to caller supplied prompt text
// before it is spliced between the preamble and the directives.
type CustomPromptPolicy string

const (
	PolicyEscape CustomPromptPolicy = "escape"
	PolicyReject CustomPromptPolicy = "reject"
	PolicyIgnore CustomPromptPolicy = "ignore"
)

const MaxCustomPromptRunes = 2000

func ParsePolicy(raw string) (CustomPromptPolicy, error) {
	switch policy := CustomPromptPolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return PolicyEscape, nil
	case PolicyEscape, PolicyReject, PolicyIgnore:
		return policy, nil
	default:
		return "", fmt.Errorf("unsupported custom prompt policy %q", raw)
	}
}

// Apply returns the text to splice into the prompt. Blank input always yields
// an empty string; reject only fails on non-blank input.
func (p CustomPromptPolicy) Apply(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	switch p {
	case PolicyReject:
		return "", ErrCustomPromptRejected
	case PolicyIgnore:
		return "", nil
	default:
		return SanitizeCustomPrompt(raw), nil
	}
}

var injectionMarkers = []string{
	"```",
	"###",
	"---",
	"System:",
	"Assistant:",
	"Human:",
	"[INST]",
	"[/INST]",
	"<|im_start|>",
	"<|im_end|>",
	// The agent grammar itself.
	"Observation:",
	"Action Input:",
	"Action:",
	"SQL Query:",
	"Answer:",
}

// SanitizeCustomPrompt flattens text to one line, escapes markup, blanks role
// and grammar markers and caps the length.
func SanitizeCustomPrompt(raw string) string {
	s := strings.ReplaceAll(raw, "\x00", "")
	s = strings.ToValidUTF8(s, "")
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
	s = html.EscapeString(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	for _, marker := range injectionMarkers {
		s = strings.ReplaceAll(s, marker, strings.Repeat(" ", len(marker)))
	}
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > MaxCustomPromptRunes {
		s = strings.TrimSpace(string([]rune(s)[:MaxCustomPromptRunes]))
	}
	return s
}
