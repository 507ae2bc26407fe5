package models

import "strings"

// SanitizeHistory adapts a transcript to the shape chat-completion APIs
// accept, without reordering it:
//   - turns with empty content are dropped (a component-only reply has no chat text)
//   - leading assistant turns are skipped, the wire sequence starts with a user turn
//   - consecutive turns of the same role are merged, joined by a blank line
//
// The stored transcript is never modified; this runs on the copy a provider sends.
func SanitizeHistory(turns []Turn) []Turn {
	result := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if len(result) == 0 && t.Role != RoleUser {
			continue
		}
		if n := len(result); n > 0 && result[n-1].Role == t.Role {
			result[n-1].Content += "\n\n" + t.Content
			continue
		}
		result = append(result, t)
	}
	return result
}

// DetectHistoryIssues lists the problems SanitizeHistory would paper over.
// Returns an empty slice for a clean, alternating transcript.
func DetectHistoryIssues(turns []Turn) []string {
	issues := []string{}
	if len(turns) == 0 {
		return issues
	}
	if turns[0].Role != RoleUser {
		issues = append(issues, "history starts with an assistant turn")
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			issues = append(issues, "turn with unknown role "+string(t.Role))
		}
		if strings.TrimSpace(t.Content) == "" {
			issues = append(issues, "turn with empty content")
		}
		if i > 0 && turns[i-1].Role == t.Role {
			issues = append(issues, "two consecutive "+string(t.Role)+" turns")
		}
	}
	return issues
}
