package models

// TranscriptEntry is one turn as returned by the history endpoint.
type TranscriptEntry struct {
	Sequence int    `json:"sequence"`
	Role     Role   `json:"role"`
	Content  string `json:"content"`
}

// NewTranscript numbers turns from 1 in append order.
func NewTranscript(turns []Turn) []TranscriptEntry {
	entries := make([]TranscriptEntry, len(turns))
	for i, t := range turns {
		entries[i] = TranscriptEntry{Sequence: i + 1, Role: t.Role, Content: t.Content}
	}
	return entries
}
