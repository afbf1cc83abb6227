// Package history persists conversation transcripts.
package history

import "strings"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role  Role     `json:"role"`
	Parts []string `json:"parts"`
}

// Text joins the turn's parts.
func (t Turn) Text() string {
	return strings.Join(t.Parts, "")
}

// Transcript is the ordered list of turns of one conversation.
type Transcript []Turn

// Append returns the transcript with a user turn and an assistant turn added.
func (t Transcript) Append(prompt, reply string) Transcript {
	out := make(Transcript, 0, len(t)+2)
	out = append(out, t...)
	return append(out,
		Turn{Role: RoleUser, Parts: []string{prompt}},
		Turn{Role: RoleAssistant, Parts: []string{reply}},
	)
}

// normalizeRole maps provider role names onto Role. Transcripts written by
// the Gemini SDK store "model" for assistant turns.
func normalizeRole(r Role) Role {
	switch strings.ToLower(strings.TrimSpace(string(r))) {
	case "model", "assistant":
		return RoleAssistant
	default:
		return RoleUser
	}
}
