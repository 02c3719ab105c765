package models

import "time"

// SavedProject is one saved full design: the generated image artifact plus
// the recommendations and vision text active at save time. Projects are
// never auto-merged; every save action appends a new one.
type SavedProject struct {
	ID              string           `json:"id"`
	Image           string           `json:"image,omitempty"` // base64-encoded artifact, may be empty
	Recommendations []Recommendation `json:"recommendations"`
	Date            string           `json:"date"` // RFC3339
	Vision          string           `json:"vision"`
}

// NewProjectDate formats the save timestamp the way stored projects expect.
func NewProjectDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn in the styling conversation. The history is
// append-only; messages are never mutated after insertion.
type ChatMessage struct {
	ID              string           `json:"id"`
	Role            string           `json:"role"`
	Text            string           `json:"text"`
	HasImage        bool             `json:"hasImage"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}
