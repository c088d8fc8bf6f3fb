package types

// WorkItem is one unit of inbound work (a lead or a call) to distribute.
// It is transient: created by the caller and consumed once per assignment
// attempt.
type WorkItem struct {
	WorkItemID       string   `json:"workItemId"`
	Score            int      `json:"score,omitempty"`
	Source           string   `json:"source,omitempty"`
	Language         string   `json:"language,omitempty"`
	RequiredSkills   []string `json:"requiredSkills,omitempty"`
	PreferredAgentID string   `json:"preferredAgentId,omitempty"` // continuity hint
	Priority         int      `json:"priority,omitempty"`
}
