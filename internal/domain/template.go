package domain

import "time"

// TemplateItem is one saved wager of a poy template.
type TemplateItem struct {
	BetType string  `json:"bet_type"`
	Number  string  `json:"number"`
	Amount  float64 `json:"amount"`
}

// Template is a named, reusable set of wagers saved by a member.
type Template struct {
	ID          string         `json:"id"`
	Owner       string         `json:"owner"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Items       []TemplateItem `json:"items"`
	CreatedAt   time.Time      `json:"created_at"`
}
