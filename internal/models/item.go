package models

import "time"

// Status tracks an item through its lifecycle. Only the store mutates it.
type Status string

const (
	StatusNew        Status = "new"
	StatusScored     Status = "scored"
	StatusEligible   Status = "eligible"
	StatusReplied    Status = "replied"
	StatusSummarized Status = "summarized"
	StatusRejected   Status = "rejected"
)

// Metrics holds the public engagement counters of a tweet.
type Metrics struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
}

// RawItem is what the content source yields before scoring. Collaborator
// boundary type: the scraper never hands anything else into the core.
type RawItem struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Metrics   Metrics   `json:"metrics"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is a scored tweet owned by the engagement store. Score is set once at
// ingestion and immutable afterwards; Status is the only field that changes.
type Item struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Author     string    `json:"author"`
	Metrics    Metrics   `json:"metrics"`
	ObservedAt time.Time `json:"observed_at"`
	Score      float64   `json:"score"`
	Status     Status    `json:"status"`
	Topics     []string  `json:"topics,omitempty"`
	Tokens     []string  `json:"tokens,omitempty"`
}

// Action distinguishes the two side-effecting operations we perform.
type Action string

const (
	ActionReply Action = "reply"
	ActionPost  Action = "post"
)

// EngagementRecord is the durable result of a performed action. Immutable
// once created, except for a single metrics refresh applied later.
type EngagementRecord struct {
	ItemID           string    `json:"item_id"`
	Action           Action    `json:"action"`
	GeneratedText    string    `json:"generated_text"`
	PostedAt         time.Time `json:"posted_at"`
	PostedID         string    `json:"posted_id,omitempty"`
	ResultingMetrics *Metrics  `json:"resulting_metrics,omitempty"`
	RefreshDue       time.Time `json:"refresh_due,omitempty"`
	Refreshed        bool      `json:"refreshed"`
}

// ActionResult is the typed outcome of a reply/post attempt.
type ActionResult struct {
	Success  bool   `json:"success"`
	PostedID string `json:"posted_id,omitempty"`
}
