package checkpoint

import "time"

// Budget is the budget-consumption counters carried in a checkpoint
// (spec §4.13).
type Budget struct {
	Pages int `json:"pages"`
	JS    int `json:"js"`
	API   int `json:"api"`
}

// PendingItem is the serializable shape of one queued Work Item — a
// trimmed mirror of scheduler.WorkItem that keeps the checkpoint file
// decoupled from the Scheduler's internal heap bookkeeping (spec §4.13:
// "pending (queue items with url, meta, score)").
type PendingItem struct {
	URL    string  `json:"url"`
	Depth  int     `json:"depth"`
	Reason string  `json:"reason"`
	Parent string  `json:"parent"`
	Score  float64 `json:"score"`
}

// Data is the full persisted checkpoint record (spec §4.13).
type Data struct {
	LastURL   string        `json:"last_url"`
	Pending   []PendingItem `json:"pending"`
	Budget    Budget        `json:"budget"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
