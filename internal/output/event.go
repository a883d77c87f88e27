package output

import "github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"

// Event is a crawl lifecycle record.
//
// In NDJSON mode, sinks emit Events (one JSON object per line), including:
// - run.started
// - repo.started
// - repo.skipped
// - page.fetched
// - branch.stale
// - repo.finished
// - governor.wait
// - run.finished
type Event struct {
	Type     string                  `json:"type"`
	Repo     string                  `json:"repo,omitempty"`
	Page     int                     `json:"page,omitempty"`
	Branches int                     `json:"branches,omitempty"`
	Status   string                  `json:"status,omitempty"`
	Record   *checkpoint.StaleBranch `json:"record,omitempty"`
	Message  string                  `json:"message,omitempty"`
	Repos    int                     `json:"repos,omitempty"`
	Stale    int                     `json:"stale,omitempty"`
}

const (
	EventRunStarted   = "run.started"
	EventRepoStarted  = "repo.started"
	EventRepoSkipped  = "repo.skipped"
	EventPageFetched  = "page.fetched"
	EventBranchStale  = "branch.stale"
	EventRepoFinished = "repo.finished"
	EventGovernorWait = "governor.wait"
	EventRunFinished  = "run.finished"
	EventMessage      = "message"
)
