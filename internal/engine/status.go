package engine

// RepoStatus is the terminal outcome of one repository's crawl. Failures are
// contained per repository; a non-completed status never aborts the batch run.
type RepoStatus string

const (
	// StatusCompleted means every required branch was classified (or the
	// detail-mode early-exit target was reached).
	StatusCompleted RepoStatus = "Completed"

	// StatusConnectionError means a page fetch exhausted its transport
	// retries. Partial progress is checkpointed and eligible for resume.
	StatusConnectionError RepoStatus = "Connection Error"

	// StatusRepoNotFound means the repository does not exist or is not
	// visible with the current credential. Not retried, not resumed.
	StatusRepoNotFound RepoStatus = "Repo Not Found"

	// StatusError covers unexpected HTTP failures during enumeration.
	StatusError RepoStatus = "Error"

	// StatusSkipped means the checkpoint already marked the repository
	// complete before this run touched the network.
	StatusSkipped RepoStatus = "Skipped"
)

func (s RepoStatus) Completed() bool { return s == StatusCompleted || s == StatusSkipped }
