package model

// Commit is the latest commit of a local repository as read from git.
type Commit struct {
	Hash      string `json:"hash"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"` // author date, git's default format
}

// CommitRecord is a commit as persisted in the local store, joined with the
// hash of the transaction that anchored it (empty when not yet submitted).
type CommitRecord struct {
	ID              uint   `json:"id"`
	OnchainID       uint64 `json:"onchain_id"`
	ProjectName     string `json:"project_name"`
	LocalCommitHash string `json:"local_commit_hash"`
	CommitMessage   string `json:"commit_message"`
	CommitTimestamp string `json:"commit_timestamp"`
	TransactionHash string `json:"transaction_hash,omitempty"`
}
