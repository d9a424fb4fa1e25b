package model

// AnchorStatus is the result of one anchor run.
type AnchorStatus string

const (
	// AnchorPublished means a new commit was recorded and submitted.
	AnchorPublished AnchorStatus = "published"
	// AnchorDuplicate means the commit hash was already recorded; nothing was done.
	AnchorDuplicate AnchorStatus = "duplicate"
	// AnchorRejected means the commit could not be encoded into metadata slots.
	AnchorRejected AnchorStatus = "rejected"
	// AnchorFailed is only reported to metrics; a failed run returns an error.
	AnchorFailed AnchorStatus = "failed"
)

// VerifyStatus is the outcome of comparing onchain metadata with the local record.
type VerifyStatus string

const (
	VerifyMatch    VerifyStatus = "match"
	VerifyMismatch VerifyStatus = "mismatch"
	VerifyPending  VerifyStatus = "pending"
	VerifyError    VerifyStatus = "error"
	VerifySkipped  VerifyStatus = "skipped"
)
