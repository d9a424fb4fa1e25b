package store

import "time"

// Commit is a row of the commits table.
type Commit struct {
	ID              uint      `gorm:"column:id;primaryKey"`
	Created         time.Time `gorm:"column:created;autoCreateTime"`
	OnchainID       uint64    `gorm:"column:onchain_id"`
	ProjectName     string    `gorm:"column:project_name"`
	LocalCommitHash string    `gorm:"column:local_commit_hash"`
	CommitMessage   string    `gorm:"column:commit_message"`
	CommitTimestamp string    `gorm:"column:commit_timestamp"`
}

func (Commit) TableName() string {
	return "commits"
}

// Transaction is a row of the transactions table. TransactionID references commits.id.
type Transaction struct {
	ID              uint      `gorm:"column:id;primaryKey"`
	Created         time.Time `gorm:"column:created;autoCreateTime"`
	TransactionID   uint      `gorm:"column:transaction_id"`
	TransactionHash string    `gorm:"column:transaction_hash"`
}

func (Transaction) TableName() string {
	return "transactions"
}
