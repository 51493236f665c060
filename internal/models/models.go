package models

import "time"

const (
	SubmissionSuccess = "success"
	SubmissionFailed  = "failed"
)

// Submission is one ledger submission attempt, kept as an audit trail.
type Submission struct {
	ID         int64     `json:"id"         gorm:"primaryKey"`
	Symbol     string    `json:"symbol"     gorm:"index"`
	Price      float64   `json:"price"`
	MinorUnits int64     `json:"minorUnits"`
	Method     string    `json:"method"     gorm:"index"`
	TxHash     string    `json:"txHash,omitempty"`
	Status     string    `json:"status"     gorm:"index"`
	Error      string    `json:"error,omitempty"`
	CycleID    string    `json:"cycleId,omitempty" gorm:"index"`
	CreatedAt  time.Time `json:"createdAt"  gorm:"index"`
}
