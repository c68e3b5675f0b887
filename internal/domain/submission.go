package domain

import (
	"errors"
	"time"
)

var ErrSubmissionNotFound = errors.New("submission not found")

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionMined    SubmissionStatus = "mined"
	SubmissionReverted SubmissionStatus = "reverted"
	SubmissionTimeout  SubmissionStatus = "timeout"
	SubmissionFailed   SubmissionStatus = "failed"
)

// Submission is the journal record of one broadcast deposit_request transaction.
type Submission struct {
	TxHash         string
	ChainID        uint64
	Nonce          uint64
	Sender         string
	Contract       string
	BTCTxID        string
	BTCAddress     string
	ReceiveAddress string
	Amount         string
	Status         SubmissionStatus
	BlockNumber    uint64
	Reason         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
