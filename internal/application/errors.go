package application

import (
	"errors"
	"fmt"
)

// Stage names one step of the submission pipeline.
type Stage string

const (
	StageConnect   Stage = "connect"
	StageClaim     Stage = "claim"
	StageNonce     Stage = "nonce"
	StageBuild     Stage = "build"
	StageSign      Stage = "sign"
	StageBroadcast Stage = "broadcast"
	StageWait      Stage = "wait"
)

var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyClaimed    = errors.New("btc deposit already claimed")
	ErrReceiptTimeout    = errors.New("timed out waiting for receipt")
	ErrExecutionReverted = errors.New("transaction reverted")
)

// StageError records which pipeline stage failed. Every error returned by
// Submitter.Submit is a *StageError.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage carried by err, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
