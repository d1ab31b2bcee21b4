package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDataRetrieval means historical prices could not be fetched, or came back empty or partial.
	ErrDataRetrieval = errors.New("data retrieval failed")

	// ErrInsufficientData means fewer than 2 usable prices remain for an instrument.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidParameter means a simulation or analytics input violates its constraint.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDegenerateInput means a statistic is undefined for the input, e.g. zero variance.
	ErrDegenerateInput = errors.New("degenerate input")
)

// pipeline stages, used to tell the user where a run failed
const (
	StageRetrieval  = "retrieval"
	StageEstimation = "estimation"
	StageSimulation = "simulation"
	StageAnalytics  = "analytics"
)

// StageError ties a failure to the stage and instrument it happened in.
type StageError struct {
	Stage  string
	Ticker string
	Err    error
}

func (e *StageError) Error() string {
	if e.Ticker == "" {
		return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s stage failed for %s: %v", e.Stage, e.Ticker, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage, ticker string, err error) error {
	return &StageError{Stage: stage, Ticker: ticker, Err: err}
}
