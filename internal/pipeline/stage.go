package pipeline

import "fmt"

// Stage is a step of an ingestion run
type Stage int

const (
	StageFetching Stage = iota
	StageDiffing
	StageEnriching
	StagePersisting
	StageTrimming
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageFetching:   "FETCHING",
	StageDiffing:    "DIFFING",
	StageEnriching:  "ENRICHING",
	StagePersisting: "PERSISTING",
	StageTrimming:   "TRIMMING",
	StageDone:       "DONE",
	StageFailed:     "FAILED",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// RunError is a fatal run failure, tagged with the stage it happened in
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
