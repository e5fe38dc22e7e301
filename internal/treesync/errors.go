package treesync

import "fmt"

// Step names a phase of a refresh.
type Step string

const (
	StepRetrieve Step = "retrieve"
	StepBuild    Step = "build"
	StepSave     Step = "save"
)

// Index returns the 1-based position of the step, as reported to a ProgressFunc.
func (s Step) Index() int {
	switch s {
	case StepRetrieve:
		return 1
	case StepBuild:
		return 2
	case StepSave:
		return 3
	default:
		return 0
	}
}

// TotalSteps is the number of steps of a refresh.
const TotalSteps = 3

// RefreshError reports a failed or cancelled refresh.
type RefreshError struct {
	OrgID string
	Step  Step
	Err   error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %s: %s: %v", e.OrgID, e.Step, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
