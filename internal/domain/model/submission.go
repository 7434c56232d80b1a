package model

import "time"

type SubmissionStatus string

const (
	StatusPending     SubmissionStatus = "Pending"
	StatusAccepted    SubmissionStatus = "Accepted"
	StatusWrongAnswer SubmissionStatus = "WrongAnswer"
	StatusError       SubmissionStatus = "Error"
	// StatusFailed means judging never produced a verdict (engine unreachable, poll timeout,
	// abandoned by a crashed process). The submission may be resubmitted.
	StatusFailed SubmissionStatus = "Failed"
)

// IsTerminal reports whether the status may no longer change.
func (s SubmissionStatus) IsTerminal() bool {
	return s != StatusPending
}

type Submission struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	ProblemID       string           `json:"problem_id"`
	Code            string           `json:"code"`
	Language        string           `json:"language"`
	Status          SubmissionStatus `json:"status"`
	Runtime         float64          `json:"runtime"` // seconds, summed over passing cases
	Memory          int64            `json:"memory"`  // KB, peak over passing cases
	ErrorMessage    *string          `json:"error_message,omitempty"`
	TestCasesPassed int              `json:"test_cases_passed"`
	TestCasesTotal  int              `json:"test_cases_total"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Verdict is the terminal outcome written onto a Pending submission exactly once.
type Verdict struct {
	Status          SubmissionStatus `json:"status"`
	Runtime         float64          `json:"runtime"`
	Memory          int64            `json:"memory"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	TestCasesPassed int              `json:"test_cases_passed"`
	TestCasesTotal  int              `json:"test_cases_total"`
}

// Apply copies the verdict onto the submission.
func (v Verdict) Apply(sub *Submission) {
	sub.Status = v.Status
	sub.Runtime = v.Runtime
	sub.Memory = v.Memory
	sub.ErrorMessage = v.ErrorMessage
	sub.TestCasesPassed = v.TestCasesPassed
	sub.TestCasesTotal = v.TestCasesTotal
}
