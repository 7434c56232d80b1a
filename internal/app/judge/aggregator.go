package judge

import (
	"fmt"
	"strings"
	"tle_zone_judge/internal/domain/model"
)

// FailurePolicy decides which failing case names the verdict when several fail.
type FailurePolicy int

const (
	LastFailureWins FailurePolicy = iota
	FirstFailureWins
)

func (p FailurePolicy) String() string {
	if p == FirstFailureWins {
		return "first"
	}
	return "last"
}

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last":
		return LastFailureWins, nil
	case "first":
		return FirstFailureWins, nil
	}
	return LastFailureWins, fmt.Errorf("unknown failure policy %q", s)
}

const (
	defaultErrorMessage       = "Error"
	defaultWrongAnswerMessage = "Wrong Answer"
)

type Aggregator struct {
	Policy FailurePolicy
}

// Aggregate reduces ordered results to one verdict. Passing cases add their
// time to the runtime and raise the peak memory; failing cases do not.
func (a Aggregator) Aggregate(results []model.ExecutionResult) model.Verdict {
	v := model.Verdict{
		Status:         model.StatusAccepted,
		TestCasesTotal: len(results),
	}

	failed := false
	for _, r := range results {
		switch r.Status.ID {
		case model.StatusIDAccepted:
			v.TestCasesPassed++
			v.Runtime += float64(r.Time)
			if r.Memory > v.Memory {
				v.Memory = r.Memory
			}
			continue
		}

		if failed && a.Policy == FirstFailureWins {
			continue
		}
		failed = true

		var msg string
		if r.Status.ID == model.StatusIDError {
			v.Status = model.StatusError
			msg = firstNonEmpty(r.Stderr, r.CompileOutput, r.Status.Description, defaultErrorMessage)
		} else {
			v.Status = model.StatusWrongAnswer
			msg = firstNonEmpty(r.Stderr, r.CompileOutput, r.Status.Description, defaultWrongAnswerMessage)
		}
		v.ErrorMessage = &msg
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
