package judge

import (
	"context"
	"errors"
	"fmt"
	"tle_zone_judge/internal/domain/model"
)

const opDispatch = "dispatch"

type Dispatcher struct {
	engine Engine
}

func NewDispatcher(engine Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Dispatch submits one job per test case as a single batch and returns the
// tokens index-aligned with cases. The batch succeeds or fails as a whole.
func (d *Dispatcher) Dispatch(ctx context.Context, cases []model.TestCase, code string, lang model.Language) ([]string, error) {
	if len(cases) == 0 {
		return nil, inputErrorf(opDispatch, "no test cases to run")
	}
	if code == "" {
		return nil, inputErrorf(opDispatch, "source code is required")
	}
	if lang.ID == 0 {
		return nil, inputErrorf(opDispatch, "language is not resolved")
	}

	jobs := make([]model.ExecutionJob, len(cases))
	for i, tc := range cases {
		jobs[i] = model.ExecutionJob{
			SourceCode:     code,
			LanguageID:     lang.ID,
			Stdin:          tc.Input,
			ExpectedOutput: tc.Output,
		}
	}

	resp, err := d.engine.SubmitBatch(ctx, jobs)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, newError(KindDispatch, opDispatch, err)
	}
	if len(resp) != len(jobs) {
		return nil, newError(KindEngineResult, opDispatch,
			fmt.Errorf("engine returned %d tokens for %d jobs", len(resp), len(jobs)))
	}

	tokens := make([]string, len(resp))
	for i, t := range resp {
		if t.Token == "" {
			reason := "missing token"
			if len(t.Error) > 0 {
				reason = string(t.Error)
			}
			return nil, newError(KindDispatch, opDispatch, fmt.Errorf("job %d rejected: %s", i, reason))
		}
		tokens[i] = t.Token
	}
	return tokens, nil
}
