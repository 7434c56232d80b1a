package judge

import (
	"context"
	"fmt"
	"sync"
	"tle_zone_judge/internal/domain/model"
)

// fakeEngine hands out sequential tokens and answers polls from a script.
type fakeEngine struct {
	mu sync.Mutex

	submitErr error
	submitted [][]model.ExecutionJob
	tokens    []model.ExecutionToken

	// polls answers successive GetBatch calls; the last entry repeats.
	polls    []func(tokens []string) ([]model.ExecutionResult, error)
	getCalls int
}

func (f *fakeEngine) SubmitBatch(ctx context.Context, jobs []model.ExecutionJob) ([]model.ExecutionToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, jobs)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.tokens != nil {
		return f.tokens, nil
	}
	out := make([]model.ExecutionToken, len(jobs))
	for i := range jobs {
		out[i] = model.ExecutionToken{Token: fmt.Sprintf("tok-%d", i)}
	}
	return out, nil
}

func (f *fakeEngine) GetBatch(ctx context.Context, tokens []string) ([]model.ExecutionResult, error) {
	f.mu.Lock()
	idx := f.getCalls
	f.getCalls++
	if idx >= len(f.polls) {
		idx = len(f.polls) - 1
	}
	answer := f.polls[idx]
	f.mu.Unlock()
	return answer(tokens)
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func withStatus(id int) func([]string) ([]model.ExecutionResult, error) {
	return func(tokens []string) ([]model.ExecutionResult, error) {
		out := make([]model.ExecutionResult, len(tokens))
		for i, t := range tokens {
			out[i] = model.ExecutionResult{Token: t, Status: model.ExecutionStatus{ID: id}, Time: 0.01, Memory: 1024}
		}
		return out, nil
	}
}
