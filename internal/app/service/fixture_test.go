package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
	"tle_zone_judge/internal/app/judge"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/domain/repository/memory"
	"tle_zone_judge/internal/platform/logger"

	"github.com/stretchr/testify/require"
)

// scriptedEngine remembers each job by token and answers polls through outcome.
type scriptedEngine struct {
	mu        sync.Mutex
	jobs      map[string]model.ExecutionJob
	seq       int
	submits   int
	submitErr error
	// neverFinish keeps every token In Queue.
	neverFinish bool
	outcome     func(job model.ExecutionJob) model.ExecutionResult
}

func newScriptedEngine() *scriptedEngine {
	return &scriptedEngine{jobs: map[string]model.ExecutionJob{}, outcome: passAll}
}

func passAll(job model.ExecutionJob) model.ExecutionResult {
	return model.ExecutionResult{
		Status: model.ExecutionStatus{ID: model.StatusIDAccepted, Description: "Accepted"},
		Stdout: job.ExpectedOutput,
		Time:   0.01,
		Memory: 512,
	}
}

func (e *scriptedEngine) SubmitBatch(ctx context.Context, jobs []model.ExecutionJob) ([]model.ExecutionToken, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submits++
	if e.submitErr != nil {
		return nil, e.submitErr
	}
	out := make([]model.ExecutionToken, len(jobs))
	for i, j := range jobs {
		e.seq++
		tok := fmt.Sprintf("t%d", e.seq)
		e.jobs[tok] = j
		out[i] = model.ExecutionToken{Token: tok}
	}
	return out, nil
}

func (e *scriptedEngine) GetBatch(ctx context.Context, tokens []string) ([]model.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ExecutionResult, len(tokens))
	for i, tok := range tokens {
		if e.neverFinish {
			out[i] = model.ExecutionResult{Token: tok, Status: model.ExecutionStatus{ID: model.StatusIDInQueue}}
			continue
		}
		r := e.outcome(e.jobs[tok])
		r.Token = tok
		out[i] = r
	}
	return out, nil
}

func (e *scriptedEngine) submitCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submits
}

func (e *scriptedEngine) set(fn func(e *scriptedEngine)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e)
}

type fixture struct {
	engine   *scriptedEngine
	problems *memory.ProblemRepository
	subs     *memory.SubmissionRepository
	users    *memory.UserRepository
	runner   *judge.Runner
	svc      *SubmissionService
}

func newFixture(t *testing.T, pollCfg judge.PollerConfig) *fixture {
	t.Helper()
	if pollCfg.Interval == 0 {
		pollCfg = judge.PollerConfig{Interval: time.Millisecond, MaxInterval: time.Millisecond, Timeout: time.Second, MaxAttempts: 50}
	}
	f := &fixture{
		engine:   newScriptedEngine(),
		problems: memory.NewProblemRepository(),
		subs:     memory.NewSubmissionRepository(),
		users:    memory.NewUserRepository(),
	}
	f.runner = judge.NewRunner(f.engine, pollCfg, logger.Discard())
	f.svc = NewSubmissionService(f.subs, f.problems, f.users, f.runner, judge.Aggregator{}, logger.Discard())
	return f
}

// seedProblem stores a problem with three visible and two hidden cases.
func (f *fixture) seedProblem(t *testing.T, id string) *model.Problem {
	t.Helper()
	p := &model.Problem{
		ID:          id,
		Title:       "Sum " + id,
		Slug:        "sum-" + id,
		Description: "Add two numbers",
		Difficulty:  model.DifficultyEasy,
		VisibleTestCases: []model.VisibleTestCase{
			{Input: "1 2", Output: "3"},
			{Input: "2 2", Output: "4"},
			{Input: "5 5", Output: "10"},
		},
		HiddenTestCases: []model.TestCase{
			{Input: "10 20", Output: "30"},
			{Input: "-1 1", Output: "0"},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.problems.CreateProblem(context.Background(), p))
	return p
}
