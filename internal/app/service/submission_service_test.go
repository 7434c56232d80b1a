package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	"tle_zone_judge/internal/app/judge"
	"tle_zone_judge/internal/common"
	"tle_zone_judge/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = "user-1"

func TestSubmitAccepted(t *testing.T) {
	f := newFixture(t, judge.PollerConfig{})
	p := f.seedProblem(t, "p1")

	sub, err := f.svc.Submit(context.Background(), userID, p.ID, SubmitRequest{Code: "int main(){}", Language: "C++"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, sub.Status)
	assert.Equal(t, 2, sub.TestCasesPassed)
	assert.Equal(t, 2, sub.TestCasesTotal)
	assert.Equal(t, model.LanguageCPP, sub.Language)
	assert.InDelta(t, 0.02, sub.Runtime, 1e-9)
	assert.Equal(t, int64(512), sub.Memory)
	assert.Nil(t, sub.ErrorMessage)

	stored, err := f.subs.GetSubmissionByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, stored.Status)

	solved, err := f.users.ListSolvedProblemIDs(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, solved)
}

func TestSubmitJudgesHiddenCasesOnly(t *testing.T) {
	f := newFixture(t, judge.PollerConfig{})
	p := f.seedProblem(t, "p1")

	var mu sync.Mutex
	var stdins []string
	f.engine.set(func(e *scriptedEngine) {
		e.outcome = func(job model.ExecutionJob) model.ExecutionResult {
			mu.Lock()
			stdins = append(stdins, job.Stdin)
			mu.Unlock()
			return passAll(job)
		}
	})

	_, err := f.svc.Submit(context.Background(), userID, p.ID, SubmitRequest{Code: "x", Language: "java"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10 20", "-1 1"}, stdins)
}

func TestSubmitErrorOnSecondHiddenCase(t *testing.T) {
	f := newFixture(t, judge.PollerConfig{})
	p := f.seedProblem(t, "p1")
	f.engine.set(func(e *scriptedEngine) {
		e.outcome = func(job model.ExecutionJob) model.ExecutionResult {
			if job.Stdin == "-1 1" {
				return model.ExecutionResult{
					Status:        model.ExecutionStatus{ID: model.StatusIDError, Description: "Runtime Error"},
					Stderr:        "IndexOutOfBounds",
					CompileOutput: "",
				}
			}
			return passAll(job)
		}
	})

	sub, err := f.svc.Submit(context.Background(), userID, p.ID, SubmitRequest{Code: "x", Language: "java"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, sub.Status)
	assert.Equal(t, 1, sub.TestCasesPassed)
	assert.Equal(t, 2, sub.TestCasesTotal)
	require.NotNil(t, sub.ErrorMessage)
	assert.Equal(t, "IndexOutOfBounds", *sub.ErrorMessage)

	solved, err := f.users.ListSolvedProblemIDs(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, solved)
}

func TestRunReturnsRawVisibleResults(t *testing.T) {
	f := newFixture(t, judge.PollerConfig{})
	p := f.seedProblem(t, "p1")
	f.engine.set(func(e *scriptedEngine) {
		e.outcome = func(job model.ExecutionJob) model.ExecutionResult {
			if job.Stdin == "2 2" {
				return model.ExecutionResult{Status: model.ExecutionStatus{ID: 5, Description: "Wrong Answer"}, Stdout: "5"}
			}
			return passAll(job)
		}
	})

	res, err := f.svc.Run(context.Background(), userID, p.ID, RunRequest{Code: "x", Language: "js"})
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "1 2", res.Results[0].Input)
	assert.Equal(t, model.StatusIDAccepted, res.Results[0].Status.ID)
	assert.Equal(t, "Wrong Answer", res.Results[1].Status.Description)
	assert.Equal(t, "5", res.Results[1].Stdout)
	assert.Equal(t, "4", res.Results[1].ExpectedOutput)
	assert.Equal(t, model.StatusIDAccepted, res.Results[2].Status.ID)

	subs, err := f.subs.ListSubmissionsForUserProblem(context.Background(), userID, p.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
	solved, _ := f.users.ListSolvedProblemIDs(context.Background(), userID)
	assert.Empty(t, solved)
}

func TestConcurrentAcceptancesOfDistinctProblems(t *testing.T) {
	f := newFixture(t, judge.PollerConfig{})
	const n = 12
	for i := 0; i < n; i++ {
		f.seedProblem(t, fmt.Sprintf("p%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), userID, fmt.Sprintf("p%d", i), SubmitRequest{Code: "x", Language: "cpp"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	solved, err := f.users.ListSolvedProblemIDs(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, solved, n)
	assert.ElementsMatch(t, uniq(solved), solved)

	// Solving an already-solved problem again is a no-op on the set.
	_, err = f.svc.Submit(context.Background(), userID, "p0", SubmitRequest{Code: "y", Language: "cpp"})
	require.NoError(t, err)
	solved, _ = f.users.ListSolvedProblemIDs(context.Background(), userID)
	assert.Len(t, solved, n)
}

func uniq(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func TestSubmitRejectsBadInputBeforeEngine(t *testing.T) {
	f := newFixture(t, judge.PollerConfig{})
	p := f.seedProblem(t, "p1")
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, userID, p.ID, SubmitRequest{Code: "x", Language: "python"})
	assert.True(t, judge.IsKind(err, judge.KindInput))
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = f.svc.Submit(ctx, userID, p.ID, SubmitRequest{Code: "  ", Language: "cpp"})
	assert.True(t, judge.IsKind(err, judge.KindInput))

	_, err = f.svc.Submit(ctx, userID, "", SubmitRequest{Code: "x", Language: "cpp"})
	assert.True(t, judge.IsKind(err, judge.KindInput))

	_, err = f.svc.Run(ctx, userID, "missing", RunRequest{Code: "x", Language: "cpp"})
	assert.True(t, judge.IsKind(err, judge.KindNotFound))
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.Equal(t, 0, f.engine.submitCount())
	subs, _ := f.subs.ListSubmissionsForUserProblem(ctx, userID, p.ID)
	assert.Empty(t, subs)
}

func TestDispatchFailureMarksFailedAndResubmit(t *testing.T) {
	f := newFixture(t, judge.PollerConfig{})
	p := f.seedProblem(t, "p1")
	ctx := context.Background()
	f.engine.set(func(e *scriptedEngine) { e.submitErr = errors.New("engine unreachable") })

	_, err := f.svc.Submit(ctx, userID, p.ID, SubmitRequest{Code: "x", Language: "cpp"})
	require.Error(t, err)
	assert.True(t, judge.IsKind(err, judge.KindDispatch))
	assert.ErrorIs(t, err, common.ErrBadGateway)

	subs, err := f.subs.ListSubmissionsForUserProblem(ctx, userID, p.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	failed := subs[0]
	assert.Equal(t, model.StatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "engine unreachable")

	f.engine.set(func(e *scriptedEngine) { e.submitErr = nil })
	retried, err := f.svc.Resubmit(ctx, userID, failed.ID)
	require.NoError(t, err)
	assert.NotEqual(t, failed.ID, retried.ID)
	assert.Equal(t, model.StatusAccepted, retried.Status)

	again, err := f.subs.GetSubmissionByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, again.Status)

	_, err = f.svc.Resubmit(ctx, userID, retried.ID)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestPollTimeoutMarksFailed(t *testing.T) {
	f := newFixture(t, judge.PollerConfig{Interval: time.Millisecond, Timeout: 40 * time.Millisecond, MaxAttempts: 1000})
	p := f.seedProblem(t, "p1")
	f.engine.set(func(e *scriptedEngine) { e.neverFinish = true })

	start := time.Now()
	_, err := f.svc.Submit(context.Background(), userID, p.ID, SubmitRequest{Code: "x", Language: "cpp"})
	require.Error(t, err)
	assert.True(t, judge.IsKind(err, judge.KindPollTimeout))
	assert.ErrorIs(t, err, common.ErrGatewayTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	subs, _ := f.subs.ListSubmissionsForUserProblem(context.Background(), userID, p.ID)
	require.Len(t, subs, 1)
	assert.Equal(t, model.StatusFailed, subs[0].Status)
}

func TestCallerCancellationDoesNotLeavePending(t *testing.T) {
	f := newFixture(t, judge.PollerConfig{Interval: time.Millisecond, Timeout: 10 * time.Second, MaxAttempts: 100000})
	p := f.seedProblem(t, "p1")
	f.engine.set(func(e *scriptedEngine) { e.neverFinish = true })

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := f.svc.Submit(ctx, userID, p.ID, SubmitRequest{Code: "x", Language: "cpp"})
	assert.ErrorIs(t, err, context.Canceled)

	subs, _ := f.subs.ListSubmissionsForUserProblem(context.Background(), userID, p.ID)
	require.Len(t, subs, 1)
	assert.Equal(t, model.StatusFailed, subs[0].Status)
}

func TestGetSubmissionIsOwnerScoped(t *testing.T) {
	f := newFixture(t, judge.PollerConfig{})
	p := f.seedProblem(t, "p1")
	sub, err := f.svc.Submit(context.Background(), userID, p.ID, SubmitRequest{Code: "x", Language: "cpp"})
	require.NoError(t, err)

	got, err := f.svc.GetSubmission(context.Background(), userID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)

	_, err = f.svc.GetSubmission(context.Background(), "someone-else", sub.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	list, err := f.svc.ListSubmissionsForProblem(context.Background(), userID, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
