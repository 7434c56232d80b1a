package judge

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
	"tle_zone_judge/internal/common"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/platform/engine"
	"tle_zone_judge/internal/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPoller(eng Engine, timeout time.Duration, attempts int) *Poller {
	return NewPoller(eng, PollerConfig{
		Interval:    5 * time.Millisecond,
		MaxInterval: 5 * time.Millisecond,
		Multiplier:  1,
		Timeout:     timeout,
		MaxAttempts: attempts,
	}, logger.Discard())
}

func TestPollWaitsUntilFinalized(t *testing.T) {
	eng := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){
		withStatus(model.StatusIDInQueue),
		withStatus(model.StatusIDProcessing),
		withStatus(model.StatusIDAccepted),
	}}
	results, err := fastPoller(eng, time.Second, 10).Poll(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Token)
	assert.Equal(t, "b", results[1].Token)
	assert.Equal(t, 3, eng.calls())
}

func TestPollRealignsByToken(t *testing.T) {
	eng := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){
		func(tokens []string) ([]model.ExecutionResult, error) {
			return []model.ExecutionResult{
				{Token: "b", Status: model.ExecutionStatus{ID: 4}},
				{Token: "a", Status: model.ExecutionStatus{ID: 3}},
			}, nil
		},
	}}
	results, err := fastPoller(eng, time.Second, 5).Poll(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "a", results[0].Token)
	assert.Equal(t, 3, results[0].Status.ID)
	assert.Equal(t, 4, results[1].Status.ID)
}

func TestPollMalformedResultsAreNotRetried(t *testing.T) {
	eng := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){
		func(tokens []string) ([]model.ExecutionResult, error) {
			return []model.ExecutionResult{{Token: "a"}, {Token: "a"}}, nil
		},
	}}
	_, err := fastPoller(eng, time.Second, 5).Poll(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindEngineResult))
	assert.Equal(t, 1, eng.calls())
}

func TestPollTimesOutOnAttempts(t *testing.T) {
	eng := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){withStatus(model.StatusIDProcessing)}}
	_, err := fastPoller(eng, 5*time.Second, 4).Poll(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindPollTimeout))
	assert.ErrorIs(t, err, common.ErrGatewayTimeout)
	assert.Equal(t, 4, eng.calls())
}

func TestPollTimesOutOnDeadline(t *testing.T) {
	eng := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){withStatus(model.StatusIDInQueue)}}
	start := time.Now()
	_, err := fastPoller(eng, 50*time.Millisecond, 1000).Poll(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindPollTimeout))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollTransientErrorsConsumeAttempts(t *testing.T) {
	flaky := func([]string) ([]model.ExecutionResult, error) { return nil, errors.New("502 bad gateway") }
	eng := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){
		flaky, flaky, withStatus(model.StatusIDAccepted),
	}}
	results, err := fastPoller(eng, time.Second, 5).Poll(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	down := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){flaky}}
	_, err = fastPoller(down, time.Second, 3).Poll(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDispatch))
	assert.Equal(t, 3, down.calls())
}

func TestPollStopsOnRejectedRequest(t *testing.T) {
	rejected := func([]string) ([]model.ExecutionResult, error) {
		return nil, &engine.StatusError{Op: "get_batch", Code: http.StatusUnauthorized, Body: "invalid key"}
	}
	eng := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){rejected}}

	start := time.Now()
	_, err := fastPoller(eng, 5*time.Second, 50).Poll(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDispatch))
	assert.ErrorIs(t, err, common.ErrBadGateway)
	assert.Equal(t, 1, eng.calls())
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollRetriesThrottledRequest(t *testing.T) {
	throttled := func([]string) ([]model.ExecutionResult, error) {
		return nil, &engine.StatusError{Op: "get_batch", Code: http.StatusTooManyRequests}
	}
	eng := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){
		throttled, withStatus(model.StatusIDAccepted),
	}}
	results, err := fastPoller(eng, time.Second, 5).Poll(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 2, eng.calls())
}

func TestPollTaskCancel(t *testing.T) {
	eng := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){withStatus(model.StatusIDInQueue)}}
	task := fastPoller(eng, 10*time.Second, 100000).Start(context.Background(), []string{"a"})

	time.Sleep(20 * time.Millisecond)
	task.Cancel()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("poll task did not stop after Cancel")
	}
	_, err := task.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ErrorKind(0), KindOf(err))
}

func TestPollCallerCancellation(t *testing.T) {
	eng := &fakeEngine{polls: []func([]string) ([]model.ExecutionResult, error){withStatus(model.StatusIDInQueue)}}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := fastPoller(eng, 10*time.Second, 100000).Poll(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollNoTokens(t *testing.T) {
	_, err := fastPoller(&fakeEngine{}, time.Second, 1).Poll(context.Background(), nil)
	assert.True(t, IsKind(err, KindInput))
}
