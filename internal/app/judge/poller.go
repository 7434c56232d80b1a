package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/platform/config"
	"tle_zone_judge/internal/platform/logger"
	"tle_zone_judge/internal/platform/metrics"

	"github.com/cenkalti/backoff/v4"
)

const opPoll = "poll"

var errNotFinalized = errors.New("results not finalized yet")

// temporary is implemented by engine errors that know whether a retry can help.
type temporary interface {
	Temporary() bool
}

// PollerConfig bounds the wait for results. Timeout and MaxAttempts both
// apply; whichever is hit first ends polling with a PollTimeoutError.
type PollerConfig struct {
	Interval    time.Duration
	MaxInterval time.Duration
	// Multiplier of 1 keeps the interval fixed.
	Multiplier float64
	// Jitter is the randomization factor applied to each wait, in [0, 1).
	Jitter      float64
	Timeout     time.Duration
	MaxAttempts int
}

func PollerConfigFrom(cfg config.JudgeConfig) PollerConfig {
	return PollerConfig{
		Interval:    cfg.PollInterval,
		MaxInterval: cfg.PollMaxInterval,
		Multiplier:  cfg.PollMultiplier,
		Jitter:      cfg.PollJitter,
		Timeout:     cfg.PollTimeout,
		MaxAttempts: cfg.PollMaxAttempts,
	}
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.MaxInterval < c.Interval {
		c.MaxInterval = c.Interval
	}
	if c.Multiplier < 1 {
		c.Multiplier = 1
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 40
	}
	return c
}

type Poller struct {
	engine Engine
	cfg    PollerConfig
	log    *slog.Logger
}

func NewPoller(engine Engine, cfg PollerConfig, log *slog.Logger) *Poller {
	return &Poller{engine: engine, cfg: cfg.withDefaults(), log: log}
}

// PollTask is a polling loop running in the background.
type PollTask struct {
	done    chan struct{}
	cancel  context.CancelFunc
	results []model.ExecutionResult
	err     error
}

// Done is closed once the task has a result.
func (t *PollTask) Done() <-chan struct{} { return t.done }

// Cancel stops polling; Wait then returns a context.Canceled error.
func (t *PollTask) Cancel() { t.cancel() }

// Wait blocks until the task finishes.
func (t *PollTask) Wait() ([]model.ExecutionResult, error) {
	<-t.done
	return t.results, t.err
}

// Start launches polling for tokens. Cancelling ctx or calling Cancel stops it.
func (p *Poller) Start(ctx context.Context, tokens []string) *PollTask {
	ctx, cancel := context.WithCancel(ctx)
	t := &PollTask{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(t.done)
		defer cancel()
		t.results, t.err = p.poll(ctx, tokens)
	}()
	return t
}

// Poll waits until every token has finalized and returns the results
// index-aligned with tokens.
func (p *Poller) Poll(ctx context.Context, tokens []string) ([]model.ExecutionResult, error) {
	return p.Start(ctx, tokens).Wait()
}

func (p *Poller) poll(ctx context.Context, tokens []string) ([]model.ExecutionResult, error) {
	if len(tokens) == 0 {
		return nil, inputErrorf(opPoll, "no tokens to poll")
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.Interval
	b.MaxInterval = p.cfg.MaxInterval
	b.Multiplier = p.cfg.Multiplier
	b.RandomizationFactor = p.cfg.Jitter
	b.MaxElapsedTime = p.cfg.Timeout
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.cfg.MaxAttempts-1)), pollCtx)

	var (
		results  []model.ExecutionResult
		attempts int
	)
	operation := func() error {
		attempts++
		batch, err := p.engine.GetBatch(pollCtx, tokens)
		if err != nil {
			var t temporary
			if errors.As(err, &t) && !t.Temporary() {
				return backoff.Permanent(newError(KindDispatch, opPoll, err))
			}
			return err
		}
		aligned, err := alignResults(tokens, batch)
		if err != nil {
			return backoff.Permanent(err)
		}
		for _, r := range aligned {
			if !r.Status.Finished() {
				return errNotFinalized
			}
		}
		results = aligned
		return nil
	}
	notify := func(err error, next time.Duration) {
		if errors.Is(err, errNotFinalized) {
			p.log.Debug("Results not ready", "attempt", attempts, "tokens", len(tokens), "next", next)
			return
		}
		p.log.Warn("Engine poll failed, retrying", "attempt", attempts, "next", next, logger.Err(err))
	}

	err := backoff.RetryNotify(operation, policy, notify)
	metrics.PollAttempts.Observe(float64(attempts))
	if err == nil {
		return results, nil
	}

	var jerr *Error
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return nil, fmt.Errorf("poll cancelled after %d attempts: %w", attempts, ctx.Err())
	case errors.As(err, &jerr):
		return nil, jerr
	case ctx.Err() != nil, pollCtx.Err() != nil, errors.Is(err, errNotFinalized):
		return nil, newError(KindPollTimeout, opPoll,
			fmt.Errorf("%d tokens not finalized after %d attempts (limit %s)", len(tokens), attempts, p.cfg.Timeout))
	default:
		return nil, newError(KindDispatch, opPoll, err)
	}
}

// alignResults orders results to match tokens. Results without a token
// are taken positionally.
func alignResults(tokens []string, batch []model.ExecutionResult) ([]model.ExecutionResult, error) {
	if len(batch) != len(tokens) {
		return nil, newError(KindEngineResult, opPoll,
			fmt.Errorf("engine returned %d results for %d tokens", len(batch), len(tokens)))
	}

	index := make(map[string]int, len(tokens))
	for i, t := range tokens {
		index[t] = i
	}

	aligned := make([]model.ExecutionResult, len(tokens))
	filled := make([]bool, len(tokens))
	for i, r := range batch {
		pos := i
		if r.Token != "" {
			p, ok := index[r.Token]
			if !ok {
				return nil, newError(KindEngineResult, opPoll, fmt.Errorf("unexpected token %q in results", r.Token))
			}
			pos = p
		}
		if filled[pos] {
			return nil, newError(KindEngineResult, opPoll, fmt.Errorf("duplicate result for token %q", tokens[pos]))
		}
		filled[pos] = true
		aligned[pos] = r
		if aligned[pos].Token == "" {
			aligned[pos].Token = tokens[pos]
		}
	}
	return aligned, nil
}
