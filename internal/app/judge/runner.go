package judge

import (
	"context"
	"log/slog"
	"tle_zone_judge/internal/domain/model"
)

// Runner chains the Dispatcher and the Poller: one batch in, ordered results out.
type Runner struct {
	dispatcher *Dispatcher
	poller     *Poller
}

func NewRunner(engine Engine, cfg PollerConfig, log *slog.Logger) *Runner {
	return &Runner{
		dispatcher: NewDispatcher(engine),
		poller:     NewPoller(engine, cfg, log),
	}
}

// Execute runs code against cases and returns results index-aligned with cases.
func (r *Runner) Execute(ctx context.Context, cases []model.TestCase, code string, lang model.Language) ([]model.ExecutionResult, error) {
	tokens, err := r.dispatcher.Dispatch(ctx, cases, code, lang)
	if err != nil {
		return nil, err
	}
	return r.poller.Poll(ctx, tokens)
}
