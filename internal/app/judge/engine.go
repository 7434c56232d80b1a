package judge

import (
	"context"
	"tle_zone_judge/internal/domain/model"
)

// Engine is the batch-submit/poll contract of the remote execution engine.
// Both calls must preserve order.
type Engine interface {
	SubmitBatch(ctx context.Context, jobs []model.ExecutionJob) ([]model.ExecutionToken, error)
	GetBatch(ctx context.Context, tokens []string) ([]model.ExecutionResult, error)
}
