package memory

import (
	"context"
	"fmt"
	"sort"
	"time"
	"tle_zone_judge/internal/common"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/domain/repository"

	"github.com/puzpuzpuz/xsync/v3"
)

type SubmissionRepository struct {
	subs *xsync.MapOf[string, model.Submission]
	now  func() time.Time
}

var _ repository.SubmissionRepository = (*SubmissionRepository)(nil)

func NewSubmissionRepository() *SubmissionRepository {
	return &SubmissionRepository{
		subs: xsync.NewMapOf[string, model.Submission](),
		now:  time.Now,
	}
}

func (r *SubmissionRepository) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	if _, loaded := r.subs.LoadOrStore(sub.ID, *sub); loaded {
		return fmt.Errorf("submission %s already exists: %w", sub.ID, common.ErrConflict)
	}
	return nil
}

func (r *SubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	sub, ok := r.subs.Load(id)
	if !ok {
		return nil, common.ErrNotFound
	}
	return &sub, nil
}

func (r *SubmissionRepository) FinalizeSubmission(ctx context.Context, id string, v model.Verdict) (*model.Submission, error) {
	var (
		found   bool
		already model.SubmissionStatus
	)
	sub, _ := r.subs.Compute(id, func(old model.Submission, loaded bool) (model.Submission, bool) {
		if !loaded {
			return old, true
		}
		found = true
		if old.Status.IsTerminal() {
			already = old.Status
			return old, false
		}
		v.Apply(&old)
		old.UpdatedAt = r.now()
		return old, false
	})
	switch {
	case !found:
		return nil, common.ErrNotFound
	case already != "":
		return nil, fmt.Errorf("submission %s already %s: %w", id, already, common.ErrConflict)
	}
	return &sub, nil
}

func (r *SubmissionRepository) ListSubmissionsForUserProblem(ctx context.Context, userID, problemID string) ([]model.Submission, error) {
	out := []model.Submission{}
	r.subs.Range(func(_ string, s model.Submission) bool {
		if s.UserID == userID && s.ProblemID == problemID {
			out = append(out, s)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *SubmissionRepository) FailStalePending(ctx context.Context, olderThan time.Time, message string) (int, error) {
	var stale []string
	r.subs.Range(func(id string, s model.Submission) bool {
		if s.Status == model.StatusPending && s.CreatedAt.Before(olderThan) {
			stale = append(stale, id)
		}
		return true
	})

	failed := 0
	for _, id := range stale {
		r.subs.Compute(id, func(s model.Submission, loaded bool) (model.Submission, bool) {
			if !loaded {
				return s, true
			}
			if s.Status != model.StatusPending {
				return s, false
			}
			msg := message
			s.Status = model.StatusFailed
			s.ErrorMessage = &msg
			s.UpdatedAt = r.now()
			failed++
			return s, false
		})
	}
	return failed, nil
}

func (r *SubmissionRepository) DeleteSubmissionsByUser(ctx context.Context, userID string) error {
	r.subs.Range(func(id string, s model.Submission) bool {
		if s.UserID == userID {
			r.subs.Delete(id)
		}
		return true
	})
	return nil
}
