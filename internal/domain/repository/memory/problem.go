// Package memory holds process-local repositories used when STORE_DRIVER=memory
// and by service tests. They honor the same atomicity contracts as the
// Postgres implementations.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"tle_zone_judge/internal/common"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/domain/repository"

	"github.com/puzpuzpuz/xsync/v3"
)

type ProblemRepository struct {
	problems *xsync.MapOf[string, *model.Problem]
	slugs    *xsync.MapOf[string, string]
}

var _ repository.ProblemRepository = (*ProblemRepository)(nil)

func NewProblemRepository() *ProblemRepository {
	return &ProblemRepository{
		problems: xsync.NewMapOf[string, *model.Problem](),
		slugs:    xsync.NewMapOf[string, string](),
	}
}

func (r *ProblemRepository) CreateProblem(ctx context.Context, p *model.Problem) error {
	if owner, loaded := r.slugs.LoadOrStore(p.Slug, p.ID); loaded && owner != p.ID {
		return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
	}
	r.problems.Store(p.ID, cloneProblem(p))
	return nil
}

func (r *ProblemRepository) UpdateProblem(ctx context.Context, p *model.Problem) error {
	old, ok := r.problems.Load(p.ID)
	if !ok {
		return common.ErrNotFound
	}
	if old.Slug != p.Slug {
		if owner, loaded := r.slugs.LoadOrStore(p.Slug, p.ID); loaded && owner != p.ID {
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		r.slugs.Delete(old.Slug)
	}
	updated := cloneProblem(p)
	updated.CreatedAt = old.CreatedAt
	updated.CreatedByID = old.CreatedByID
	r.problems.Store(p.ID, updated)
	return nil
}

func (r *ProblemRepository) DeleteProblem(ctx context.Context, id string) error {
	p, ok := r.problems.LoadAndDelete(id)
	if !ok {
		return common.ErrNotFound
	}
	r.slugs.Delete(p.Slug)
	return nil
}

func (r *ProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	p, ok := r.problems.Load(id)
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneProblem(p), nil
}

func (r *ProblemRepository) ListProblems(ctx context.Context, f repository.ProblemFilter) ([]model.ProblemSummary, int, error) {
	var matched []*model.Problem
	search := strings.ToLower(f.Search)
	r.problems.Range(func(_ string, p *model.Problem) bool {
		if f.Difficulty != "" && p.Difficulty != f.Difficulty {
			return true
		}
		if f.Tag != "" && !containsString(p.Tags, f.Tag) {
			return true
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			return true
		}
		matched = append(matched, p)
		return true
	})
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}

	out := make([]model.ProblemSummary, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, p.Summary())
	}
	return out, total, nil
}

func (r *ProblemRepository) FindSummariesByIDs(ctx context.Context, ids []string) ([]model.ProblemSummary, error) {
	out := make([]model.ProblemSummary, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.problems.Load(id); ok {
			out = append(out, p.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneProblem(p *model.Problem) *model.Problem {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.VisibleTestCases = append([]model.VisibleTestCase(nil), p.VisibleTestCases...)
	c.HiddenTestCases = append([]model.TestCase(nil), p.HiddenTestCases...)
	c.StartCode = append([]model.StartCode(nil), p.StartCode...)
	c.ReferenceSolutions = append([]model.ReferenceSolution(nil), p.ReferenceSolutions...)
	return &c
}
