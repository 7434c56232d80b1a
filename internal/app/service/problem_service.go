package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"tle_zone_judge/internal/app/judge"
	"tle_zone_judge/internal/common"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/domain/repository"
	"tle_zone_judge/internal/platform/logger"
	"tle_zone_judge/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/gosimple/slug" // For slug generation
	"golang.org/x/sync/errgroup"
)

const (
	pathValidate = "validate"

	defaultPageSize = 20
	maxPageSize     = 100
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	runner      *judge.Runner
	log         *slog.Logger
	now         func() time.Time
}

func NewProblemService(problemRepo repository.ProblemRepository, runner *judge.Runner, log *slog.Logger) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		runner:      runner,
		log:         log,
		now:         time.Now,
	}
}

// ProblemRequest is the full problem definition; updates replace every field.
type ProblemRequest struct {
	Title              string                    `json:"title"`
	Description        string                    `json:"description"`
	Difficulty         model.ProblemDifficulty   `json:"difficulty"`
	Tags               []string                  `json:"tags"`
	VisibleTestCases   []model.VisibleTestCase   `json:"visible_test_cases"`
	HiddenTestCases    []model.TestCase          `json:"hidden_test_cases"`
	StartCode          []model.StartCode         `json:"start_code"`
	ReferenceSolutions []model.ReferenceSolution `json:"reference_solutions"`
}

type ListProblemsParams struct {
	Difficulty model.ProblemDifficulty
	Tag        string
	Search     string
	Page       int
	PageSize   int
}

type ProblemList struct {
	Problems []model.ProblemSummary `json:"problems"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

func (s *ProblemService) CreateProblem(ctx context.Context, userID string, req ProblemRequest) (*model.Problem, error) {
	if err := normalizeProblemRequest(&req); err != nil {
		return nil, err
	}
	if err := s.validateReferenceSolutions(ctx, req); err != nil {
		return nil, err
	}

	now := s.now()
	problem := &model.Problem{
		ID:                 uuid.NewString(),
		Title:              req.Title,
		Slug:               slug.Make(req.Title),
		Description:        req.Description,
		Difficulty:         req.Difficulty,
		Tags:               req.Tags,
		VisibleTestCases:   req.VisibleTestCases,
		HiddenTestCases:    req.HiddenTestCases,
		StartCode:          req.StartCode,
		ReferenceSolutions: req.ReferenceSolutions,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if userID != "" {
		problem.CreatedByID = &userID
	}

	if err := s.problemRepo.CreateProblem(ctx, problem); err != nil {
		return nil, common.Errorf("failed to create problem: %w", err)
	}
	s.log.Info("Problem created", "problem_id", problem.ID, "slug", problem.Slug, "created_by", userID)
	return problem, nil
}

func (s *ProblemService) UpdateProblem(ctx context.Context, problemID string, req ProblemRequest) (*model.Problem, error) {
	existing, err := s.problemRepo.FindProblemByID(ctx, problemID)
	if err != nil {
		return nil, common.Errorf("failed to fetch problem %s: %w", problemID, err)
	}
	if err := normalizeProblemRequest(&req); err != nil {
		return nil, err
	}
	if err := s.validateReferenceSolutions(ctx, req); err != nil {
		return nil, err
	}

	existing.Title = req.Title
	existing.Slug = slug.Make(req.Title)
	existing.Description = req.Description
	existing.Difficulty = req.Difficulty
	existing.Tags = req.Tags
	existing.VisibleTestCases = req.VisibleTestCases
	existing.HiddenTestCases = req.HiddenTestCases
	existing.StartCode = req.StartCode
	existing.ReferenceSolutions = req.ReferenceSolutions
	existing.UpdatedAt = s.now()

	if err := s.problemRepo.UpdateProblem(ctx, existing); err != nil {
		return nil, common.Errorf("failed to update problem %s: %w", problemID, err)
	}
	s.log.Info("Problem updated", "problem_id", existing.ID)
	return existing, nil
}

func (s *ProblemService) DeleteProblem(ctx context.Context, problemID string) error {
	if err := s.problemRepo.DeleteProblem(ctx, problemID); err != nil {
		return common.Errorf("failed to delete problem %s: %w", problemID, err)
	}
	s.log.Info("Problem deleted", "problem_id", problemID)
	return nil
}

// GetProblem hides the hidden cases and reference solutions unless full is set.
func (s *ProblemService) GetProblem(ctx context.Context, problemID string, full bool) (*model.Problem, error) {
	p, err := s.problemRepo.FindProblemByID(ctx, problemID)
	if err != nil {
		return nil, common.Errorf("failed to fetch problem %s: %w", problemID, err)
	}
	if full {
		return p, nil
	}
	return p.PublicView(), nil
}

func (s *ProblemService) ListProblems(ctx context.Context, params ListProblemsParams) (*ProblemList, error) {
	if params.Difficulty != "" && !params.Difficulty.Valid() {
		return nil, common.Errorf("unknown difficulty %q: %w", params.Difficulty, common.ErrBadRequest)
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	params.PageSize = min(params.PageSize, maxPageSize)

	problems, total, err := s.problemRepo.ListProblems(ctx, repository.ProblemFilter{
		Difficulty: params.Difficulty,
		Tag:        params.Tag,
		Search:     params.Search,
		Limit:      params.PageSize,
		Offset:     (params.Page - 1) * params.PageSize,
	})
	if err != nil {
		return nil, common.Errorf("failed to list problems: %w", err)
	}
	return &ProblemList{Problems: problems, Total: total, Page: params.Page, PageSize: params.PageSize}, nil
}

// validateReferenceSolutions runs every reference solution against the
// visible cases, one language per goroutine. Any non-pass rejects the problem.
func (s *ProblemService) validateReferenceSolutions(ctx context.Context, req ProblemRequest) error {
	cases := make([]model.TestCase, len(req.VisibleTestCases))
	for i, tc := range req.VisibleTestCases {
		cases[i] = model.TestCase{Input: tc.Input, Output: tc.Output}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ref := range req.ReferenceSolutions {
		ref := ref // per-iteration copy (go.mod targets 1.21 loop semantics)
		g.Go(func() error {
			lang, err := judge.ResolveLanguage(ref.Language)
			if err != nil {
				return err
			}
			start := time.Now()
			results, err := s.runner.Execute(gctx, cases, ref.CompleteCode, lang)
			metrics.PipelineDuration.WithLabelValues(pathValidate).Observe(time.Since(start).Seconds())
			if err != nil {
				return fmt.Errorf("validating %s reference solution: %w", lang.Name, err)
			}
			for i, r := range results {
				if r.Status.ID != model.StatusIDAccepted {
					metrics.VerdictsTotal.WithLabelValues(pathValidate, "rejected").Inc()
					return fmt.Errorf("%s reference solution fails visible case %d (%s): %w",
						lang.Name, i+1, r.Status.Description, common.ErrValidation)
				}
			}
			metrics.VerdictsTotal.WithLabelValues(pathValidate, string(model.StatusAccepted)).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warn("Reference solution validation failed", "title", req.Title, logger.Err(err))
		return err
	}
	return nil
}

func normalizeProblemRequest(req *ProblemRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Difficulty = model.ProblemDifficulty(strings.ToLower(string(req.Difficulty)))

	var missing []string
	if req.Title == "" {
		missing = append(missing, "title")
	}
	if req.Description == "" {
		missing = append(missing, "description")
	}
	if len(req.VisibleTestCases) == 0 {
		missing = append(missing, "visible_test_cases")
	}
	if len(req.HiddenTestCases) == 0 {
		missing = append(missing, "hidden_test_cases")
	}
	if len(req.ReferenceSolutions) == 0 {
		missing = append(missing, "reference_solutions")
	}
	if len(missing) > 0 {
		return common.Errorf("missing required fields: %s: %w", strings.Join(missing, ", "), common.ErrBadRequest)
	}
	if !req.Difficulty.Valid() {
		return common.Errorf("difficulty must be easy, medium or hard: %w", common.ErrBadRequest)
	}
	if slug.Make(req.Title) == "" {
		return common.Errorf("title %q does not produce a usable slug: %w", req.Title, common.ErrBadRequest)
	}

	seen := map[string]bool{}
	for i := range req.ReferenceSolutions {
		lang, err := judge.ResolveLanguage(req.ReferenceSolutions[i].Language)
		if err != nil {
			return err
		}
		if seen[lang.Name] {
			return common.Errorf("duplicate reference solution for %s: %w", lang.Name, common.ErrBadRequest)
		}
		if strings.TrimSpace(req.ReferenceSolutions[i].CompleteCode) == "" {
			return common.Errorf("empty reference solution for %s: %w", lang.Name, common.ErrBadRequest)
		}
		seen[lang.Name] = true
		req.ReferenceSolutions[i].Language = lang.Name
	}
	for i := range req.StartCode {
		lang, err := judge.ResolveLanguage(req.StartCode[i].Language)
		if err != nil {
			return err
		}
		req.StartCode[i].Language = lang.Name
	}

	tags := []string{}
	seenTags := map[string]bool{}
	for _, t := range req.Tags {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" && !seenTags[t] {
			seenTags[t] = true
			tags = append(tags, t)
		}
	}
	req.Tags = tags
	return nil
}
