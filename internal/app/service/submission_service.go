package service

import (
	"context"
	"errors"
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
)

const (
	pathSubmit = "submit"
	pathRun    = "run"

	// finalizeTimeout bounds terminal writes made after the caller has gone away.
	finalizeTimeout = 5 * time.Second
)

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	userRepo       repository.UserRepository
	runner         *judge.Runner
	aggregator     judge.Aggregator
	log            *slog.Logger
	now            func() time.Time
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	userRepo repository.UserRepository,
	runner *judge.Runner,
	aggregator judge.Aggregator,
	log *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		userRepo:       userRepo,
		runner:         runner,
		aggregator:     aggregator,
		log:            log,
		now:            time.Now,
	}
}

type SubmitRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type RunRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// TestCaseResult is one raw engine result next to the case it ran.
type TestCaseResult struct {
	Input          string                `json:"input"`
	ExpectedOutput string                `json:"expected_output"`
	Stdout         string                `json:"stdout"`
	Stderr         string                `json:"stderr,omitempty"`
	CompileOutput  string                `json:"compile_output,omitempty"`
	Status         model.ExecutionStatus `json:"status"`
	Time           float64               `json:"time"`
	Memory         int64                 `json:"memory"`
}

type RunResult struct {
	ProblemID string           `json:"problem_id"`
	Language  string           `json:"language"`
	Results   []TestCaseResult `json:"results"`
}

// Submit judges code against the problem's hidden cases and records the verdict.
func (s *SubmissionService) Submit(ctx context.Context, userID, problemID string, req SubmitRequest) (*model.Submission, error) {
	lang, problem, err := s.prepare(ctx, "submit", userID, problemID, req.Code, req.Language)
	if err != nil {
		return nil, err
	}
	if len(problem.HiddenTestCases) == 0 {
		return nil, judge.InputError("submit", fmt.Errorf("problem %s has no hidden test cases", problem.ID))
	}
	return s.judge(ctx, userID, problem, req.Code, lang)
}

// Run executes code against the visible cases only. Nothing is persisted.
func (s *SubmissionService) Run(ctx context.Context, userID, problemID string, req RunRequest) (*RunResult, error) {
	lang, problem, err := s.prepare(ctx, "run", userID, problemID, req.Code, req.Language)
	if err != nil {
		return nil, err
	}
	cases := problem.VisibleCases()
	if len(cases) == 0 {
		return nil, judge.InputError("run", fmt.Errorf("problem %s has no visible test cases", problem.ID))
	}

	start := time.Now()
	results, err := s.runner.Execute(ctx, cases, req.Code, lang)
	metrics.PipelineDuration.WithLabelValues(pathRun).Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Warn("Run failed", "user_id", userID, "problem_id", problem.ID, logger.Err(err))
		return nil, err
	}

	out := &RunResult{ProblemID: problem.ID, Language: lang.Name, Results: make([]TestCaseResult, len(results))}
	for i, r := range results {
		out.Results[i] = TestCaseResult{
			Input:          cases[i].Input,
			ExpectedOutput: cases[i].Output,
			Stdout:         r.Stdout,
			Stderr:         r.Stderr,
			CompileOutput:  r.CompileOutput,
			Status:         r.Status,
			Time:           float64(r.Time),
			Memory:         r.Memory,
		}
	}
	return out, nil
}

// Resubmit judges a Failed submission's code again as a new submission.
// The Failed record itself is never reopened.
func (s *SubmissionService) Resubmit(ctx context.Context, userID, submissionID string) (*model.Submission, error) {
	prev, err := s.GetSubmission(ctx, userID, submissionID)
	if err != nil {
		return nil, err
	}
	if prev.Status != model.StatusFailed {
		return nil, fmt.Errorf("submission %s is %s; only Failed submissions can be resubmitted: %w", prev.ID, prev.Status, common.ErrConflict)
	}
	return s.Submit(ctx, userID, prev.ProblemID, SubmitRequest{Code: prev.Code, Language: prev.Language})
}

// GetSubmission returns the caller's own submission. Other users' ids look missing.
func (s *SubmissionService) GetSubmission(ctx context.Context, userID, submissionID string) (*model.Submission, error) {
	sub, err := s.submissionRepo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, common.Errorf("failed to fetch submission %s: %w", submissionID, err)
	}
	if sub.UserID != userID {
		return nil, common.Errorf("submission %s: %w", submissionID, common.ErrNotFound)
	}
	return sub, nil
}

func (s *SubmissionService) ListSubmissionsForProblem(ctx context.Context, userID, problemID string) ([]model.Submission, error) {
	subs, err := s.submissionRepo.ListSubmissionsForUserProblem(ctx, userID, problemID)
	if err != nil {
		return nil, common.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

func (s *SubmissionService) prepare(ctx context.Context, op, userID, problemID, code, language string) (model.Language, *model.Problem, error) {
	switch {
	case userID == "":
		return model.Language{}, nil, judge.InputError(op, errors.New("user id is required"))
	case problemID == "":
		return model.Language{}, nil, judge.InputError(op, errors.New("problem id is required"))
	case strings.TrimSpace(code) == "":
		return model.Language{}, nil, judge.InputError(op, errors.New("code is required"))
	}
	lang, err := judge.ResolveLanguage(language)
	if err != nil {
		return model.Language{}, nil, err
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, problemID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return model.Language{}, nil, judge.NotFoundError(op, fmt.Errorf("problem %s not found", problemID))
		}
		return model.Language{}, nil, common.Errorf("failed to load problem %s: %w", problemID, err)
	}
	return lang, problem, nil
}

func (s *SubmissionService) judge(ctx context.Context, userID string, problem *model.Problem, code string, lang model.Language) (*model.Submission, error) {
	now := s.now()
	sub := &model.Submission{
		ID:             uuid.NewString(),
		UserID:         userID,
		ProblemID:      problem.ID,
		Code:           code,
		Language:       lang.Name,
		Status:         model.StatusPending,
		TestCasesTotal: len(problem.HiddenTestCases),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.submissionRepo.CreateSubmission(ctx, sub); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}

	start := time.Now()
	results, err := s.runner.Execute(ctx, problem.HiddenTestCases, code, lang)
	metrics.PipelineDuration.WithLabelValues(pathSubmit).Observe(time.Since(start).Seconds())
	if err != nil {
		s.markFailed(ctx, sub, err)
		return nil, err
	}

	verdict := s.aggregator.Aggregate(results)

	// The verdict is recorded even if the caller disconnected after polling.
	writeCtx, cancel := detach(ctx)
	defer cancel()

	final, err := s.submissionRepo.FinalizeSubmission(writeCtx, sub.ID, verdict)
	if err != nil {
		return nil, common.Errorf("failed to record verdict for submission %s: %w", sub.ID, err)
	}
	metrics.VerdictsTotal.WithLabelValues(pathSubmit, string(final.Status)).Inc()
	s.log.Info("Submission judged",
		"submission_id", final.ID, "problem_id", problem.ID, "status", final.Status,
		"passed", final.TestCasesPassed, "total", final.TestCasesTotal)

	if final.Status == model.StatusAccepted {
		added, err := s.userRepo.AddSolvedProblem(writeCtx, userID, problem.ID, final.ID)
		if err != nil {
			// The verdict stands; the solved-set catches up on the next acceptance.
			s.log.Error("Failed to add problem to solved-set",
				"user_id", userID, "problem_id", problem.ID, logger.Err(err))
		} else if added {
			s.log.Info("Problem solved for the first time", "user_id", userID, "problem_id", problem.ID)
		}
	}
	return final, nil
}

// markFailed closes a submission whose judging never produced a verdict.
func (s *SubmissionService) markFailed(ctx context.Context, sub *model.Submission, cause error) {
	writeCtx, cancel := detach(ctx)
	defer cancel()

	msg := cause.Error()
	verdict := model.Verdict{Status: model.StatusFailed, ErrorMessage: &msg, TestCasesTotal: sub.TestCasesTotal}
	if _, err := s.submissionRepo.FinalizeSubmission(writeCtx, sub.ID, verdict); err != nil {
		s.log.Error("Failed to mark submission as Failed; sweeper will retry",
			"submission_id", sub.ID, logger.Err(err))
		return
	}
	metrics.VerdictsTotal.WithLabelValues(pathSubmit, string(model.StatusFailed)).Inc()
	s.log.Warn("Submission failed", "submission_id", sub.ID, "kind", judge.KindOf(cause).String(), logger.Err(cause))
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}
