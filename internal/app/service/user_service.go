package service

import (
	"context"
	"fmt"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/domain/repository"
)

type UserService struct {
	userRepo    repository.UserRepository
	problemRepo repository.ProblemRepository
}

func NewUserService(userRepo repository.UserRepository, problemRepo repository.ProblemRepository) *UserService {
	return &UserService{userRepo: userRepo, problemRepo: problemRepo}
}

// ListSolvedProblems expands the user's solved-set into problem summaries.
// Problems deleted since they were solved are left out.
func (s *UserService) ListSolvedProblems(ctx context.Context, userID string) (*model.SolvedProblems, error) {
	ids, err := s.userRepo.ListSolvedProblemIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load solved-set: %w", err)
	}
	problems, err := s.problemRepo.FindSummariesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load solved problems: %w", err)
	}
	return &model.SolvedProblems{TotalSolved: len(problems), Problems: problems}, nil
}
