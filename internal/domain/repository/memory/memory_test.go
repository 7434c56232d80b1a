package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
	"tle_zone_judge/internal/common"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSolvedProblemIsAddIfAbsent(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		for j := 0; j < 2; j++ {
			go func(id int) {
				defer wg.Done()
				_, err := repo.AddSolvedProblem(ctx, "u1", fmt.Sprintf("p%d", id), "s")
				assert.NoError(t, err)
			}(i)
		}
	}
	wg.Wait()

	ids, err := repo.ListSolvedProblemIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, ids, n)

	added, err := repo.AddSolvedProblem(ctx, "u1", "p0", "s2")
	require.NoError(t, err)
	assert.False(t, added)
	ids, _ = repo.ListSolvedProblemIDs(ctx, "u1")
	assert.Len(t, ids, n)
}

func TestUserEmailUnique(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &model.User{ID: "1", Email: "a@b.c"}))
	err := repo.Create(ctx, &model.User{ID: "2", Email: "a@b.c"})
	assert.ErrorIs(t, err, common.ErrConflict)

	u, err := repo.FindByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)

	require.NoError(t, repo.Delete(ctx, "1"))
	_, err = repo.FindByEmail(ctx, "a@b.c")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFinalizeSubmissionOnlyOnce(t *testing.T) {
	repo := NewSubmissionRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreateSubmission(ctx, &model.Submission{ID: "s1", Status: model.StatusPending, TestCasesTotal: 2}))

	sub, err := repo.FinalizeSubmission(ctx, "s1", model.Verdict{Status: model.StatusAccepted, TestCasesPassed: 2, TestCasesTotal: 2})
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, sub.Status)

	_, err = repo.FinalizeSubmission(ctx, "s1", model.Verdict{Status: model.StatusWrongAnswer})
	assert.ErrorIs(t, err, common.ErrConflict)

	stored, err := repo.GetSubmissionByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, stored.Status)

	_, err = repo.FinalizeSubmission(ctx, "missing", model.Verdict{Status: model.StatusAccepted})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFailStalePending(t *testing.T) {
	repo := NewSubmissionRepository()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.CreateSubmission(ctx, &model.Submission{ID: "old", Status: model.StatusPending, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.CreateSubmission(ctx, &model.Submission{ID: "fresh", Status: model.StatusPending, CreatedAt: now}))
	require.NoError(t, repo.CreateSubmission(ctx, &model.Submission{ID: "done", Status: model.StatusAccepted, CreatedAt: now.Add(-time.Hour)}))

	n, err := repo.FailStalePending(ctx, now.Add(-time.Minute), "judging abandoned")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	old, _ := repo.GetSubmissionByID(ctx, "old")
	assert.Equal(t, model.StatusFailed, old.Status)
	require.NotNil(t, old.ErrorMessage)
	assert.Equal(t, "judging abandoned", *old.ErrorMessage)

	fresh, _ := repo.GetSubmissionByID(ctx, "fresh")
	assert.Equal(t, model.StatusPending, fresh.Status)
	done, _ := repo.GetSubmissionByID(ctx, "done")
	assert.Equal(t, model.StatusAccepted, done.Status)
}

func TestListProblemsFilters(t *testing.T) {
	repo := NewProblemRepository()
	ctx := context.Background()
	base := time.Now()
	for i, d := range []model.ProblemDifficulty{model.DifficultyEasy, model.DifficultyHard, model.DifficultyEasy} {
		require.NoError(t, repo.CreateProblem(ctx, &model.Problem{
			ID:         fmt.Sprintf("p%d", i),
			Title:      fmt.Sprintf("Problem %d", i),
			Slug:       fmt.Sprintf("problem-%d", i),
			Difficulty: d,
			Tags:       []string{"array"},
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, total, err := repo.ListProblems(ctx, repository.ProblemFilter{Difficulty: model.DifficultyEasy, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, "p2", list[0].ID)

	list, total, err = repo.ListProblems(ctx, repository.ProblemFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].ID)

	err = repo.CreateProblem(ctx, &model.Problem{ID: "dup", Slug: "problem-0"})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestTokenBlocklistExpiry(t *testing.T) {
	bl := NewTokenBlocklist()
	now := time.Now()
	bl.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, bl.Block(ctx, "jti", time.Minute))
	blocked, _ := bl.IsBlocked(ctx, "jti")
	assert.True(t, blocked)

	now = now.Add(2 * time.Minute)
	blocked, _ = bl.IsBlocked(ctx, "jti")
	assert.False(t, blocked)
}
