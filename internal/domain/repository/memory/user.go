package memory

import (
	"context"
	"fmt"
	"tle_zone_judge/internal/common"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/domain/repository"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

type UserRepository struct {
	users  *xsync.MapOf[string, model.User]
	emails *xsync.MapOf[string, string]
	solved *xsync.MapOf[string, mapset.Set[string]]
	// order remembers when each problem entered a user's solved-set.
	order *xsync.MapOf[string, []string]
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:  xsync.NewMapOf[string, model.User](),
		emails: xsync.NewMapOf[string, string](),
		solved: xsync.NewMapOf[string, mapset.Set[string]](),
		order:  xsync.NewMapOf[string, []string](),
	}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if _, loaded := r.emails.LoadOrStore(user.Email, user.ID); loaded {
		return fmt.Errorf("user with given email already exists: %w", common.ErrConflict)
	}
	r.users.Store(user.ID, *user)
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	id, ok := r.emails.Load(email)
	if !ok {
		return nil, common.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := r.users.Load(id)
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	u, ok := r.users.LoadAndDelete(id)
	if !ok {
		return common.ErrNotFound
	}
	r.emails.Delete(u.Email)
	r.solved.Delete(id)
	r.order.Delete(id)
	return nil
}

func (r *UserRepository) AddSolvedProblem(ctx context.Context, userID, problemID, submissionID string) (bool, error) {
	set, _ := r.solved.LoadOrCompute(userID, func() mapset.Set[string] {
		return mapset.NewSet[string]()
	})
	if !set.Add(problemID) {
		return false, nil
	}
	r.order.Compute(userID, func(ids []string, _ bool) ([]string, bool) {
		return append(ids, problemID), false
	})
	return true, nil
}

func (r *UserRepository) ListSolvedProblemIDs(ctx context.Context, userID string) ([]string, error) {
	ids, ok := r.order.Load(userID)
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), ids...), nil
}
