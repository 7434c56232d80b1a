package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"tle_zone_judge/internal/common"
	"tle_zone_judge/internal/domain/model"
)

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
	// FinalizeSubmission writes the verdict onto a Pending submission. It returns
	// common.ErrConflict when the submission already holds a terminal status.
	FinalizeSubmission(ctx context.Context, id string, verdict model.Verdict) (*model.Submission, error)
	// For code history, newest first
	ListSubmissionsForUserProblem(ctx context.Context, userID, problemID string) ([]model.Submission, error)
	// FailStalePending finalizes every submission Pending since before olderThan as Failed.
	FailStalePending(ctx context.Context, olderThan time.Time, message string) (int, error)
	DeleteSubmissionsByUser(ctx context.Context, userID string) error
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, user_id, problem_id, code, language, status, runtime, memory,
	error_message, test_cases_passed, test_cases_total, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	sub := &model.Submission{}
	var errMsg sql.NullString
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Code, &sub.Language, &sub.Status, &sub.Runtime, &sub.Memory,
		&errMsg, &sub.TestCasesPassed, &sub.TestCasesTotal, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		sub.ErrorMessage = &errMsg.String
	}
	return sub, nil
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, problem_id, code, language, status, test_cases_total, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.ProblemID, sub.Code, sub.Language,
		sub.Status, sub.TestCasesTotal, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		if isMissing(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) FinalizeSubmission(ctx context.Context, id string, v model.Verdict) (*model.Submission, error) {
	query := `UPDATE submissions SET
	            status = $2, runtime = $3, memory = $4, error_message = $5,
	            test_cases_passed = $6, test_cases_total = $7, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $1 AND status = 'Pending'
	          RETURNING ` + submissionColumns
	sub, err := scanSubmission(r.db.QueryRowContext(ctx, query, id, v.Status, v.Runtime, v.Memory, v.ErrorMessage,
		v.TestCasesPassed, v.TestCasesTotal))
	if err == nil {
		return sub, nil
	}
	if hasPgCode(err, pgInvalidTextRepresentation) {
		return nil, common.ErrNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pgSubmissionRepository.FinalizeSubmission: %w", err)
	}

	// Nothing updated: either unknown id or already terminal.
	var status model.SubmissionStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.FinalizeSubmission lookup: %w", err)
	}
	return nil, fmt.Errorf("submission %s already %s: %w", id, status, common.ErrConflict)
}

func (r *pgSubmissionRepository) ListSubmissionsForUserProblem(ctx context.Context, userID, problemID string) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+submissionColumns+` FROM submissions
	                                     WHERE user_id = $1 AND problem_id = $2 ORDER BY created_at DESC`, userID, problemID)
	if hasPgCode(err, pgInvalidTextRepresentation) {
		return []model.Submission{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissionsForUserProblem query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissionsForUserProblem scan: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissionsForUserProblem rows.Err: %w", err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) FailStalePending(ctx context.Context, olderThan time.Time, message string) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE submissions SET status = $1, error_message = $2, updated_at = CURRENT_TIMESTAMP
	                                   WHERE status = 'Pending' AND created_at < $3`, model.StatusFailed, message, olderThan)
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.FailStalePending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.FailStalePending rows affected: %w", err)
	}
	return int(n), nil
}

func (r *pgSubmissionRepository) DeleteSubmissionsByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM submissions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("pgSubmissionRepository.DeleteSubmissionsByUser: %w", err)
	}
	return nil
}
