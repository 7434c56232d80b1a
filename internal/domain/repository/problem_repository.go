package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"tle_zone_judge/internal/common"
	"tle_zone_judge/internal/domain/model"
)

// ProblemFilter narrows ListProblems. Zero values mean "any".
type ProblemFilter struct {
	Difficulty model.ProblemDifficulty
	Tag        string
	Search     string
	Limit      int
	Offset     int
}

type ProblemRepository interface {
	CreateProblem(ctx context.Context, problem *model.Problem) error
	UpdateProblem(ctx context.Context, problem *model.Problem) error
	DeleteProblem(ctx context.Context, id string) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	ListProblems(ctx context.Context, filter ProblemFilter) ([]model.ProblemSummary, int, error)
	// FindSummariesByIDs skips ids that no longer exist.
	FindSummariesByIDs(ctx context.Context, ids []string) ([]model.ProblemSummary, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, p *model.Problem) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `INSERT INTO problems (id, title, slug, description, difficulty, created_by, created_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err := tx.ExecContext(ctx, query, p.ID, p.Title, p.Slug, p.Description, p.Difficulty, p.CreatedByID, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			if hasPgCode(err, pgUniqueViolation) { // Unique constraint for slug
				return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
			}
			return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
		}
		return insertProblemChildren(ctx, tx, p)
	})
}

func (r *pgProblemRepository) UpdateProblem(ctx context.Context, p *model.Problem) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `UPDATE problems SET
		            title = $1, slug = $2, description = $3, difficulty = $4, updated_at = $5
		          WHERE id = $6`
		res, err := tx.ExecContext(ctx, query, p.Title, p.Slug, p.Description, p.Difficulty, p.UpdatedAt, p.ID)
		if err != nil {
			if hasPgCode(err, pgUniqueViolation) {
				return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
			}
			if isMissing(err) {
				return common.ErrNotFound
			}
			return fmt.Errorf("pgProblemRepository.UpdateProblem: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return common.ErrNotFound
		}

		for _, table := range []string{"problem_tags", "problem_test_cases", "problem_code_templates"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE problem_id = $1", p.ID); err != nil {
				return fmt.Errorf("pgProblemRepository.UpdateProblem clear %s: %w", table, err)
			}
		}
		return insertProblemChildren(ctx, tx, p)
	})
}

func insertProblemChildren(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	for _, tag := range p.Tags {
		_, err := tx.ExecContext(ctx, `INSERT INTO problem_tags (problem_id, tag) VALUES ($1, $2) ON CONFLICT DO NOTHING`, p.ID, tag)
		if err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO problem_test_cases (problem_id, is_hidden, sort_order, input, output, explanation)
	                                     VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("prepare test cases: %w", err)
	}
	defer stmt.Close()

	for i, tc := range p.VisibleTestCases {
		if _, err := stmt.ExecContext(ctx, p.ID, false, i, tc.Input, tc.Output, tc.Explanation); err != nil {
			return fmt.Errorf("insert visible case %d: %w", i, err)
		}
	}
	for i, tc := range p.HiddenTestCases {
		if _, err := stmt.ExecContext(ctx, p.ID, true, i, tc.Input, tc.Output, nil); err != nil {
			return fmt.Errorf("insert hidden case %d: %w", i, err)
		}
	}

	// Start code and reference solutions share one row per language.
	templates := map[string][2]string{}
	for _, sc := range p.StartCode {
		t := templates[sc.Language]
		t[0] = sc.InitialCode
		templates[sc.Language] = t
	}
	for _, rs := range p.ReferenceSolutions {
		t := templates[rs.Language]
		t[1] = rs.CompleteCode
		templates[rs.Language] = t
	}
	for lang, t := range templates {
		_, err := tx.ExecContext(ctx, `INSERT INTO problem_code_templates (problem_id, language, start_code, reference_solution)
		                               VALUES ($1, $2, $3, $4)`, p.ID, lang, t[0], t[1])
		if err != nil {
			return fmt.Errorf("insert code template %s: %w", lang, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) DeleteProblem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM problems WHERE id = $1`, id)
	if isMissing(err) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteProblem: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT id, title, slug, description, difficulty, created_by, created_at, updated_at
	          FROM problems WHERE id = $1`
	p := &model.Problem{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &p.Difficulty, &p.CreatedByID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isMissing(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}

	tags, err := r.tagsFor(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Tags = tags[p.ID]

	rows, err := r.db.QueryContext(ctx, `SELECT is_hidden, input, output, explanation
	                                      FROM problem_test_cases WHERE problem_id = $1
	                                      ORDER BY is_hidden, sort_order`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID test cases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			hidden      bool
			input, out  string
			explanation sql.NullString
		)
		if err := rows.Scan(&hidden, &input, &out, &explanation); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.FindProblemByID scan test case: %w", err)
		}
		if hidden {
			p.HiddenTestCases = append(p.HiddenTestCases, model.TestCase{Input: input, Output: out})
			continue
		}
		tc := model.VisibleTestCase{Input: input, Output: out}
		if explanation.Valid {
			tc.Explanation = &explanation.String
		}
		p.VisibleTestCases = append(p.VisibleTestCases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID rows.Err: %w", err)
	}

	trows, err := r.db.QueryContext(ctx, `SELECT language, start_code, reference_solution
	                                       FROM problem_code_templates WHERE problem_id = $1 ORDER BY language`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID templates: %w", err)
	}
	defer trows.Close()
	for trows.Next() {
		var lang, start, ref string
		if err := trows.Scan(&lang, &start, &ref); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.FindProblemByID scan template: %w", err)
		}
		if start != "" {
			p.StartCode = append(p.StartCode, model.StartCode{Language: lang, InitialCode: start})
		}
		if ref != "" {
			p.ReferenceSolutions = append(p.ReferenceSolutions, model.ReferenceSolution{Language: lang, CompleteCode: ref})
		}
	}
	if err = trows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID templates rows.Err: %w", err)
	}
	return p, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, f ProblemFilter) ([]model.ProblemSummary, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if f.Difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("p.difficulty = $%d", argID))
		args = append(args, f.Difficulty)
		argID++
	}
	if f.Tag != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM problem_tags pt WHERE pt.problem_id = p.id AND pt.tag = $%d)", argID))
		args = append(args, f.Tag)
		argID++
	}
	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.description ILIKE $%d)", argID, argID))
		args = append(args, "%"+f.Search+"%")
		argID++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM problems p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	query := `SELECT p.id, p.title, p.slug, p.difficulty FROM problems p` + where +
		fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, f.Limit, f.Offset)

	problems, err := r.querySummaries(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems: %w", err)
	}
	return problems, total, nil
}

func (r *pgProblemRepository) FindSummariesByIDs(ctx context.Context, ids []string) ([]model.ProblemSummary, error) {
	if len(ids) == 0 {
		return []model.ProblemSummary{}, nil
	}
	problems, err := r.querySummaries(ctx, `SELECT p.id, p.title, p.slug, p.difficulty FROM problems p
	                                        WHERE p.id = ANY($1) ORDER BY p.title`, ids)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.FindSummariesByIDs: %w", err)
	}
	return problems, nil
}

func (r *pgProblemRepository) querySummaries(ctx context.Context, query string, args ...interface{}) ([]model.ProblemSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	problems := []model.ProblemSummary{}
	var ids []string
	for rows.Next() {
		var s model.ProblemSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Slug, &s.Difficulty); err != nil {
			return nil, err
		}
		problems = append(problems, s)
		ids = append(ids, s.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	tags, err := r.tagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range problems {
		problems[i].Tags = tags[problems[i].ID]
	}
	return problems, nil
}

func (r *pgProblemRepository) tagsFor(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT problem_id, tag FROM problem_tags WHERE problem_id = ANY($1) ORDER BY tag`, ids)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.tagsFor: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.tagsFor scan: %w", err)
		}
		out[id] = append(out[id], tag)
	}
	return out, rows.Err()
}
