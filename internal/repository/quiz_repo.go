package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kitdash/internal/model"
	"kitdash/internal/phase"
)

type QuizRepository struct {
	db *pgxpool.Pool
}

func NewQuizRepository(db *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{db: db}
}

const quizColumns = `id, full_name, email, phone_number, brand_name, logo_status, brand_goals,
	online_presence, audience, brand_style, timeline, preferred_kit, created_at, updated_at`

func scanQuiz(row pgx.Row) (*model.QuizSubmission, error) {
	var q model.QuizSubmission
	err := row.Scan(
		&q.ID,
		&q.FullName,
		&q.Email,
		&q.PhoneNumber,
		&q.BrandName,
		&q.LogoStatus,
		&q.BrandGoals,
		&q.OnlinePresence,
		&q.Audience,
		&q.BrandStyle,
		&q.Timeline,
		&q.PreferredKit,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if q.BrandGoals == nil {
		q.BrandGoals = []string{}
	}
	if q.Audience == nil {
		q.Audience = []string{}
	}
	return &q, nil
}

func collectQuiz(rows pgx.Rows) ([]*model.QuizSubmission, error) {
	defer rows.Close()
	out := []*model.QuizSubmission{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Create 写入一次问卷提交，ID 由服务端生成
func (r *QuizRepository) Create(ctx context.Context, q *model.QuizSubmission) error {
	q.ID = uuid.NewString()
	if q.BrandGoals == nil {
		q.BrandGoals = []string{}
	}
	if q.Audience == nil {
		q.Audience = []string{}
	}
	query := `
		INSERT INTO quiz_submissions (id, full_name, email, phone_number, brand_name, logo_status, brand_goals,
			online_presence, audience, brand_style, timeline, preferred_kit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		q.ID, q.FullName, q.Email, q.PhoneNumber, q.BrandName, q.LogoStatus, q.BrandGoals,
		q.OnlinePresence, q.Audience, q.BrandStyle, q.Timeline, q.PreferredKit,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
}

// GetByID 按 ID 查找提交
func (r *QuizRepository) GetByID(ctx context.Context, id string) (*model.QuizSubmission, error) {
	q, err := scanQuiz(r.db.QueryRow(ctx, `SELECT `+quizColumns+` FROM quiz_submissions WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "quiz submission")
	}
	return q, nil
}

// ListByEmail 返回该邮箱的全部提交，最新在前
func (r *QuizRepository) ListByEmail(ctx context.Context, email string) ([]*model.QuizSubmission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+quizColumns+`
		FROM quiz_submissions
		WHERE email = $1
		ORDER BY created_at DESC
	`, email)
	if err != nil {
		return nil, err
	}
	return collectQuiz(rows)
}

// List 管理端分页列表
func (r *QuizRepository) List(ctx context.Context, kit *phase.Tier, limit, offset int) ([]*model.QuizSubmission, int, error) {
	var kitArg *string
	if kit != nil {
		s := string(*kit)
		kitArg = &s
	}

	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quiz_submissions WHERE ($1::text IS NULL OR preferred_kit = $1)`, kitArg).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count quiz submissions: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+quizColumns+`
		FROM quiz_submissions
		WHERE ($1::text IS NULL OR preferred_kit = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, kitArg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	subs, err := collectQuiz(rows)
	return subs, total, err
}

// ListLatestPerEmail 每个邮箱只取最新一次提交，附带提交次数
func (r *QuizRepository) ListLatestPerEmail(ctx context.Context, limit, offset int) ([]*model.QuizSubmission, map[string]int, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(DISTINCT email) FROM quiz_submissions`).Scan(&total); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to count quiz users: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+quizColumns+`
		FROM (
			SELECT DISTINCT ON (email) `+quizColumns+`
			FROM quiz_submissions
			ORDER BY email, created_at DESC
		) latest
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, nil, 0, err
	}
	subs, err := collectQuiz(rows)
	if err != nil {
		return nil, nil, 0, err
	}

	emails := make([]string, len(subs))
	for i, s := range subs {
		emails[i] = s.Email
	}
	counts := make(map[string]int, len(subs))
	if len(emails) > 0 {
		countRows, err := r.db.Query(ctx, `
			SELECT email, COUNT(*) FROM quiz_submissions WHERE email = ANY($1) GROUP BY email
		`, emails)
		if err != nil {
			return nil, nil, 0, err
		}
		defer countRows.Close()
		for countRows.Next() {
			var email string
			var n int
			if err := countRows.Scan(&email, &n); err != nil {
				return nil, nil, 0, err
			}
			counts[email] = n
		}
		if err := countRows.Err(); err != nil {
			return nil, nil, 0, err
		}
	}
	return subs, counts, total, nil
}

// LatestNames 返回 email -> 最新提交中的 full_name
func (r *QuizRepository) LatestNames(ctx context.Context, emails []string) (map[string]string, error) {
	names := make(map[string]string, len(emails))
	if len(emails) == 0 {
		return names, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (email) email, full_name
		FROM quiz_submissions
		WHERE email = ANY($1) AND full_name <> ''
		ORDER BY email, created_at DESC
	`, emails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var email, name string
		if err := rows.Scan(&email, &name); err != nil {
			return nil, err
		}
		names[email] = name
	}
	return names, rows.Err()
}
