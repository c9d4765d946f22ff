package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mqcontract "kitdash/contracts/mq"
	"kitdash/internal/model"
	"kitdash/pkg/otel"
	"kitdash/pkg/outbox"
	"kitdash/pkg/trace"
)

type ClientRepository struct {
	db *pgxpool.Pool
}

func NewClientRepository(db *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `id, user_id, email, name, plan, onboarding_percent, onboarding_completed_at,
	current_day_of_14, next_from_us, next_from_you, created_at, updated_at`

func scanClient(row pgx.Row) (*model.Client, error) {
	var c model.Client
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Email,
		&c.Name,
		&c.Plan,
		&c.OnboardingPercent,
		&c.OnboardingCompletedAt,
		&c.CurrentDayOf14,
		&c.NextFromUs,
		&c.NextFromYou,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByIdentity 按 user_id 或 email 查找客户，优先匹配 user_id
func (r *ClientRepository) FindByIdentity(ctx context.Context, userID, email string) (*model.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE user_id = $1 OR email = $2
		ORDER BY (user_id = $1) DESC, created_at DESC
		LIMIT 1
	`
	var c *model.Client
	err := otel.WithDBSpan(ctx, "clients.find_by_identity", func(ctx context.Context) error {
		var err error
		c, err = scanClient(r.db.QueryRow(ctx, query, userID, email))
		return err
	})
	if err != nil {
		return nil, notFoundOr(err, "client")
	}
	return c, nil
}

// GetByID 按项目 ID 查找
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*model.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	c, err := scanClient(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "client")
	}
	return c, nil
}

// ListByEmails 返回 email -> client，管理端补充项目摘要时使用
func (r *ClientRepository) ListByEmails(ctx context.Context, emails []string) (map[string]*model.Client, error) {
	out := make(map[string]*model.Client, len(emails))
	if len(emails) == 0 {
		return out, nil
	}
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE email = ANY($1)
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, emails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		if _, seen := out[c.Email]; !seen {
			out[c.Email] = c
		}
	}
	return out, rows.Err()
}

// List 管理端分页列表，返回当前页和总数
func (r *ClientRepository) List(ctx context.Context, f model.ClientFilter) ([]*model.Client, int, error) {
	where := `WHERE ($1::text IS NULL OR plan = $1)
		AND ($2::bool IS NULL OR (onboarding_completed_at IS NOT NULL) = $2)`

	var plan *string
	if f.Plan != nil {
		s := string(*f.Plan)
		plan = &s
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM clients `+where, plan, f.OnboardingFinished).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	query := `
		SELECT ` + clientColumns + `
		FROM clients
		` + where + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, plan, f.OnboardingFinished, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	clients := []*model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, c)
	}
	return clients, total, rows.Err()
}

// Update 修改管理端可编辑字段，并在同一事务写入 client.updated 事件
func (r *ClientRepository) Update(ctx context.Context, id string, p model.ClientPatch) (*model.Client, error) {
	var updated *model.Client
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			UPDATE clients
			SET current_day_of_14 = COALESCE($2, current_day_of_14),
			    next_from_us = COALESCE($3, next_from_us),
			    next_from_you = COALESCE($4, next_from_you),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING ` + clientColumns
		c, err := scanClient(tx.QueryRow(ctx, query, id, p.CurrentDayOf14, p.NextFromUs, p.NextFromYou))
		if err != nil {
			return notFoundOr(err, "client")
		}
		updated = c

		return outbox.Enqueue(ctx, tx, mqcontract.AggregateTypeClient, c.ID, mqcontract.RoutingKeyClientUpdated,
			mqcontract.ClientUpdatedPayload{
				ClientID:   c.ID,
				Fields:     p.Fields(),
				TraceID:    trace.FromContext(ctx),
				OccurredAt: time.Now().UTC(),
			})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Plans 返回该身份下所有项目的套餐
func (r *ClientRepository) Plans(ctx context.Context, userID, email string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT plan FROM clients WHERE user_id = $1 OR email = $2 ORDER BY created_at`, userID, email)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
