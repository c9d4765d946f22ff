package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"kitdash/internal/model"
)

type ActivityRepository struct {
	db *pgxpool.Pool
}

func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Insert 写入一条动态；同一 event_id 重复投递时忽略
func (r *ActivityRepository) Insert(ctx context.Context, a *model.Activity) error {
	query := `
		INSERT INTO project_activity (client_id, event_id, kind, phase_id, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, a.ClientID, a.EventID, a.Kind, a.PhaseID, a.Detail, a.OccurredAt)
	return err
}

// ListByClient 返回最近的动态
func (r *ActivityRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]model.Activity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, client_id, event_id, kind, phase_id, detail, occurred_at
		FROM project_activity
		WHERE client_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.ClientID, &a.EventID, &a.Kind, &a.PhaseID, &a.Detail, &a.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
