package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mqcontract "kitdash/contracts/mq"
	"kitdash/internal/phase"
	"kitdash/pkg/otel"
	"kitdash/pkg/outbox"
	"kitdash/pkg/trace"
)

type PhaseStateRepository struct {
	db *pgxpool.Pool
}

func NewPhaseStateRepository(db *pgxpool.Pool) *PhaseStateRepository {
	return &PhaseStateRepository{db: db}
}

// ToggleCommand 单个清单项的写入
type ToggleCommand struct {
	ClientID  string
	PhaseID   string
	Label     string
	IsDone    bool
	ActorRole string
	Now       time.Time
}

func scanState(row pgx.Row) (phase.State, error) {
	var s phase.State
	err := row.Scan(&s.Status, &s.StartedAt, &s.CompletedAt, &s.Checklist)
	if s.Checklist == nil {
		s.Checklist = map[string]bool{}
	}
	return s, err
}

// ListByClient 读取客户的全部阶段状态
func (r *PhaseStateRepository) ListByClient(ctx context.Context, clientID string) (map[string]phase.State, error) {
	query := `
		SELECT phase_id, status, started_at, completed_at, checklist
		FROM client_phase_state
		WHERE client_id = $1
		ORDER BY phase_id
	`
	states := map[string]phase.State{}
	err := otel.WithDBSpan(ctx, "client_phase_state.list", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, clientID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var phaseID string
			var s phase.State
			if err := rows.Scan(&phaseID, &s.Status, &s.StartedAt, &s.CompletedAt, &s.Checklist); err != nil {
				return err
			}
			states[phaseID] = s
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list phase states: %w", err)
	}
	return states, nil
}

// Get 读取单个阶段状态；不存在时返回 nil
func (r *PhaseStateRepository) Get(ctx context.Context, clientID, phaseID string) (*phase.State, error) {
	query := `
		SELECT status, started_at, completed_at, checklist
		FROM client_phase_state
		WHERE client_id = $1 AND phase_id = $2
	`
	s, err := scanState(r.db.QueryRow(ctx, query, clientID, phaseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ToggleChecklistItem 用单条 upsert 合并一个 jsonb 键，同 (client, phase) 的并发勾选不会互相覆盖。
// 勾选未开始的阶段时在同一语句里转为 IN_PROGRESS。事件与状态在同一事务提交。
func (r *PhaseStateRepository) ToggleChecklistItem(ctx context.Context, cmd ToggleCommand) (phase.State, error) {
	upsert := `
		INSERT INTO client_phase_state (client_id, phase_id, status, started_at, checklist, updated_at)
		VALUES (
			$1, $2,
			CASE WHEN $4 THEN 'IN_PROGRESS' ELSE 'NOT_STARTED' END,
			CASE WHEN $4 THEN $5::timestamptz ELSE NULL END,
			jsonb_build_object($3::text, $4::bool),
			$5
		)
		ON CONFLICT (client_id, phase_id) DO UPDATE SET
			checklist = client_phase_state.checklist || jsonb_build_object($3::text, $4::bool),
			status = CASE
				WHEN $4 AND client_phase_state.status = 'NOT_STARTED' THEN 'IN_PROGRESS'
				ELSE client_phase_state.status
			END,
			started_at = CASE
				WHEN $4 AND client_phase_state.status = 'NOT_STARTED'
					THEN COALESCE(client_phase_state.started_at, $5::timestamptz)
				ELSE client_phase_state.started_at
			END,
			updated_at = $5
		RETURNING status, started_at, completed_at, checklist
	`

	var next phase.State
	err := otel.WithDBSpan(ctx, "client_phase_state.toggle", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
			var err error
			next, err = scanState(tx.QueryRow(ctx, upsert, cmd.ClientID, cmd.PhaseID, cmd.Label, cmd.IsDone, cmd.Now))
			if err != nil {
				return fmt.Errorf("failed to upsert phase state: %w", err)
			}

			return outbox.Enqueue(ctx, tx, mqcontract.AggregateTypeClient, cmd.ClientID, mqcontract.RoutingKeyChecklistToggled,
				mqcontract.ChecklistToggledPayload{
					ClientID:       cmd.ClientID,
					PhaseID:        cmd.PhaseID,
					ChecklistLabel: cmd.Label,
					IsDone:         cmd.IsDone,
					Status:         string(next.Status),
					ActorRole:      cmd.ActorRole,
					TraceID:        trace.FromContext(ctx),
					OccurredAt:     cmd.Now,
				})
		})
	})
	if err != nil {
		return phase.State{}, err
	}
	return next, nil
}

// UpdateStatus 在事务中锁定阶段行，用 phase.ApplyStatusUpdate 计算结果后写回。
// 返回更新前的状态（行原本不存在时为 NOT_STARTED）与更新后的状态。
func (r *PhaseStateRepository) UpdateStatus(
	ctx context.Context,
	clientID, phaseID string,
	u phase.StatusUpdate,
	now time.Time,
) (phase.Status, phase.State, error) {
	var (
		from phase.Status
		next phase.State
	)

	err := otel.WithDBSpan(ctx, "client_phase_state.update_status", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
			var inserted bool
			err := tx.QueryRow(ctx, `
				INSERT INTO client_phase_state (client_id, phase_id)
				VALUES ($1, $2)
				ON CONFLICT (client_id, phase_id) DO NOTHING
				RETURNING true
			`, clientID, phaseID).Scan(&inserted)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to seed phase state: %w", err)
			}

			current, err := scanState(tx.QueryRow(ctx, `
				SELECT status, started_at, completed_at, checklist
				FROM client_phase_state
				WHERE client_id = $1 AND phase_id = $2
				FOR UPDATE
			`, clientID, phaseID))
			if err != nil {
				return fmt.Errorf("failed to lock phase state: %w", err)
			}

			var prev *phase.State
			if !inserted {
				prev = &current
			}
			from = current.Status

			next, err = phase.ApplyStatusUpdate(prev, u, now)
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx, `
				UPDATE client_phase_state
				SET status = $3, started_at = $4, completed_at = $5, updated_at = $6
				WHERE client_id = $1 AND phase_id = $2
			`, clientID, phaseID, next.Status, next.StartedAt, next.CompletedAt, now)
			if err != nil {
				return fmt.Errorf("failed to update phase state: %w", err)
			}

			return outbox.Enqueue(ctx, tx, mqcontract.AggregateTypeClient, clientID, mqcontract.RoutingKeyPhaseStatusChanged,
				mqcontract.PhaseStatusChangedPayload{
					ClientID:    clientID,
					PhaseID:     phaseID,
					From:        string(from),
					To:          string(next.Status),
					StartedAt:   next.StartedAt,
					CompletedAt: next.CompletedAt,
					TraceID:     trace.FromContext(ctx),
					OccurredAt:  now,
				})
		})
	})
	if err != nil {
		return "", phase.State{}, err
	}
	return from, next, nil
}

// SeedInitial 为新项目写入初始阶段状态，已存在的行保持不变
func SeedInitial(ctx context.Context, q DBTX, clientID string, tier phase.Tier) error {
	initial, err := phase.InitialState(tier)
	if err != nil {
		return err
	}
	for phaseID, s := range initial {
		_, err := q.Exec(ctx, `
			INSERT INTO client_phase_state (client_id, phase_id, status, checklist)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (client_id, phase_id) DO NOTHING
		`, clientID, phaseID, s.Status, s.Checklist)
		if err != nil {
			return fmt.Errorf("failed to seed phase %s: %w", phaseID, err)
		}
	}
	return nil
}
