package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mqcontract "kitdash/contracts/mq"
	"kitdash/internal/model"
	"kitdash/internal/phase"
	"kitdash/pkg/otel"
	"kitdash/pkg/outbox"
	"kitdash/pkg/trace"
)

type OnboardingRepository struct {
	db *pgxpool.Pool
}

func NewOnboardingRepository(db *pgxpool.Pool) *OnboardingRepository {
	return &OnboardingRepository{db: db}
}

// CommitCommand 一次完整的入驻提交
type CommitCommand struct {
	UserID            string
	Email             string
	Name              *string
	Plan              phase.Tier
	OnboardingPercent int
	Steps             []model.OnboardingStep
	Now               time.Time
}

// Commit 在一个事务内：创建或更新客户、替换入驻步骤、写入初始阶段状态、写入 onboarding.completed 事件。
// 已有项目且套餐不同时返回 ErrPlanMismatch。
func (r *OnboardingRepository) Commit(ctx context.Context, cmd CommitCommand) (*model.Client, error) {
	var client *model.Client

	err := otel.WithDBSpan(ctx, "onboarding.commit", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
			existing, err := scanClient(tx.QueryRow(ctx, `
				SELECT `+clientColumns+` FROM clients WHERE user_id = $1 FOR UPDATE
			`, cmd.UserID))
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to load client: %w", err)
			}
			if existing != nil && existing.Plan != cmd.Plan {
				return fmt.Errorf("%w: enrolled in %s", ErrPlanMismatch, existing.Plan)
			}

			client, err = scanClient(tx.QueryRow(ctx, `
				INSERT INTO clients (id, user_id, email, name, plan, onboarding_percent, onboarding_completed_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (user_id) DO UPDATE SET
					email = EXCLUDED.email,
					name = COALESCE(clients.name, EXCLUDED.name),
					onboarding_percent = EXCLUDED.onboarding_percent,
					onboarding_completed_at = COALESCE(clients.onboarding_completed_at, EXCLUDED.onboarding_completed_at),
					updated_at = NOW()
				RETURNING `+clientColumns,
				uuid.NewString(), cmd.UserID, cmd.Email, cmd.Name, cmd.Plan, cmd.OnboardingPercent, cmd.Now,
			))
			if err != nil {
				return fmt.Errorf("failed to upsert client: %w", err)
			}

			if _, err := tx.Exec(ctx, `DELETE FROM onboarding_steps WHERE client_id = $1`, client.ID); err != nil {
				return fmt.Errorf("failed to clear onboarding steps: %w", err)
			}
			for _, s := range cmd.Steps {
				fields := s.Fields
				if fields == nil {
					fields = map[string]any{}
				}
				_, err := tx.Exec(ctx, `
					INSERT INTO onboarding_steps (client_id, step_number, title, status, required_fields_total,
						required_fields_completed, time_estimate, fields, started_at, completed_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				`, client.ID, s.StepNumber, s.Title, s.Status, s.RequiredFieldsTotal,
					s.RequiredFieldsCompleted, s.TimeEstimate, fields, s.StartedAt, s.CompletedAt)
				if err != nil {
					return fmt.Errorf("failed to save step %d: %w", s.StepNumber, err)
				}
			}

			if err := SeedInitial(ctx, tx, client.ID, client.Plan); err != nil {
				return err
			}

			return outbox.Enqueue(ctx, tx, mqcontract.AggregateTypeClient, client.ID, mqcontract.RoutingKeyOnboardingComplete,
				mqcontract.OnboardingCompletedPayload{
					ClientID:          client.ID,
					UserID:            client.UserID,
					Email:             client.Email,
					KitType:           string(client.Plan),
					OnboardingPercent: client.OnboardingPercent,
					TraceID:           trace.FromContext(ctx),
					OccurredAt:        cmd.Now,
				})
		})
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ListSteps 返回项目已提交的入驻步骤
func (r *OnboardingRepository) ListSteps(ctx context.Context, clientID string) ([]model.OnboardingStep, error) {
	rows, err := r.db.Query(ctx, `
		SELECT step_number, title, status, required_fields_total, required_fields_completed,
		       time_estimate, fields, started_at, completed_at
		FROM onboarding_steps
		WHERE client_id = $1
		ORDER BY step_number
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []model.OnboardingStep{}
	for rows.Next() {
		var s model.OnboardingStep
		if err := rows.Scan(&s.StepNumber, &s.Title, &s.Status, &s.RequiredFieldsTotal, &s.RequiredFieldsCompleted,
			&s.TimeEstimate, &s.Fields, &s.StartedAt, &s.CompletedAt); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
