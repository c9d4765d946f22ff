package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"kitdash/internal/model"
	"kitdash/internal/phase"
)

// DraftStore 入驻问卷的草稿缓冲，一个 redis hash 保存一个用户在某套餐下的各步骤。
// 草稿不是权威数据，Commit 成功后删除。
type DraftStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDraftStore(rdb *redis.Client, ttl time.Duration) *DraftStore {
	return &DraftStore{rdb: rdb, ttl: ttl}
}

// DraftKey onboarding:draft:<user_id>:<tier>
func DraftKey(userID string, tier phase.Tier) string {
	return fmt.Sprintf("onboarding:draft:%s:%s", userID, tier)
}

// Save 写入单个步骤并刷新过期时间
func (d *DraftStore) Save(ctx context.Context, userID string, tier phase.Tier, step model.OnboardingStep) error {
	data, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("failed to marshal draft step: %w", err)
	}
	key := DraftKey(userID, tier)
	_, err = d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, strconv.Itoa(step.StepNumber), data)
		pipe.Expire(ctx, key, d.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Load 返回按步骤号排序的草稿；没有草稿时返回空切片
func (d *DraftStore) Load(ctx context.Context, userID string, tier phase.Tier) ([]model.OnboardingStep, error) {
	fields, err := d.rdb.HGetAll(ctx, DraftKey(userID, tier)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	steps := make([]model.OnboardingStep, 0, len(fields))
	for _, raw := range fields {
		var s model.OnboardingStep
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("corrupt draft step: %w", err)
		}
		steps = append(steps, s)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
	return steps, nil
}

func (d *DraftStore) Delete(ctx context.Context, userID string, tier phase.Tier) error {
	return d.rdb.Del(ctx, DraftKey(userID, tier)).Err()
}
