package onboarding

import (
	"fmt"
	"strings"

	"kitdash/internal/phase"
	"kitdash/pkg/config"
)

// StepCount 每个套餐的入驻问卷固定 3 步
const StepCount = 3

// StepRule 一个入驻步骤的必填项数量和继续所需的最少完成数
type StepRule struct {
	Number        int    `json:"step_number"`
	Title         string `json:"title"`
	TimeEstimate  string `json:"time_estimate"`
	RequiredTotal int    `json:"required_fields_total"`
	MinToContinue int    `json:"min_to_continue"`
}

// RuleSet 按套餐索引的步骤规则
type RuleSet map[phase.Tier][]StepRule

func DefaultRules() RuleSet {
	return RuleSet{
		phase.TierLaunch: {
			{Number: 1, Title: "Tell us who you are", TimeEstimate: "About 5 minutes", RequiredTotal: 7, MinToContinue: 6},
			{Number: 2, Title: "Show us your brand", TimeEstimate: "About 8 minutes", RequiredTotal: 7, MinToContinue: 6},
			{Number: 3, Title: "Switch on the site", TimeEstimate: "About 5 minutes", RequiredTotal: 3, MinToContinue: 2},
		},
		phase.TierGrowth: {
			{Number: 1, Title: "Snapshot and main offer", TimeEstimate: "About 8 minutes", RequiredTotal: 12, MinToContinue: 10},
			{Number: 2, Title: "Clients, proof and content fuel", TimeEstimate: "About 10 minutes", RequiredTotal: 9, MinToContinue: 7},
			{Number: 3, Title: "Systems and launch", TimeEstimate: "About 7 minutes", RequiredTotal: 13, MinToContinue: 10},
		},
	}
}

// NewRuleSet 在默认规则上叠加配置覆盖
func NewRuleSet(cfg config.OnboardingConfig) (RuleSet, error) {
	rules := DefaultRules()
	for key, overrides := range cfg.Steps {
		tier, err := phase.ParseTier(key)
		if err != nil {
			return nil, fmt.Errorf("onboarding.steps: %w", err)
		}
		steps := rules[tier]
		for _, o := range overrides {
			if o.Step < 1 || o.Step > StepCount {
				return nil, fmt.Errorf("onboarding.steps.%s: step %d out of range", strings.ToLower(key), o.Step)
			}
			r := &steps[o.Step-1]
			if o.Title != "" {
				r.Title = o.Title
			}
			if o.TimeEstimate != "" {
				r.TimeEstimate = o.TimeEstimate
			}
			if o.RequiredTotal > 0 {
				r.RequiredTotal = o.RequiredTotal
			}
			if o.MinToContinue > 0 {
				r.MinToContinue = o.MinToContinue
			}
			if r.MinToContinue > r.RequiredTotal {
				return nil, fmt.Errorf("onboarding.steps.%s: step %d needs %d of %d fields",
					strings.ToLower(key), o.Step, r.MinToContinue, r.RequiredTotal)
			}
		}
	}
	return rules, nil
}

// For 返回套餐的规则
func (rs RuleSet) For(tier phase.Tier) ([]StepRule, error) {
	rules, ok := rs[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %q", phase.ErrInvalidTier, tier)
	}
	return rules, nil
}

// Step 返回指定步骤的规则
func (rs RuleSet) Step(tier phase.Tier, number int) (StepRule, error) {
	rules, err := rs.For(tier)
	if err != nil {
		return StepRule{}, err
	}
	if number < 1 || number > len(rules) {
		return StepRule{}, fmt.Errorf("%w: %d", ErrInvalidStep, number)
	}
	return rules[number-1], nil
}
