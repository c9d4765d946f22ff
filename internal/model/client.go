package model

import (
	"time"

	"kitdash/internal/phase"
)

// Client 一个客户项目（每个 user_id 对应一个）
type Client struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"user_id"`
	Email                 string     `json:"email"`
	Name                  *string    `json:"name"`
	Plan                  phase.Tier `json:"kit_type"`
	OnboardingPercent     int        `json:"onboarding_percent"`
	OnboardingCompletedAt *time.Time `json:"onboarding_completed_at"`
	CurrentDayOf14        *int       `json:"current_day_of_14"`
	NextFromUs            *string    `json:"next_from_us"`
	NextFromYou           *string    `json:"next_from_you"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (c *Client) OnboardingFinished() bool {
	return c.OnboardingCompletedAt != nil
}

// ProgressInput 聚合进度需要的字段
func (c *Client) ProgressInput() phase.ClientProgressInput {
	return phase.ClientProgressInput{
		CurrentDayOf14: c.CurrentDayOf14,
		NextFromUs:     c.NextFromUs,
		NextFromYou:    c.NextFromYou,
	}
}

// ClientFilter 管理端列表过滤条件
type ClientFilter struct {
	Plan               *phase.Tier
	OnboardingFinished *bool
	Limit              int
	Offset             int
}

// ClientPatch 管理端可修改的项目字段，nil 表示不修改
type ClientPatch struct {
	CurrentDayOf14 *int
	NextFromUs     *string
	NextFromYou    *string
}

func (p ClientPatch) Fields() []string {
	var f []string
	if p.CurrentDayOf14 != nil {
		f = append(f, "current_day_of_14")
	}
	if p.NextFromUs != nil {
		f = append(f, "next_from_us")
	}
	if p.NextFromYou != nil {
		f = append(f, "next_from_you")
	}
	return f
}
