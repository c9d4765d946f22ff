package model

import (
	"time"

	"kitdash/internal/phase"
)

type QuizSubmission struct {
	ID             string      `json:"id"`
	FullName       string      `json:"full_name"`
	Email          string      `json:"email"`
	PhoneNumber    *string     `json:"phone_number"`
	BrandName      string      `json:"brand_name"`
	LogoStatus     string      `json:"logo_status"`
	BrandGoals     []string    `json:"brand_goals"`
	OnlinePresence string      `json:"online_presence"`
	Audience       []string    `json:"audience"`
	BrandStyle     string      `json:"brand_style"`
	Timeline       string      `json:"timeline"`
	PreferredKit   *phase.Tier `json:"preferred_kit"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// QuizUser 按邮箱去重后的用户视图（取最新一次提交）
type QuizUser struct {
	Email            string          `json:"email"`
	SubmissionCount  int             `json:"submission_count"`
	LatestSubmission *QuizSubmission `json:"latest_submission"`
	Project          *ProjectSummary `json:"project"`
}

// ProjectSummary 管理端列表中附带的项目摘要
type ProjectSummary struct {
	ID                 string     `json:"id"`
	KitType            phase.Tier `json:"kit_type"`
	OnboardingPercent  int        `json:"onboarding_percent"`
	OnboardingFinished bool       `json:"onboarding_finished"`
	CurrentDayOf14     *int       `json:"current_day_of_14"`
}

func SummaryOf(c *Client) *ProjectSummary {
	if c == nil {
		return nil
	}
	return &ProjectSummary{
		ID:                 c.ID,
		KitType:            c.Plan,
		OnboardingPercent:  c.OnboardingPercent,
		OnboardingFinished: c.OnboardingFinished(),
		CurrentDayOf14:     c.CurrentDayOf14,
	}
}
