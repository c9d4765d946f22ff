package model

import "time"

type OnboardingStep struct {
	StepNumber              int            `json:"step_number"`
	Title                   string         `json:"title"`
	Status                  string         `json:"status"`
	RequiredFieldsTotal     int            `json:"required_fields_total"`
	RequiredFieldsCompleted int            `json:"required_fields_completed"`
	TimeEstimate            string         `json:"time_estimate"`
	Fields                  map[string]any `json:"fields"`
	StartedAt               *time.Time     `json:"started_at"`
	CompletedAt             *time.Time     `json:"completed_at"`
}
