package phase

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTier           = errors.New("invalid plan tier")
	ErrInvalidPhase          = errors.New("invalid phase_id")
	ErrInvalidChecklistLabel = errors.New("invalid checklist_label")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrNothingToUpdate       = errors.New("no fields to update")
)

// Tier 套餐类型，决定使用哪份阶段目录
type Tier string

const (
	TierLaunch Tier = "LAUNCH"
	TierGrowth Tier = "GROWTH"
)

// Tiers 按展示顺序列出所有套餐
var Tiers = []Tier{TierLaunch, TierGrowth}

// ParseTier 只接受两种套餐（忽略大小写和首尾空白），其他输入一律拒绝
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToUpper(strings.TrimSpace(s))); t {
	case TierLaunch, TierGrowth:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
}

func (t Tier) Valid() bool {
	return t == TierLaunch || t == TierGrowth
}

// Status 阶段状态
type Status string

const (
	StatusNotStarted      Status = "NOT_STARTED"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusWaitingOnClient Status = "WAITING_ON_CLIENT"
	StatusDone            Status = "DONE"
)

var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusWaitingOnClient, StatusDone}

// ParseStatus 精确匹配状态枚举
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q (must be one of NOT_STARTED, IN_PROGRESS, WAITING_ON_CLIENT, DONE)", ErrInvalidStatus, s)
}

type Link struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

// Definition 编译期固定的阶段定义
type Definition struct {
	PhaseID         string   `json:"phase_id"`
	PhaseNumber     int      `json:"phase_number"`
	Title           string   `json:"title"`
	Subtitle        string   `json:"subtitle"`
	DayRange        string   `json:"day_range"`
	ChecklistLabels []string `json:"checklist"`
	Links           []Link   `json:"links,omitempty"`
}

// HasLabel 判断清单项是否属于该阶段
func (d Definition) HasLabel(label string) bool {
	for _, l := range d.ChecklistLabels {
		if l == label {
			return true
		}
	}
	return false
}

// State 每个客户每个阶段持久化的状态
type State struct {
	Status      Status          `json:"status"`
	StartedAt   *time.Time      `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	Checklist   map[string]bool `json:"checklist"`
}

type ChecklistItem struct {
	Label  string `json:"label"`
	IsDone bool   `json:"is_done"`
}

// Merged 目录定义与持久化状态合并后的视图
type Merged struct {
	PhaseID     string          `json:"phase_id"`
	PhaseNumber int             `json:"phase_number"`
	Title       string          `json:"title"`
	Subtitle    string          `json:"subtitle"`
	DayRange    string          `json:"day_range"`
	Links       []Link          `json:"links,omitempty"`
	Status      Status          `json:"status"`
	StartedAt   *time.Time      `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	Checklist   []ChecklistItem `json:"checklist"`
}
