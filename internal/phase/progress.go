package phase

import "math"

// TotalDays 固定的交付周期
const TotalDays = 14

// ClientProgressInput 聚合时需要的客户字段
type ClientProgressInput struct {
	CurrentDayOf14 *int
	NextFromUs     *string
	NextFromYou    *string
}

type PhaseCompletion struct {
	TotalPhases      int `json:"total_phases"`
	CompletedPhases  int `json:"completed_phases"`
	InProgressPhases int `json:"in_progress_phases"`
	NotStartedPhases int `json:"not_started_phases"`
	Percent          int `json:"phase_completion_percent"`
}

type ChecklistCompletion struct {
	TotalItems     int     `json:"total_items"`
	CompletedItems int     `json:"completed_items"`
	RemainingItems int     `json:"remaining_items"`
	Percent        float64 `json:"completion_percent"`
}

type PhaseChecklistCompletion struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

type CurrentPhase struct {
	PhaseID             string                    `json:"phase_id"`
	PhaseNumber         int                       `json:"phase_number"`
	Title               string                    `json:"title"`
	Status              Status                    `json:"status"`
	ChecklistCompletion *PhaseChecklistCompletion `json:"checklist_completion"`
}

type NextActions struct {
	FromUs  *string `json:"from_us"`
	FromYou *string `json:"from_you"`
}

type Timeline struct {
	CurrentDay      int     `json:"current_day"`
	TotalDays       int     `json:"total_days"`
	DaysRemaining   int     `json:"days_remaining"`
	PercentComplete float64 `json:"percent_complete"`
}

// Progress 看板的汇总指标
type Progress struct {
	OverallProgress   PhaseCompletion     `json:"overall_progress"`
	ChecklistProgress ChecklistCompletion `json:"checklist_progress"`
	CurrentPhase      *CurrentPhase       `json:"current_phase"`
	NextActions       NextActions         `json:"next_actions"`
	Timeline          Timeline            `json:"timeline"`
}

// Aggregate 计算合并后阶段列表的进度，纯函数
func Aggregate(phases []Merged, client ClientProgressInput) Progress {
	p := Progress{
		OverallProgress:   PhaseCompletionOf(phases),
		ChecklistProgress: ChecklistCompletionOf(phases),
		NextActions: NextActions{
			FromUs:  client.NextFromUs,
			FromYou: client.NextFromYou,
		},
		Timeline: TimelineOf(client.CurrentDayOf14),
	}

	if cur := SelectCurrentPhase(phases); cur != nil {
		done := 0
		for _, item := range cur.Checklist {
			if item.IsDone {
				done++
			}
		}
		p.CurrentPhase = &CurrentPhase{
			PhaseID:     cur.PhaseID,
			PhaseNumber: cur.PhaseNumber,
			Title:       cur.Title,
			Status:      cur.Status,
			ChecklistCompletion: &PhaseChecklistCompletion{
				Completed: done,
				Total:     len(cur.Checklist),
				Percent:   ChecklistPercent(done, len(cur.Checklist)),
			},
		}
	}
	return p
}

func PhaseCompletionOf(phases []Merged) PhaseCompletion {
	c := PhaseCompletion{TotalPhases: len(phases)}
	for _, ph := range phases {
		switch ph.Status {
		case StatusDone:
			c.CompletedPhases++
		case StatusInProgress:
			c.InProgressPhases++
		case StatusNotStarted:
			c.NotStartedPhases++
		}
	}
	c.Percent = PhasePercent(c.CompletedPhases, c.TotalPhases)
	return c
}

func ChecklistCompletionOf(phases []Merged) ChecklistCompletion {
	var c ChecklistCompletion
	for _, ph := range phases {
		for _, item := range ph.Checklist {
			c.TotalItems++
			if item.IsDone {
				c.CompletedItems++
			}
		}
	}
	c.RemainingItems = c.TotalItems - c.CompletedItems
	c.Percent = ChecklistPercent(c.CompletedItems, c.TotalItems)
	return c
}

// SelectCurrentPhase 优先级：IN_PROGRESS > WAITING_ON_CLIENT > 编号最大的 DONE > 第一个阶段
func SelectCurrentPhase(phases []Merged) *Merged {
	if len(phases) == 0 {
		return nil
	}
	for i := range phases {
		if phases[i].Status == StatusInProgress {
			return &phases[i]
		}
	}
	for i := range phases {
		if phases[i].Status == StatusWaitingOnClient {
			return &phases[i]
		}
	}
	var latestDone *Merged
	for i := range phases {
		if phases[i].Status == StatusDone && (latestDone == nil || phases[i].PhaseNumber > latestDone.PhaseNumber) {
			latestDone = &phases[i]
		}
	}
	if latestDone != nil {
		return latestDone
	}
	return &phases[0]
}

func TimelineOf(currentDayOf14 *int) Timeline {
	day := 0
	if currentDayOf14 != nil {
		day = *currentDayOf14
	}
	return Timeline{
		CurrentDay:      day,
		TotalDays:       TotalDays,
		DaysRemaining:   max(0, TotalDays-day),
		PercentComplete: roundHalfUp(float64(day)/TotalDays*1000) / 10,
	}
}

// PhasePercent 整数百分比，total 为 0 时返回 0
func PhasePercent(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(roundHalfUp(float64(completed) / float64(total) * 100))
}

// ChecklistPercent 保留一位小数的百分比，total 为 0 时返回 0
func ChecklistPercent(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return roundHalfUp(float64(completed)/float64(total)*1000) / 10
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
