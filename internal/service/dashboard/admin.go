package dashboard

import (
	"context"

	"kitdash/internal/model"
	"kitdash/internal/phase"
)

// ClientSummary 管理端客户列表的一行
type ClientSummary struct {
	ProjectID          string     `json:"project_id"`
	UserID             string     `json:"user_id"`
	Email              string     `json:"email"`
	Name               *string    `json:"name"`
	KitType            phase.Tier `json:"kit_type"`
	OnboardingFinished bool       `json:"onboarding_finished"`
	OnboardingPercent  int        `json:"onboarding_percent"`
	CurrentDayOf14     *int       `json:"current_day_of_14"`
	NextFromUs         *string    `json:"next_from_us"`
	NextFromYou        *string    `json:"next_from_you"`
	CreatedAt          string     `json:"created_at"`
	UpdatedAt          string     `json:"updated_at"`
}

type ClientList struct {
	Clients []ClientSummary `json:"clients"`
	Total   int             `json:"total"`
	Count   int             `json:"count"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

// ListClients 分页列出客户；没有名字的客户用最新问卷里的 full_name
func (s *Service) ListClients(ctx context.Context, f model.ClientFilter) (*ClientList, error) {
	clients, total, err := s.clients.List(ctx, f)
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(clients))
	for _, c := range clients {
		if c.Name == nil {
			emails = append(emails, c.Email)
		}
	}
	names, err := s.quizzes.LatestNames(ctx, emails)
	if err != nil {
		return nil, err
	}

	out := &ClientList{
		Clients: make([]ClientSummary, 0, len(clients)),
		Total:   total,
		Limit:   f.Limit,
		Offset:  f.Offset,
		HasMore: f.Offset+f.Limit < total,
	}
	for _, c := range clients {
		name := c.Name
		if name == nil {
			if n, ok := names[c.Email]; ok {
				name = &n
			}
		}
		out.Clients = append(out.Clients, ClientSummary{
			ProjectID:          c.ID,
			UserID:             c.UserID,
			Email:              c.Email,
			Name:               name,
			KitType:            c.Plan,
			OnboardingFinished: c.OnboardingFinished(),
			OnboardingPercent:  c.OnboardingPercent,
			CurrentDayOf14:     c.CurrentDayOf14,
			NextFromUs:         c.NextFromUs,
			NextFromYou:        c.NextFromYou,
			CreatedAt:          c.CreatedAt.Format(timeFormat),
			UpdatedAt:          c.UpdatedAt.Format(timeFormat),
		})
	}
	out.Count = len(out.Clients)
	return out, nil
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// ProjectPhasesFilter 管理端阶段总览的过滤条件
type ProjectPhasesFilter struct {
	Plan   *phase.Tier
	Status *phase.Status
	Limit  int
	Offset int
}

type ProjectPhasesList struct {
	Projects []Dashboard `json:"projects"`
	Total    int         `json:"total"`
	Limit    int         `json:"limit"`
	Offset   int         `json:"offset"`
	HasMore  bool        `json:"has_more"`
}

// ListProjectPhases 列出项目及其合并后的阶段。指定 status 时只保留该状态的阶段，
// 没有匹配阶段的项目被过滤掉；进度始终按全部阶段计算。
func (s *Service) ListProjectPhases(ctx context.Context, f ProjectPhasesFilter) (*ProjectPhasesList, error) {
	clients, total, err := s.clients.List(ctx, model.ClientFilter{Plan: f.Plan, Limit: f.Limit, Offset: f.Offset})
	if err != nil {
		return nil, err
	}

	out := &ProjectPhasesList{
		Projects: []Dashboard{},
		Total:    total,
		Limit:    f.Limit,
		Offset:   f.Offset,
		HasMore:  f.Offset+f.Limit < total,
	}
	for _, c := range clients {
		d, err := s.dashboardFor(ctx, c)
		if err != nil {
			return nil, err
		}
		if f.Status != nil {
			var kept []phase.Merged
			for _, ph := range d.Project.Phases {
				if ph.Status == *f.Status {
					kept = append(kept, ph)
				}
			}
			if len(kept) == 0 {
				continue
			}
			d.Project.Phases = kept
		}
		out.Projects = append(out.Projects, *d)
	}
	return out, nil
}
