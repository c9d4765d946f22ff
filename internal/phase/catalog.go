package phase

import "fmt"

var launchPhases = []Definition{
	{
		PhaseID:     "PHASE_1",
		PhaseNumber: 1,
		Title:       "Inputs & clarity",
		Subtitle:    "Lock the message and plan.",
		DayRange:    "Days 0-2",
		ChecklistLabels: []string{
			"Onboarding steps completed",
			"Brand / strategy call completed",
			"Simple 14 day plan agreed",
		},
	},
	{
		PhaseID:     "PHASE_2",
		PhaseNumber: 2,
		Title:       "Words that sell",
		Subtitle:    "We write your 3 pages.",
		DayRange:    "Days 3-5",
		ChecklistLabels: []string{
			"Draft homepage copy ready",
			"Draft offer / services page ready",
			"Draft contact / about copy ready",
			"You reviewed and approved copy",
		},
		Links: []Link{{Label: "View copy doc"}},
	},
	{
		PhaseID:     "PHASE_3",
		PhaseNumber: 3,
		Title:       "Design & build",
		Subtitle:    "We turn copy into a 3 page site.",
		DayRange:    "Days 6-10",
		ChecklistLabels: []string{
			"Site layout built for all 3 pages",
			"Mobile checks done",
			"Testimonials and proof added",
			"Staging link shared with you",
		},
		Links: []Link{{Label: "View staging site"}},
	},
	{
		PhaseID:     "PHASE_4",
		PhaseNumber: 4,
		Title:       "Test & launch",
		Subtitle:    "We connect domain, test and go live.",
		DayRange:    "Days 11-14",
		ChecklistLabels: []string{
			"Forms tested",
			"Domain connected",
			"Final tweaks applied",
			"Loom walkthrough recorded and shared",
		},
		Links: []Link{{Label: "View live site"}, {Label: "Watch Loom walkthrough"}},
	},
}

var growthPhases = []Definition{
	{
		PhaseID:     "PHASE_1",
		PhaseNumber: 1,
		Title:       "Strategy locked in",
		Subtitle:    "Offer, goal and funnel map agreed.",
		DayRange:    "Days 0-2",
		ChecklistLabels: []string{
			"Onboarding complete",
			"Strategy / funnel call done",
			"Main offer + 90 day goal confirmed",
			"Simple funnel map agreed",
		},
	},
	{
		PhaseID:     "PHASE_2",
		PhaseNumber: 2,
		Title:       "Copy & email engine",
		Subtitle:    "We write your site copy and 5 emails.",
		DayRange:    "Days 3-5",
		ChecklistLabels: []string{
			"Draft website copy ready",
			"Draft 5-email nurture sequence ready",
			"You reviewed and approved copy",
			"Any changes locked in",
		},
		Links: []Link{{Label: "View website copy"}, {Label: "View email sequence"}},
	},
	{
		PhaseID:     "PHASE_3",
		PhaseNumber: 3,
		Title:       "Build the funnel",
		Subtitle:    "Pages, lead magnet and blog hub built.",
		DayRange:    "Days 6-10",
		ChecklistLabels: []string{
			"4-6 page site built on staging",
			"Lead magnet page + thank you page built",
			"Opt-in forms wired to your email platform",
			"Blog hub and 1-2 starter posts set up",
			"Staging link shared",
		},
		Links: []Link{{Label: "View staging funnel"}},
	},
	{
		PhaseID:     "PHASE_4",
		PhaseNumber: 4,
		Title:       "Test & handover",
		Subtitle:    "We test the full journey and go live.",
		DayRange:    "Days 11-14",
		ChecklistLabels: []string{
			"Funnel tested from first visit to booked call",
			"Domain connected",
			"Tracking checked (Analytics / pixels)",
			"5-email sequence switched on",
			"Loom walkthrough recorded and shared",
		},
		Links: []Link{{Label: "View live funnel"}, {Label: "Watch Loom walkthrough"}},
	},
}

// GetPhaseStructure 返回套餐对应的有序阶段目录。
// 返回的切片与包内数据共享底层数组，调用方不得修改。
func GetPhaseStructure(tier Tier) ([]Definition, error) {
	switch tier {
	case TierLaunch:
		return launchPhases, nil
	case TierGrowth:
		return growthPhases, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidTier, string(tier))
}

// FindPhase 在套餐目录中查找阶段
func FindPhase(tier Tier, phaseID string) (Definition, error) {
	catalog, err := GetPhaseStructure(tier)
	if err != nil {
		return Definition{}, err
	}
	for _, d := range catalog {
		if d.PhaseID == phaseID {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %s", ErrInvalidPhase, phaseID)
}

// ValidateChecklistItem 校验 phase_id 和清单项标签都属于该套餐目录
func ValidateChecklistItem(tier Tier, phaseID, label string) error {
	def, err := FindPhase(tier, phaseID)
	if err != nil {
		return err
	}
	if !def.HasLabel(label) {
		return fmt.Errorf("%w: %s for phase %s", ErrInvalidChecklistLabel, label, phaseID)
	}
	return nil
}

// InitialState 为新项目生成全部 NOT_STARTED、清单全为 false 的状态
func InitialState(tier Tier) (map[string]State, error) {
	catalog, err := GetPhaseStructure(tier)
	if err != nil {
		return nil, err
	}
	state := make(map[string]State, len(catalog))
	for _, d := range catalog {
		checklist := make(map[string]bool, len(d.ChecklistLabels))
		for _, l := range d.ChecklistLabels {
			checklist[l] = false
		}
		state[d.PhaseID] = State{Status: StatusNotStarted, Checklist: checklist}
	}
	return state, nil
}
