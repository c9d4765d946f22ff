package phase

// Merge 以目录顺序合并持久化状态。
// 状态中不在目录里的 phase_id 或清单标签会被忽略。
func Merge(catalog []Definition, state map[string]State) []Merged {
	out := make([]Merged, 0, len(catalog))
	for _, def := range catalog {
		st := state[def.PhaseID]

		status := st.Status
		if status == "" {
			status = StatusNotStarted
		}

		checklist := make([]ChecklistItem, len(def.ChecklistLabels))
		for i, label := range def.ChecklistLabels {
			checklist[i] = ChecklistItem{Label: label, IsDone: st.Checklist[label]}
		}

		out = append(out, Merged{
			PhaseID:     def.PhaseID,
			PhaseNumber: def.PhaseNumber,
			Title:       def.Title,
			Subtitle:    def.Subtitle,
			DayRange:    def.DayRange,
			Links:       def.Links,
			Status:      status,
			StartedAt:   st.StartedAt,
			CompletedAt: st.CompletedAt,
			Checklist:   checklist,
		})
	}
	return out
}
