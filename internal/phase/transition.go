package phase

import (
	"encoding/json"
	"maps"
	"time"
)

// TimeUpdate 可选的时间戳覆盖。Set=false 表示请求未提供该字段，
// Set=true 且 Value=nil 表示显式清空。
type TimeUpdate struct {
	Set   bool
	Value *time.Time
}

func (t *TimeUpdate) UnmarshalJSON(b []byte) error {
	t.Set = true
	if string(b) == "null" {
		t.Value = nil
		return nil
	}
	var v time.Time
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	t.Value = &v
	return nil
}

// StatusUpdate 管理端对阶段状态的直接覆盖
type StatusUpdate struct {
	Status      *Status    `json:"status"`
	StartedAt   TimeUpdate `json:"started_at"`
	CompletedAt TimeUpdate `json:"completed_at"`
}

func (u StatusUpdate) Empty() bool {
	return u.Status == nil && !u.StartedAt.Set && !u.CompletedAt.Set
}

// DefaultState 尚未持久化的阶段状态
func DefaultState() State {
	return State{Status: StatusNotStarted, Checklist: map[string]bool{}}
}

func (s State) clone() State {
	out := s
	out.Checklist = maps.Clone(s.Checklist)
	if out.Checklist == nil {
		out.Checklist = map[string]bool{}
	}
	if out.Status == "" {
		out.Status = StatusNotStarted
	}
	return out
}

// ApplyToggle 设置单个清单项。勾选未开始（或不存在）的阶段时转为 IN_PROGRESS，
// 并在 started_at 为空时记录 now。其他组合不改变状态。
// 这是 repository.ToggleChecklistItem 中 upsert 语句的参考模型，两者必须保持一致，
// repository 的集成测试会对照它检查 SQL 的结果。
func ApplyToggle(prev *State, label string, isDone bool, now time.Time) State {
	next := DefaultState()
	if prev != nil {
		next = prev.clone()
	}
	next.Checklist[label] = isDone

	if isDone && next.Status == StatusNotStarted {
		next.Status = StatusInProgress
		if next.StartedAt == nil {
			t := now
			next.StartedAt = &t
		}
	}
	return next
}

// ApplyStatusUpdate 计算状态覆盖后的结果，显式提供的时间戳总是优先。
//   - 离开 NOT_STARTED 且 started_at 为空时记录 now
//   - 进入 DONE 时 completed_at 记为 now
//   - 回到 NOT_STARTED 时清空两个时间戳
func ApplyStatusUpdate(prev *State, u StatusUpdate, now time.Time) (State, error) {
	if u.Empty() {
		return State{}, ErrNothingToUpdate
	}
	next := DefaultState()
	if prev != nil {
		next = prev.clone()
	}

	if u.Status != nil {
		if _, err := ParseStatus(string(*u.Status)); err != nil {
			return State{}, err
		}
		next.Status = *u.Status
		switch next.Status {
		case StatusNotStarted:
			next.StartedAt = nil
			next.CompletedAt = nil
		case StatusDone:
			t := now
			next.CompletedAt = &t
		}
		if next.Status != StatusNotStarted && next.StartedAt == nil {
			t := now
			next.StartedAt = &t
		}
	}

	if u.StartedAt.Set {
		next.StartedAt = u.StartedAt.Value
	}
	if u.CompletedAt.Set {
		next.CompletedAt = u.CompletedAt.Value
	}
	return next, nil
}
