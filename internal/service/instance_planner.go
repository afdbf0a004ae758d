package service

import (
	"time"

	"studioflow/internal/model"
)

// ClosureSet 工作室停课日期集合（YYYY-MM-DD）
type ClosureSet map[string]struct{}

// NewClosureSet 由日期列表构建停课集合
func NewClosureSet(dates []string) ClosureSet {
	set := make(ClosureSet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// Contains 日期是否停课
func (c ClosureSet) Contains(date string) bool {
	_, ok := c[date]
	return ok
}

// instanceKey 去重键 "templateID|date"
func instanceKey(templateID, date string) string {
	return templateID + "|" + date
}

// planWindow 生成窗口 [Start, End]，两端为 YYYY-MM-DD
type planWindow struct {
	today time.Time
	end   time.Time
	Start string
	End   string
}

func newPlanWindow(now time.Time, weeksAhead int) planWindow {
	today := truncateDay(now)
	end := addDays(today, weeksAhead*7)
	return planWindow{today: today, end: end, Start: formatDate(today), End: formatDate(end)}
}

func (w planWindow) contains(date string) bool {
	return date >= w.Start && date <= w.End
}

// planInput 规划输入，全部显式传入
type planInput struct {
	Templates []model.ClassTemplate
	Window    planWindow
	Closures  ClosureSet
	// Existing 窗口内已存在实例的 "templateID|date"
	Existing map[string]struct{}
	// OnceGenerated once 模板是否已产生过实例（不限窗口）
	OnceGenerated map[string]bool
}

// planInstances 计算应新建的实例行（纯函数，不访问存储）
func planInstances(in planInput) []model.ClassInstance {
	var rows []model.ClassInstance
	for i := range in.Templates {
		tpl := &in.Templates[i]
		if !tpl.Active || tpl.DayOfWeek == nil {
			continue
		}
		for _, date := range occurrences(tpl, in) {
			if in.Closures.Contains(date) {
				continue
			}
			if _, exists := in.Existing[instanceKey(tpl.TemplateID, date)]; exists {
				continue
			}
			row, err := buildInstance(tpl, date)
			if err != nil {
				// 模板钟点非法，整个模板跳过
				break
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// occurrences 按重复周期计算窗口内的候选日期（未过滤停课与已存在）
func occurrences(tpl *model.ClassTemplate, in planInput) []string {
	w := in.Window
	dow := *tpl.DayOfWeek
	first := nextWeekday(w.today, dow)

	var dates []string
	switch tpl.Recurrence {
	case model.RecurrenceOnce:
		if in.OnceGenerated[tpl.TemplateID] {
			return nil
		}
		if d := formatDate(first); w.contains(d) {
			dates = append(dates, d)
		}

	case model.RecurrenceWeekly:
		for d := first; !d.After(w.end); d = addDays(d, 7) {
			dates = append(dates, formatDate(d))
		}

	case model.RecurrenceBiweekly:
		// 相位以首次出现为锚，被跳过的日期同样推进计数
		for d, idx := first, 0; !d.After(w.end); d, idx = addDays(d, 7), idx+1 {
			if idx%2 == 0 {
				dates = append(dates, formatDate(d))
			}
		}

	case model.RecurrenceMonthly:
		month := time.Date(w.today.Year(), w.today.Month(), 1, 0, 0, 0, 0, time.UTC)
		for !month.After(w.end) {
			if d := formatDate(nextWeekday(month, dow)); w.contains(d) {
				dates = append(dates, d)
			}
			month = month.AddDate(0, 1, 0)
		}
	}
	return dates
}

// buildInstance 由模板与日期构建实例行
func buildInstance(tpl *model.ClassTemplate, date string) (model.ClassInstance, error) {
	end, err := ComputeEndTime(tpl.StartTime, tpl.DurationMin)
	if err != nil {
		return model.ClassInstance{}, err
	}
	return model.ClassInstance{
		TemplateID:  tpl.TemplateID,
		StudioID:    tpl.StudioID,
		TeacherID:   tpl.TeacherID,
		Date:        date,
		StartTime:   tpl.StartTime,
		EndTime:     end,
		MaxCapacity: tpl.Capacity,
		Status:      model.ClassStatusScheduled,
		FeedEnabled: true,
	}, nil
}
