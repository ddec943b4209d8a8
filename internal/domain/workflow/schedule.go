package workflow

import "time"

// ScheduledTask is a task with its computed due date
type ScheduledTask struct {
	Title   string    `json:"title"`
	Phase   string    `json:"phase"`
	DueDate time.Time `json:"due_date"`
}

// ScheduledMilestone is a milestone with its computed date
type ScheduledMilestone struct {
	Name    string    `json:"name"`
	DueDate time.Time `json:"due_date"`
}

// Schedule is a plan laid out from a start date
type Schedule struct {
	StartDate  time.Time            `json:"start_date"`
	EndDate    time.Time            `json:"end_date"`
	TotalDays  int                  `json:"total_days"`
	Tasks      []ScheduledTask      `json:"tasks"`
	Milestones []ScheduledMilestone `json:"milestones"`
}

// Schedule lays out the plan from start. Tasks of a phase are due when the
// phase ends; phases run back to back. The end date is the later of the last
// phase end and the last milestone.
func (p *Plan) Schedule(start time.Time) Schedule {
	start = Day(start)
	s := Schedule{
		StartDate:  start,
		Tasks:      []ScheduledTask{},
		Milestones: make([]ScheduledMilestone, 0, len(p.Milestones)),
	}

	elapsed := 0
	for _, ph := range p.Phases {
		elapsed += ph.DurationDays
		due := start.AddDate(0, 0, elapsed)
		for _, t := range ph.Tasks {
			s.Tasks = append(s.Tasks, ScheduledTask{Title: t, Phase: ph.Name, DueDate: due})
		}
	}

	end := elapsed
	for _, m := range p.Milestones {
		s.Milestones = append(s.Milestones, ScheduledMilestone{Name: m.Name, DueDate: start.AddDate(0, 0, m.OffsetDay)})
		if m.OffsetDay > end {
			end = m.OffsetDay
		}
	}

	s.TotalDays = end
	s.EndDate = start.AddDate(0, 0, end)
	return s
}

// Day truncates t to midnight UTC of its calendar date
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
