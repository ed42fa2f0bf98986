package service

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"task-manager/internal/model"
)

// dueSoonWindow marks open tasks due within it as urgent.
const dueSoonWindow = 48 * time.Hour

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	loc *time.Location
}

func NewReminderService(loc *time.Location) *ReminderService {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderService{loc: loc}
}

// Digest holds open tasks grouped by due date, each group sorted by due date.
type Digest struct {
	Overdue []model.Task
	DueSoon []model.Task
	Later   []model.Task
	NoDate  []model.Task
}

func (d Digest) Empty() bool {
	return len(d.Overdue)+len(d.DueSoon)+len(d.Later)+len(d.NoDate) == 0
}

// Build groups the open tasks of tasks relative to now.
func (s *ReminderService) Build(tasks []model.Task, now time.Time) Digest {
	now = now.In(s.loc)
	var pending []model.Task
	for _, task := range tasks {
		if !task.Completed {
			pending = append(pending, task)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		di, iok := pending[i].Due(s.loc)
		dj, jok := pending[j].Due(s.loc)
		switch {
		case !iok && !jok:
			return pending[i].CreatedAt.After(pending[j].CreatedAt)
		case !iok:
			return false
		case !jok:
			return true
		default:
			return di.Before(dj)
		}
	})

	var d Digest
	today := startOfDay(now)
	for _, task := range pending {
		due, ok := task.Due(s.loc)
		switch {
		case !ok:
			d.NoDate = append(d.NoDate, task)
		case due.Before(today):
			d.Overdue = append(d.Overdue, task)
		case due.Sub(today) < dueSoonWindow:
			d.DueSoon = append(d.DueSoon, task)
		default:
			d.Later = append(d.Later, task)
		}
	}
	return d
}

// DailySummary renders the digest of tasks as Telegram HTML.
func (s *ReminderService) DailySummary(user model.User, tasks []model.Task, now time.Time) string {
	now = now.In(s.loc)
	d := s.Build(tasks, now)

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	if name := strings.TrimSpace(user.Name); name != "" {
		builder.WriteString(fmt.Sprintf("Good morning, %s!\n", html.EscapeString(name)))
	}
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format(model.DateLayout)))

	if d.Empty() {
		builder.WriteString("\nNo open tasks.\n")
		return strings.TrimSpace(builder.String())
	}

	section := func(title string, tasks []model.Task) {
		if len(tasks) == 0 {
			return
		}
		builder.WriteString(fmt.Sprintf("\n<b>%s</b>\n", title))
		for _, task := range tasks {
			builder.WriteString(s.formatTask(task, now))
		}
	}
	section("⚠️ Overdue", d.Overdue)
	section("⏳ Due soon", d.DueSoon)
	section("🟢 Later", d.Later)
	section("📌 No due date", d.NoDate)

	return strings.TrimSpace(builder.String())
}

func (s *ReminderService) formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("• " + html.EscapeString(strings.TrimSpace(task.Title)))
	if c := strings.TrimSpace(task.Category); c != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(c)))
	}
	if task.Priority == model.PriorityHigh {
		sb.WriteString(" ❗")
	}
	if due, ok := task.Due(s.loc); ok {
		days := int(due.Sub(startOfDay(now)).Hours() / 24)
		switch {
		case days < 0:
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s, %d days overdue", task.DueDate, -days))
		case days == 0:
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s, today", task.DueDate))
		default:
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s, in %d days", task.DueDate, days))
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
