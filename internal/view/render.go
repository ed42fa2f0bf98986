package view

import (
	"fmt"
	"html"
	"strings"
	"time"

	"task-manager/internal/model"
)

// Fallback is shown when an error carries no message.
const Fallback = "Something went wrong"

const (
	iconDefault = "🟢"
	iconDue     = "⏳"
	iconOverdue = "⚠️"
	iconDone    = "✅"
)

func escape(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// Error renders the error field of a slice.
func Error(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = Fallback
	}
	return "⚠️ " + html.EscapeString(msg)
}

// Loading renders a placeholder for a slice with a call in flight.
func Loading(what string) string {
	return fmt.Sprintf("⏳ Loading %s…", what)
}

// Tasks renders a numbered task list. Numbers are 1-based positions in tasks.
func Tasks(title string, tasks []model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>%s</b>\n", escape(title)))
	if len(tasks) == 0 {
		b.WriteString("No tasks here. Add one with /newtask.")
		return b.String()
	}
	b.WriteByte('\n')
	for i, t := range tasks {
		b.WriteString(taskLine(i+1, t, now))
	}
	return strings.TrimSpace(b.String())
}

func taskLine(n int, t model.Task, now time.Time) string {
	icon := iconDefault
	due, hasDue := t.Due(now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case t.Completed:
		icon = iconDone
	case hasDue && due.Before(today):
		icon = iconOverdue
	case hasDue && due.Sub(today) < 48*time.Hour:
		icon = iconDue
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%d.</b> %s", icon, n, escape(t.Title)))
	if t.Category != "" {
		b.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(t.Category)))
	}
	b.WriteByte('\n')
	var meta []string
	if t.DueDate != "" {
		meta = append(meta, "due "+t.DueDate)
	}
	if t.Priority != "" {
		meta = append(meta, string(t.Priority))
	}
	if len(t.Comments) > 0 {
		meta = append(meta, fmt.Sprintf("💬 %d", len(t.Comments)))
	}
	if len(meta) > 0 {
		b.WriteString("   " + strings.Join(meta, " · ") + "\n")
	}
	return b.String()
}

// TaskDetail renders one task with its comments.
func TaskDetail(n int, t model.Task) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%d. %s</b>\n", n, escape(t.Title)))
	status := "open"
	if t.Completed {
		status = "completed"
	}
	category := t.Category
	if category == "" {
		category = "none"
	}
	due := t.DueDate
	if due == "" {
		due = "none"
	}
	b.WriteString(fmt.Sprintf("Status: %s\nCategory: %s\nDue: %s\nPriority: %s\n", status, escape(category), due, t.Priority))
	if len(t.Comments) == 0 {
		b.WriteString("\nNo comments yet. Add one with /comment " + fmt.Sprint(n) + " text.")
		return b.String()
	}
	b.WriteString("\n<b>Comments</b>\n")
	for _, c := range t.Comments {
		b.WriteString("• " + escape(c) + "\n")
	}
	return strings.TrimSpace(b.String())
}

// Categories renders a numbered category list.
func Categories(categories []model.Category) string {
	if len(categories) == 0 {
		return "📂 No categories yet. Create one with /newcategory name."
	}
	var b strings.Builder
	b.WriteString("📂 <b>Categories</b>\n")
	for i, c := range categories {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, escape(c.Name)))
	}
	return strings.TrimSpace(b.String())
}

// Lists renders a numbered list of lists, marking the ones shared with uid.
func Lists(lists []model.List, uid string) string {
	if len(lists) == 0 {
		return "🗂 No lists yet. Create one with /newlist name."
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Lists</b>\n")
	for i, l := range lists {
		line := fmt.Sprintf("%d. %s", i+1, escape(l.Name))
		if l.OwnerID != uid {
			line += " <i>(shared with you)</i>"
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimSpace(b.String())
}

// ListDetail renders a list with its items and collaborators.
func ListDetail(list model.List, items []model.ListItem, collaborators []model.Collaborator) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗂 <b>%s</b>\n", escape(list.Name)))
	if len(items) == 0 {
		b.WriteString("No items.\n")
	}
	for i, it := range items {
		mark := "▫️"
		if it.Completed {
			mark = iconDone
		}
		title := it.Title
		if title == "" {
			title = it.TaskID
		}
		b.WriteString(fmt.Sprintf("%d. %s %s\n", i+1, mark, escape(title)))
	}
	b.WriteString("\n<b>Collaborators</b>\n")
	if len(collaborators) == 0 {
		b.WriteString("Only you.")
		return b.String()
	}
	for i, c := range collaborators {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, escape(c.Email)))
	}
	return strings.TrimSpace(b.String())
}

// Profile renders the signed-in user.
func Profile(u *model.User) string {
	if u == nil {
		return "You are not signed in. Use /signin email password."
	}
	name := u.Name
	if name == "" {
		name = "not set"
	}
	var b strings.Builder
	b.WriteString("👤 <b>Profile</b>\n")
	b.WriteString(fmt.Sprintf("Email: %s\nName: %s\n", escape(u.Email), escape(name)))
	if u.AvatarURL != "" {
		b.WriteString(fmt.Sprintf("Avatar: %s\n", escape(u.AvatarURL)))
	}
	b.WriteString(fmt.Sprintf("Member since: %s", u.CreatedAt.Format(model.DateLayout)))
	return b.String()
}

// ShortTitle cuts title to maxLen runes for button labels.
func ShortTitle(title string, maxLen int) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
