package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"taskbridge/internal/dates"
	"taskbridge/internal/model"
)

// DigestService builds the human-readable summary sent after each sweep.
type DigestService struct {
	tasks     *TaskService
	directory *DirectoryService
}

func NewDigestService(tasks *TaskService, directory *DirectoryService) *DigestService {
	return &DigestService{tasks: tasks, directory: directory}
}

// DailySummary lists the occurrences created today and every task still
// open past its due date.
func (s *DigestService) DailySummary(ctx context.Context, today string, created []model.Task) (string, error) {
	tasks, err := s.tasks.Tasks(ctx)
	if err != nil {
		return "", err
	}
	names, err := s.directory.UserNames(ctx)
	if err != nil {
		return "", err
	}
	clients, err := s.directory.ClientNames(ctx)
	if err != nil {
		return "", err
	}

	overdue := Overdue(tasks, today)
	fresh := append([]model.Task(nil), created...)
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].Title < fresh[j].Title })

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", today))

	builder.WriteString("♻️ <b>New occurrences</b>\n")
	if len(fresh) == 0 {
		builder.WriteString("nothing scheduled today\n")
	} else {
		for _, task := range fresh {
			builder.WriteString(formatTask(task, names, clients, today))
		}
	}

	builder.WriteString("\n⚠️ <b>Overdue</b>\n")
	if len(overdue) == 0 {
		builder.WriteString("nothing overdue\n")
	} else {
		for _, task := range overdue {
			builder.WriteString(formatTask(task, names, clients, today))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// Overdue returns open tasks due before today, oldest first. Mothers are
// templates and never count.
func Overdue(tasks []model.Task, today string) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.IsMother() || t.Status == model.StatusDone || !dates.Valid(t.DueDate) {
			continue
		}
		if dates.Compare(t.DueDate, today) < 0 {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DueDate != out[j].DueDate {
			return out[i].DueDate < out[j].DueDate
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func formatTask(task model.Task, names, clients map[string]string, today string) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case dates.Compare(task.DueDate, today) < 0:
		icon = "⚠️"
	case task.Priority == model.PriorityHigh || task.Priority == model.PriorityCritical:
		icon = "🔥"
	}
	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(task.Title))))

	if task.ClientID != nil {
		if name := strings.TrimSpace(clients[*task.ClientID]); name != "" {
			sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name)))
		}
	}

	var who []string
	for _, id := range task.AssigneeIDs {
		if name, ok := names[id]; ok && strings.TrimSpace(name) != "" {
			who = append(who, html.EscapeString(name))
		}
	}
	if len(who) > 0 {
		sb.WriteString(fmt.Sprintf("\n   👤 %s", strings.Join(who, ", ")))
	}

	if dates.Compare(task.DueDate, today) < 0 {
		sb.WriteString(fmt.Sprintf("\n   ⏰ due %s, <b>overdue</b>", task.DueDate))
	} else {
		sb.WriteString(fmt.Sprintf("\n   ⏰ due %s", task.DueDate))
	}

	sb.WriteByte('\n')
	return sb.String()
}
