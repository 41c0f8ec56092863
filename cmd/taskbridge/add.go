package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskbridge/internal/board"
	"taskbridge/internal/model"
)

type addOptions struct {
	description string
	status      string
	priority    string
	assignees   []string
	clientID    string
	start       string
	due         string
	tags        []string
	frequency   string
	days        []string
	dayOfMonth  int
	until       string
}

func newAddCommand(a *app) *cobra.Command {
	var opts addOptions
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a task",
		Example: `  taskbridge add "Send invoices" --due 2026-02-01 --assignee u1
  taskbridge add "Standup notes" --repeat weekly --days monday,thursday --until 2026-06-30`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.openClient(ctx)
			if err != nil {
				return err
			}
			defer c.close(context.WithoutCancel(ctx))
			// A current local copy keeps today's occurrence from being
			// created twice; the gateway drops a duplicate either way.
			c.start(ctx, a.cfg.RequestTimeout)

			in := board.TaskInput{
				Title:       strings.Join(args, " "),
				Description: opts.description,
				Status:      model.Status(opts.status),
				Priority:    model.Priority(opts.priority),
				AssigneeIDs: opts.assignees,
				ClientID:    opts.clientID,
				StartDate:   opts.start,
				DueDate:     opts.due,
				Tags:        opts.tags,
			}
			if opts.frequency != "" {
				in.Recurrence = &model.Recurrence{
					Enabled:    true,
					Frequency:  model.Frequency(strings.ToLower(opts.frequency)),
					DaysOfWeek: opts.days,
					DayOfMonth: opts.dayOfMonth,
					EndDate:    opts.until,
				}
			}

			task, child, err := c.board.CreateTask(in)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %s %q (due %s)\n", task.ID, task.Title, task.DueDate)
			if child != nil {
				fmt.Fprintf(out, "created today's occurrence %s\n", child.ID)
			}
			if err := flushOrReport(ctx, c, a.cfg.RequestTimeout); err != nil {
				if c.cacheDB == nil {
					return err
				}
				fmt.Fprintf(out, "saved locally, will be delivered on the next run: %v\n", err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.description, "description", "", "task description")
	f.StringVar(&opts.status, "status", "", "todo, inprogress, review or done")
	f.StringVar(&opts.priority, "priority", "", "low, medium, high or critical")
	f.StringSliceVar(&opts.assignees, "assignee", nil, "assignee user ids")
	f.StringVar(&opts.clientID, "client", "", "client id")
	f.StringVar(&opts.start, "start", "", "start date (default today)")
	f.StringVar(&opts.due, "due", "", "due date")
	f.StringSliceVar(&opts.tags, "tag", nil, "tags")
	f.StringVar(&opts.frequency, "repeat", "", "daily, weekly or monthly")
	f.StringSliceVar(&opts.days, "days", nil, "weekdays for weekly tasks")
	f.IntVar(&opts.dayOfMonth, "day-of-month", 0, "day for monthly tasks")
	f.StringVar(&opts.until, "until", "", "last day a recurring task may occur")
	return cmd
}
