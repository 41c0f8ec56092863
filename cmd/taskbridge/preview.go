package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskbridge/internal/dates"
	"taskbridge/internal/recurrence"
)

func newPreviewCommand(a *app) *cobra.Command {
	var from, to string
	var days int
	cmd := &cobra.Command{
		Use:   "preview TASK_ID",
		Short: "List the days a recurring task occurs on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			norm := a.cfg.Dates()
			tasks, err := a.newGateway().Tasks(ctx)
			if err != nil {
				return err
			}

			start, err := norm.FromString(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end := ""
			if to != "" {
				if end, err = norm.FromString(to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			} else if end, err = dates.AddDays(start, days-1); err != nil {
				return err
			}

			for _, t := range tasks {
				if t.ID != args[0] {
					continue
				}
				if !t.IsMother() {
					return fmt.Errorf("task %s is not recurring", t.ID)
				}
				occ, err := recurrence.NewEngine().Occurrences(t, start, end)
				if err != nil {
					return err
				}
				idx := recurrence.NewIndex(tasks)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s occurs %d times between %s and %s (%d occurrences stored so far)\n",
					t.Title, len(occ), start, end, len(idx.Children(t.ID)))
				for _, day := range occ {
					if idx.Has(t.ID, day) {
						fmt.Fprintf(out, "  %s  stored\n", day)
						continue
					}
					fmt.Fprintf(out, "  %s\n", day)
				}
				return nil
			}
			return fmt.Errorf("task %s not found", args[0])
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (default today)")
	cmd.Flags().StringVar(&to, "to", "", "last day")
	cmd.Flags().IntVar(&days, "days", 30, "number of days when --to is not given")
	return cmd
}
