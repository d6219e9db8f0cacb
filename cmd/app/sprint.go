package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akyairhashvil/sprintledger/internal/config"
	"github.com/akyairhashvil/sprintledger/internal/lifecycle"
	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/report"
	"github.com/akyairhashvil/sprintledger/internal/tui"
	"github.com/akyairhashvil/sprintledger/internal/util"
)

func newSprintCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Manage sprints",
	}
	cmd.AddCommand(
		newSprintCreateCmd(a),
		newSprintStartCmd(a),
		newSprintCompleteCmd(a),
		newSprintReopenCmd(a),
		newSprintExtendCmd(a),
		newSprintPreviewCmd(a),
		newSprintListCmd(a),
		newSprintShowCmd(a),
		newSprintHistoryCmd(a),
		newSprintReportCmd(a),
	)
	return cmd
}

func (a *app) printSprint(s models.Sprint) error {
	if a.jsonOut {
		return a.printJSON(s)
	}
	a.printf("%s\n", describeSprint(s))
	return nil
}

func newSprintCreateCmd(a *app) *cobra.Command {
	var name, goal, start, end string
	var budget float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sprint in planning",
		Long: `Create a sprint in planning. Without --name the next free name
is generated from the project's sprints ("Sprint 4" after "Sprint 3").`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			req := lifecycle.CreateRequest{Name: name}
			if goal != "" {
				req.Goal = &goal
			}
			if cmd.Flags().Changed("budget") {
				req.Budget = &budget
			}
			if req.StartDate, err = parseDate(start); err != nil {
				return err
			}
			if req.EndDate, err = parseDate(end); err != nil {
				return err
			}
			s, err := a.ctrl.Create(cmd.Context(), caller, req)
			if err != nil {
				return err
			}
			return a.printSprint(s)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sprint name")
	cmd.Flags().StringVar(&goal, "goal", "", "sprint goal")
	cmd.Flags().StringVar(&start, "start", "", "planned start date")
	cmd.Flags().StringVar(&end, "end", "", "planned end date")
	cmd.Flags().Float64Var(&budget, "budget", 0, "capacity in story points")
	return cmd
}

func newSprintStartCmd(a *app) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "start <sprint-id>",
		Short: "Start a planning sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := a.sprintArg(args[0])
			if err != nil {
				return err
			}
			startDate, err := parseDate(start)
			if err != nil {
				return err
			}
			endDate, err := parseDate(end)
			if err != nil {
				return err
			}
			s, err := a.ctrl.Start(cmd.Context(), caller, id, startDate, endDate)
			if err != nil {
				return err
			}
			return a.printSprint(s)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "start date (default: planned date or now)")
	cmd.Flags().StringVar(&end, "end", "", "end date (default: planned date)")
	return cmd
}

func newSprintCompleteCmd(a *app) *cobra.Command {
	var action, doneCols string
	var target int64
	var createNext, yes bool
	cmd := &cobra.Command{
		Use:   "complete <sprint-id>",
		Short: "Complete the active sprint and route its tickets",
		Long: `Complete the active sprint. Tickets outside the done columns are
routed by --action:

  close_to_next     carry over to --target, or to a new sprint
  close_to_backlog  return to the backlog
  close_keep        stay in the completed sprint

On a terminal a summary is shown for confirmation unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := a.sprintArg(args[0])
			if err != nil {
				return err
			}
			act, err := lifecycle.ParseAction(action)
			if err != nil {
				return err
			}
			done, err := parseIDList(doneCols)
			if err != nil {
				return err
			}
			req := lifecycle.CompleteRequest{SprintID: id, Action: act, CreateNextSprint: createNext, DoneColumnIDs: done}
			if cmd.Flags().Changed("target") {
				req.TargetSprintID = &target
			}

			if !yes && a.interactive() {
				ok, err := a.confirmCompletion(cmd, caller, req)
				if err != nil {
					return err
				}
				if !ok {
					a.printf("Cancelled.\n")
					return nil
				}
			}

			res, err := a.ctrl.Complete(cmd.Context(), caller, req)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(res)
			}
			a.printf("%s\n", describeSprint(res.Sprint))
			d := res.Disposition
			a.printf("completed: %d  carried over: %d  moved to backlog: %d\n",
				len(d.Completed), len(d.CarriedOver), len(d.MovedToBacklog))
			if res.NextSprint != nil {
				verb := "into"
				if res.NextSprintCreated {
					verb = "into new sprint"
				}
				a.printf("carried %s %s\n", verb, describeSprint(*res.NextSprint))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&action, "action", string(lifecycle.CloseToNext), "close_to_next, close_to_backlog or close_keep")
	cmd.Flags().Int64Var(&target, "target", 0, "planning sprint that receives carried-over tickets")
	cmd.Flags().BoolVar(&createNext, "create-next", false, "always carry over into a new sprint")
	cmd.Flags().StringVar(&doneCols, "done-columns", "", "comma-separated column ids that count as done")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (a *app) confirmCompletion(cmd *cobra.Command, caller lifecycle.Caller, req lifecycle.CompleteRequest) (bool, error) {
	class, err := a.ctrl.Preview(cmd.Context(), caller, req.SprintID, req.DoneColumnIDs)
	if err != nil {
		return false, err
	}
	s, err := a.ctrl.Sprint(cmd.Context(), caller, req.SprintID)
	if err != nil {
		return false, err
	}
	summary := tui.Summary{Sprint: s, Action: req.Action, Class: class}
	if req.TargetSprintID != nil && !req.CreateNextSprint {
		if t, err := a.ctrl.Sprint(cmd.Context(), caller, *req.TargetSprintID); err == nil {
			summary.Target = t.Name
		}
	}
	return tui.Confirm(a.in, a.out, summary, report.ThemeByName(a.cfg.Report.Theme))
}

func newSprintReopenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <sprint-id>",
		Short: "Reopen a completed sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := a.sprintArg(args[0])
			if err != nil {
				return err
			}
			s, err := a.ctrl.Reopen(cmd.Context(), caller, id)
			if err != nil {
				return err
			}
			return a.printSprint(s)
		},
	}
}

func newSprintExtendCmd(a *app) *cobra.Command {
	var days int
	var end string
	cmd := &cobra.Command{
		Use:   "extend <sprint-id>",
		Short: "Move the end date of the active sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := a.sprintArg(args[0])
			if err != nil {
				return err
			}
			endDate, err := parseDate(end)
			if err != nil {
				return err
			}
			var daysArg *int
			if cmd.Flags().Changed("days") {
				daysArg = &days
			}
			s, err := a.ctrl.Extend(cmd.Context(), caller, id, daysArg, endDate)
			if err != nil {
				return err
			}
			return a.printSprint(s)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "days to add to the current end date")
	cmd.Flags().StringVar(&end, "end", "", "new end date (wins over --days)")
	return cmd
}

func newSprintPreviewCmd(a *app) *cobra.Command {
	var doneCols string
	cmd := &cobra.Command{
		Use:   "preview <sprint-id>",
		Short: "Show how completing the active sprint would classify its tickets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := a.sprintArg(args[0])
			if err != nil {
				return err
			}
			done, err := parseIDList(doneCols)
			if err != nil {
				return err
			}
			class, err := a.ctrl.Preview(cmd.Context(), caller, id, done)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(class)
			}
			a.printf("done: %d tickets, %g points\n", class.CompletedTicketCount, class.CompletedStoryPoints)
			a.printf("not done: %d tickets, %g points\n", class.IncompleteTicketCount, class.IncompleteStoryPoints)
			for _, tk := range class.Incomplete {
				a.printf("  #%d %s\n", tk.ID, tk.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&doneCols, "done-columns", "", "comma-separated column ids that count as done")
	return cmd
}

func newSprintListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the project's sprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			sprints, err := a.ctrl.Sprints(cmd.Context(), caller)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(sprints)
			}
			for _, s := range sprints {
				a.printf("%s\n", describeSprint(s))
			}
			return nil
		},
	}
}

func newSprintShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <sprint-id>",
		Short: "Show one sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := a.sprintArg(args[0])
			if err != nil {
				return err
			}
			s, err := a.ctrl.Sprint(cmd.Context(), caller, id)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(s)
			}
			a.printf("%s\n", describeSprint(s))
			if snap, ok := s.Snapshot(); ok {
				a.printf("closed %s by user %d: %d done (%g pts), %d not done (%g pts)\n",
					snap.CompletedAt.Format("2006-01-02 15:04"), snap.CompletedByID,
					snap.CompletedTicketCount, snap.CompletedStoryPoints,
					snap.IncompleteTicketCount, snap.IncompleteStoryPoints)
			}
			return nil
		},
	}
}

func newSprintHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <sprint-id>",
		Short: "Show the ledger of a sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := a.sprintArg(args[0])
			if err != nil {
				return err
			}
			entries, err := a.ctrl.SprintHistory(cmd.Context(), caller, id)
			if err != nil {
				return err
			}
			return a.printHistory(entries)
		},
	}
}

func newSprintReportCmd(a *app) *cobra.Command {
	var pdf bool
	cmd := &cobra.Command{
		Use:   "report <sprint-id>",
		Short: "Print a sprint summary, or write it as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, id, err := a.sprintArg(args[0])
			if err != nil {
				return err
			}
			// access check
			if _, err := a.ctrl.Sprint(cmd.Context(), caller, id); err != nil {
				return err
			}
			r, err := report.Load(cmd.Context(), a.store, caller.ProjectID, id)
			if err != nil {
				return err
			}
			if pdf {
				path, err := report.SavePDF(util.ReportsDir(config.AppName, a.cfg.Report.Dir), r)
				if err != nil {
					return err
				}
				a.printf("PDF report written: %s\n", path)
				return nil
			}
			return report.WriteTerminal(a.out, r, report.ThemeByName(a.cfg.Report.Theme), a.termWidth())
		},
	}
	cmd.Flags().BoolVar(&pdf, "pdf", false, "write a PDF into the reports directory")
	return cmd
}

func (a *app) printHistory(entries []models.HistoryEntry) error {
	if a.jsonOut {
		return a.printJSON(entries)
	}
	for _, e := range entries {
		exit := "open"
		if !e.Open() {
			exit = string(e.ExitStatus)
		}
		removed := "-"
		if e.RemovedAt != nil {
			removed = e.RemovedAt.Format("2006-01-02 15:04")
		}
		a.printf("ticket #%d sprint #%d %s %s -> %s (%s)\n", e.TicketID, e.SprintID, e.EntryType,
			e.AddedAt.Format("2006-01-02 15:04"), removed, exit)
	}
	return nil
}

func (a *app) sprintArg(arg string) (lifecycle.Caller, int64, error) {
	caller, err := a.caller()
	if err != nil {
		return caller, 0, err
	}
	id, err := parseID(arg)
	return caller, id, err
}

func parseIDList(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid column id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
