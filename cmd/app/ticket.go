package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	var columns string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project and its board columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var id int64
			err := a.store.RunInTransaction(ctx, func(tx storage.Tx) error {
				var err error
				if id, err = tx.CreateProject(ctx, args[0]); err != nil {
					return err
				}
				for _, name := range splitNames(columns) {
					if _, err := tx.CreateColumn(ctx, id, name); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(map[string]any{"id": id, "name": args[0]})
			}
			a.printf("Created project #%d %s\n", id, args[0])
			return nil
		},
	}
	create.Flags().StringVar(&columns, "columns", "To Do,In Progress,Done", "comma-separated board columns")
	cmd.AddCommand(create)
	return cmd
}

func newColumnCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "column",
		Short: "Manage board columns",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Append a column to the project's board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var id int64
			err = a.store.RunInTransaction(ctx, func(tx storage.Tx) error {
				if _, err := tx.GetProject(ctx, caller.ProjectID); err != nil {
					return err
				}
				id, err = tx.CreateColumn(ctx, caller.ProjectID, args[0])
				return err
			})
			if err != nil {
				return err
			}
			a.printf("Created column #%d %s\n", id, args[0])
			return nil
		},
	}, &cobra.Command{
		Use:   "list",
		Short: "List the project's columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var cols []models.Column
			err = a.store.RunInTransaction(ctx, func(tx storage.Tx) error {
				cols, err = tx.Columns(ctx, caller.ProjectID)
				return err
			})
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(cols)
			}
			for _, c := range cols {
				a.printf("#%d %s\n", c.ID, c.Name)
			}
			return nil
		},
	})
	return cmd
}

func newTicketCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Manage tickets",
	}
	cmd.AddCommand(newTicketCreateCmd(a), newTicketMoveCmd(a), newTicketColumnCmd(a), newTicketHistoryCmd(a))
	return cmd
}

func newTicketCreateCmd(a *app) *cobra.Command {
	var column string
	var points float64
	var sprint int64
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a ticket in the backlog, or in --sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			tk := models.Ticket{ProjectID: caller.ProjectID, Title: args[0]}
			if cmd.Flags().Changed("points") {
				tk.StoryPoints = &points
			}
			err = a.store.RunInTransaction(ctx, func(tx storage.Tx) error {
				if _, err := tx.GetProject(ctx, caller.ProjectID); err != nil {
					return err
				}
				cols, err := tx.Columns(ctx, caller.ProjectID)
				if err != nil {
					return err
				}
				col, err := resolveColumn(cols, column)
				if err != nil {
					return err
				}
				tk.ID = 0
				tk.ColumnID = col.ID
				return tx.CreateTicket(ctx, &tk)
			})
			if err != nil {
				return err
			}
			// MoveTicket opens the ledger entry when the sprint is active.
			if sprint > 0 {
				if tk, err = a.ctrl.MoveTicket(ctx, caller, tk.ID, &sprint); err != nil {
					return err
				}
			}
			return a.printTicket(tk)
		},
	}
	cmd.Flags().StringVar(&column, "column", "", "column name or id (default: first column)")
	cmd.Flags().Float64Var(&points, "points", 0, "story points")
	cmd.Flags().Int64Var(&sprint, "sprint", 0, "sprint to add the ticket to")
	return cmd
}

func newTicketMoveCmd(a *app) *cobra.Command {
	var sprint int64
	var backlog bool
	cmd := &cobra.Command{
		Use:   "move <ticket-id>",
		Short: "Move a ticket to a sprint or to the backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if backlog == cmd.Flags().Changed("sprint") {
				return errors.New("give exactly one of --sprint or --backlog")
			}
			var target *int64
			if !backlog {
				target = &sprint
			}
			tk, err := a.ctrl.MoveTicket(cmd.Context(), caller, id, target)
			if err != nil {
				return err
			}
			return a.printTicket(tk)
		},
	}
	cmd.Flags().Int64Var(&sprint, "sprint", 0, "target sprint")
	cmd.Flags().BoolVar(&backlog, "backlog", false, "move to the backlog")
	return cmd
}

func newTicketColumnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "column <ticket-id> <column>",
		Short: "Move a ticket to another board column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var tk models.Ticket
			err = a.store.RunInTransaction(ctx, func(tx storage.Tx) error {
				if tk, err = tx.GetTicket(ctx, id); err != nil {
					return err
				}
				if tk.ProjectID != caller.ProjectID {
					return fmt.Errorf("ticket %d: %w", id, models.ErrNotFound)
				}
				cols, err := tx.Columns(ctx, caller.ProjectID)
				if err != nil {
					return err
				}
				col, err := resolveColumn(cols, args[1])
				if err != nil {
					return err
				}
				if err := tx.SetTicketColumn(ctx, id, col.ID); err != nil {
					return err
				}
				tk.ColumnID = col.ID
				return nil
			})
			if err != nil {
				return err
			}
			return a.printTicket(tk)
		},
	}
}

func newTicketHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <ticket-id>",
		Short: "Show a ticket's ledger across sprints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			entries, err := a.ctrl.TicketHistory(cmd.Context(), caller, id)
			if err != nil {
				return err
			}
			return a.printHistory(entries)
		},
	}
}

func (a *app) printTicket(tk models.Ticket) error {
	if a.jsonOut {
		return a.printJSON(tk)
	}
	where := "backlog"
	if tk.SprintID != nil {
		where = fmt.Sprintf("sprint #%d", *tk.SprintID)
	}
	a.printf("#%d %s [%s] column #%d points %s\n", tk.ID, tk.Title, where, tk.ColumnID, formatPoints(tk.StoryPoints))
	return nil
}

// resolveColumn matches ref against column ids, then names
// (case-insensitive). An empty ref selects the first column.
func resolveColumn(cols []models.Column, ref string) (models.Column, error) {
	if len(cols) == 0 {
		return models.Column{}, errors.New("project has no columns")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return cols[0], nil
	}
	if id, err := parseID(ref); err == nil {
		for _, c := range cols {
			if c.ID == id {
				return c, nil
			}
		}
	}
	for _, c := range cols {
		if strings.EqualFold(c.Name, ref) {
			return c, nil
		}
	}
	return models.Column{}, fmt.Errorf("unknown column %q", ref)
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
