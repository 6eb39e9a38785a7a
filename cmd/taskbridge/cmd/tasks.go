package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"taskbridge/backend"
	"taskbridge/internal/tasksync"
	"taskbridge/internal/utils"
	"taskbridge/internal/views"
)

// newListCmd creates the 'list' subcommand
func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  "List the tasks of the selected backend, optionally only those due on one date.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			viewName, _ := cmd.Flags().GetString("view")

			view, err := views.NewLoader(a.viewsPath()).LoadView(viewName)
			if err != nil {
				return err
			}
			if date, err = utils.NormalizeDate(date); err != nil {
				return err
			}

			s, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			return a.doList(cmd.Context(), s, view, date)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("date", "d", "", "Only tasks due on this date (YYYY-MM-DD, today, +3d...)")
	cmd.Flags().StringP("view", "v", "", "View to use for displaying tasks (default, all, or custom view name)")
	return cmd
}

func (a *app) doList(ctx context.Context, s *session, view *views.View, date string) error {
	if date != "" {
		if err := s.facade.ToggleDateFilter(ctx, date); err != nil {
			return describeError(err, s.kind)
		}
	}

	state := s.facade.Snapshot()
	if s.json {
		return views.RenderJSON(a.stdout, state.Backend, state.BoardName, state.FilterDate, state.Tasks)
	}

	title := fmt.Sprintf("%s (%s)", state.BoardName, state.Backend)
	if state.Filter == tasksync.Filtered {
		title += fmt.Sprintf(", due %s", state.FilterDate)
	}
	_, _ = fmt.Fprintln(a.stdout, title)

	if len(state.Tasks) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No tasks")
		a.infoOnly()
		return nil
	}

	_, _ = fmt.Fprintln(a.stdout)
	views.NewRenderer(view, a.stdout, views.Options{
		Labels: state.Labels,
		Color:  isTerminal(a.stdout),
		Header: true,
	}).Render(state.Tasks)

	a.infoOnly()
	return nil
}

// newLabelsCmd creates the 'labels' subcommand
func newLabelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "List status labels",
		Long:  "List the status labels of the selected backend in index order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd)
			if err != nil {
				return err
			}

			labels := s.facade.Labels()
			if s.json {
				return views.RenderLabelsJSON(a.stdout, labels)
			}
			if len(labels) == 0 {
				_, _ = fmt.Fprintln(a.stdout, "No labels")
			} else {
				views.RenderLabels(a.stdout, labels, isTerminal(a.stdout))
			}
			a.infoOnly()
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newAddCmd creates the 'add' subcommand
func newAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a task",
		Long:  "Create a task. Without --status the first label of the backend is used.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.ValidateName(args[0]); err != nil {
				return err
			}
			fields, err := fieldsFromFlags(cmd)
			if err != nil {
				return err
			}
			fields.Name = backend.String(args[0])

			s, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			return a.doAdd(cmd.Context(), s, fields)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("text", "", "Task description")
	cmd.Flags().String("date", "", "Due date (YYYY-MM-DD, today, +3d...)")
	cmd.Flags().StringP("status", "s", "", "Status label")
	return cmd
}

func (a *app) doAdd(ctx context.Context, s *session, fields backend.TaskFields) error {
	if fields.Status != nil {
		if err := utils.ValidateStatus(*fields.Status, backend.LabelNames(s.facade.Labels())); err != nil {
			return err
		}
	} else if def := s.facade.DefaultStatus(); def != "" {
		fields.Status = backend.String(def)
	}

	task, err := s.facade.CreateTask(ctx, fields)
	if err != nil {
		return describeError(err, s.kind)
	}

	if s.json {
		return outputActionJSON("add", task, a.stdout)
	}
	_, _ = fmt.Fprintf(a.stdout, "Created task: %s (ID: %s)\n", task.Name, task.ID)
	a.completed()
	return nil
}

// newUpdateCmd creates the 'update' subcommand
func newUpdateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a task",
		Long:  "Change the given fields of a task. Fields without a flag are not sent. Pass --date \"\" to clear the due date.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := fieldsFromFlags(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("name") {
				name, _ := cmd.Flags().GetString("name")
				if err := utils.ValidateName(name); err != nil {
					return err
				}
				fields.Name = backend.String(name)
			}
			if fields.IsEmpty() {
				return utils.WrapWithSuggestion(fmt.Errorf("nothing to update"),
					"Pass at least one of --name, --text, --date or --status")
			}

			s, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			return a.doUpdate(cmd.Context(), s, args[0], fields)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("name", "", "New task name")
	cmd.Flags().String("text", "", "New description")
	cmd.Flags().String("date", "", "New due date (YYYY-MM-DD, today, +3d..., \"\" to clear)")
	cmd.Flags().StringP("status", "s", "", "New status label")
	return cmd
}

func (a *app) doUpdate(ctx context.Context, s *session, id string, fields backend.TaskFields) error {
	if fields.Status != nil {
		if err := utils.ValidateStatus(*fields.Status, backend.LabelNames(s.facade.Labels())); err != nil {
			return err
		}
	}
	if err := s.facade.BeginEdit(id); err != nil {
		return err
	}

	task, err := s.facade.UpdateTask(ctx, id, fields)
	if err != nil {
		s.facade.CancelEdit()
		return describeError(err, s.kind)
	}

	if s.json {
		return outputActionJSON("update", task, a.stdout)
	}
	_, _ = fmt.Fprintf(a.stdout, "Updated task: %s\n", task.Name)
	a.completed()
	return nil
}

// newDeleteCmd creates the 'delete' subcommand
func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Long:  "Delete a task. Asks for confirmation unless --no-prompt is set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			return a.doDelete(cmd.Context(), s, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func (a *app) doDelete(ctx context.Context, s *session, id string) error {
	task, ok := s.facade.Task(id)
	if !ok {
		return utils.ErrTaskNotFound(id)
	}

	if !a.cfg.NoPrompt && !s.json {
		prompt := fmt.Sprintf("Delete task %q?", task.Name)
		if !utils.PromptYesNoWithReader(prompt, a.stdin(), a.stdout) {
			_, _ = fmt.Fprintln(a.stdout, "Cancelled")
			return nil
		}
	}

	if err := s.facade.DeleteTask(ctx, id); err != nil {
		return describeError(err, s.kind)
	}

	if s.json {
		return outputActionJSON("delete", task, a.stdout)
	}
	_, _ = fmt.Fprintf(a.stdout, "Deleted task: %s\n", task.Name)
	a.completed()
	return nil
}

// fieldsFromFlags collects --text, --date and --status when they were given
func fieldsFromFlags(cmd *cobra.Command) (backend.TaskFields, error) {
	var fields backend.TaskFields
	if cmd.Flags().Changed("text") {
		text, _ := cmd.Flags().GetString("text")
		fields.Text = backend.String(text)
	}
	if cmd.Flags().Changed("date") {
		raw, _ := cmd.Flags().GetString("date")
		date, err := utils.NormalizeDate(raw)
		if err != nil {
			return fields, err
		}
		fields.Date = backend.String(date)
	}
	if cmd.Flags().Changed("status") {
		status, _ := cmd.Flags().GetString("status")
		fields.Status = backend.String(status)
	}
	return fields, nil
}

// newViewsCmd creates the 'views' subcommand
func newViewsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List available views",
		Long:  "List the built-in views and the custom views found in the views directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := views.NewLoader(a.viewsPath()).ListViews()
			if err != nil {
				return err
			}
			for _, info := range infos {
				kind := "custom"
				if info.BuiltIn {
					kind = "built-in"
				}
				_, _ = fmt.Fprintf(a.stdout, "%-16s %-9s %s\n", info.Name, kind, info.Description)
			}
			a.infoOnly()
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
