package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crm-tasks/internal/model"
)

var occurrenceCmd = &cobra.Command{
	Use:     "occurrence",
	Aliases: []string{"occ"},
	Short:   "Inspect and update materialized occurrences",
}

var occurrenceListCmd = &cobra.Command{
	Use:     "list TEMPLATE_ID",
	Aliases: []string{"ls"},
	Short:   "List the occurrences of a template by due date",
	Args:    cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if _, err := a.templates.Get(cmd.Context(), id); err != nil {
			return err
		}
		occurrences, err := a.occurrences.ListByTemplate(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(os.Stdout, newOccurrenceViews(occurrences), func(w *tableWriter) { w.occurrences(occurrences) })
	}),
}

var flagStatusNotes string

var occurrenceStatusCmd = &cobra.Command{
	Use:   "status ID STATUS",
	Short: "Set the status of an occurrence (pending, in_progress, completed, cancelled)",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		occ, err := a.occurrences.SetStatus(cmd.Context(), id, model.Status(args[1]), flagStatusNotes)
		if err != nil {
			return err
		}
		return render(os.Stdout, newOccurrenceView(occ), func(w *tableWriter) {
			w.occurrences([]model.TaskOccurrence{*occ})
		})
	}),
}

var occurrenceDeleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete a single occurrence",
	Args:    cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := a.occurrences.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Deleted occurrence %d\n", id)
		return nil
	}),
}

func init() {
	occurrenceStatusCmd.Flags().StringVar(&flagStatusNotes, "notes", "", "completion notes")
	occurrenceCmd.AddCommand(occurrenceListCmd, occurrenceStatusCmd, occurrenceDeleteCmd)
	rootCmd.AddCommand(occurrenceCmd)
}
