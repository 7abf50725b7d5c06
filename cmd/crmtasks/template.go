package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"crm-tasks/internal/date"
	"crm-tasks/internal/model"
	"crm-tasks/internal/recurrence"
	"crm-tasks/internal/service"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tpl"},
	Short:   "Manage recurring task templates",
}

// templateFlags are the field flags shared by create and update.
type templateFlags struct {
	title, description, priority, category, taskType string
	assignee, createdBy, office                      uint
	subject, dueTime, dueTimeDetails                 string
	reminderTime, reminderOption                     string
	calendarSync                                     bool

	frequency, weekdays  string
	interval, dayOfMonth int
	start, end           string
}

func (f *templateFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "task title")
	fs.StringVar(&f.description, "description", "", "task description")
	fs.StringVar(&f.priority, "priority", "", "priority (low, medium, high)")
	fs.StringVar(&f.category, "category", "", "task category")
	fs.StringVar(&f.taskType, "type", "", "task type")
	fs.UintVar(&f.assignee, "assignee", 0, "assigned user ID")
	fs.UintVar(&f.createdBy, "created-by", 0, "creating user ID")
	fs.UintVar(&f.office, "office", 0, "office ID")
	fs.StringVar(&f.subject, "subject", "", "subject as kind:id (person, church, contact)")
	fs.StringVar(&f.dueTime, "due-time", "", "due time HH:MM")
	fs.StringVar(&f.dueTimeDetails, "due-time-details", "", "free-form due time details")
	fs.StringVar(&f.reminderTime, "reminder-time", "", "reminder time HH:MM")
	fs.StringVar(&f.reminderOption, "reminder-option", "", "reminder option")
	fs.BoolVar(&f.calendarSync, "calendar-sync", false, "sync occurrences to the calendar")

	fs.StringVar(&f.frequency, "frequency", "", "recurrence frequency (daily, weekly, monthly)")
	fs.IntVar(&f.interval, "interval", 1, "repeat every N days, weeks or months")
	fs.StringVar(&f.weekdays, "weekdays", "", "weekly days, e.g. mon,wed,fri")
	fs.IntVar(&f.dayOfMonth, "day-of-month", 0, "monthly day 1-31 (0 keeps the start day)")
	fs.StringVar(&f.start, "start", "", "first due date YYYY-MM-DD")
	fs.StringVar(&f.end, "end", "", "last possible due date YYYY-MM-DD")
}

func (f *templateFlags) pattern() (recurrence.Pattern, error) {
	return recurrence.Decode(recurrence.Fields{
		Frequency:  f.frequency,
		Interval:   f.interval,
		Weekdays:   f.weekdays,
		DayOfMonth: f.dayOfMonth,
	})
}

func parseDateFlag(name, raw string) (*date.Date, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := date.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &d, nil
}

var createFlags templateFlags

var templateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a template",
	Args:  cobra.NoArgs,
	RunE:  withApp(runTemplateCreate),
}

func runTemplateCreate(cmd *cobra.Command, a *app, _ []string) error {
	f := &createFlags
	subject, err := model.ParseSubject(f.subject)
	if err != nil {
		return err
	}
	pattern, err := f.pattern()
	if err != nil {
		return err
	}
	start, err := parseDateFlag("start", f.start)
	if err != nil {
		return err
	}
	end, err := parseDateFlag("end", f.end)
	if err != nil {
		return err
	}

	tpl, err := a.templates.Create(cmd.Context(), service.TemplateInput{
		Details: model.TaskDetails{
			Title:               f.title,
			Description:         f.description,
			Priority:            f.priority,
			Category:            f.category,
			Type:                f.taskType,
			AssignedToID:        f.assignee,
			CreatedByID:         f.createdBy,
			OfficeID:            f.office,
			Subject:             subject,
			DueTime:             f.dueTime,
			DueTimeDetails:      f.dueTimeDetails,
			ReminderTime:        f.reminderTime,
			ReminderOption:      f.reminderOption,
			CalendarSyncEnabled: f.calendarSync,
		},
		Pattern:    pattern,
		AnchorDate: start,
		EndDate:    end,
	})
	if err != nil {
		return err
	}
	return render(os.Stdout, newTemplateView(tpl), func(w *tableWriter) { w.template(tpl) })
}

var flagListOffice uint

var templateListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List templates",
	Args:    cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		templates, err := a.templates.List(cmd.Context(), flagListOffice)
		if err != nil {
			return err
		}
		views := make([]templateView, 0, len(templates))
		for i := range templates {
			views = append(views, newTemplateView(&templates[i]))
		}
		return render(os.Stdout, views, func(w *tableWriter) { w.templates(templates) })
	}),
}

var templateShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a template",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		tpl, err := a.templates.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(os.Stdout, newTemplateView(tpl), func(w *tableWriter) { w.template(tpl) })
	}),
}

var (
	updateFlags      templateFlags
	flagClearEndDate bool
)

var templateUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update a template",
	Long: `Updates only the flags given. Changing --frequency, --interval, --weekdays,
--day-of-month, --start or --end recomputes the next occurrence from the start
date; existing occurrences are left as they are.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runTemplateUpdate),
}

func runTemplateUpdate(cmd *cobra.Command, a *app, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	upd, err := buildUpdate(cmd.Flags(), &updateFlags)
	if err != nil {
		return err
	}
	upd.ClearEndDate = flagClearEndDate

	ctx := cmd.Context()
	if upd.Pattern == nil && changedAny(cmd.Flags(), "interval", "weekdays", "day-of-month") {
		// Pattern parts given without --frequency refine the stored pattern.
		current, err := a.templates.Get(ctx, id)
		if err != nil {
			return err
		}
		f := updateFlags
		f.frequency = current.RecurFrequency
		if !cmd.Flags().Changed("interval") {
			f.interval = current.RecurInterval
		}
		if !cmd.Flags().Changed("weekdays") {
			f.weekdays = current.RecurWeekdays
		}
		if !cmd.Flags().Changed("day-of-month") {
			f.dayOfMonth = current.RecurDayOfMonth
		}
		if upd.Pattern, err = f.pattern(); err != nil {
			return err
		}
	}

	tpl, err := a.templates.Update(ctx, id, upd)
	if err != nil {
		return err
	}
	return render(os.Stdout, newTemplateView(tpl), func(w *tableWriter) { w.template(tpl) })
}

// buildUpdate turns the changed flags into a TemplateUpdate.
func buildUpdate(fs *pflag.FlagSet, f *templateFlags) (service.TemplateUpdate, error) {
	var upd service.TemplateUpdate
	str := func(name string, v *string) *string {
		if fs.Changed(name) {
			return v
		}
		return nil
	}
	upd.Title = str("title", &f.title)
	upd.Description = str("description", &f.description)
	upd.Priority = str("priority", &f.priority)
	upd.Category = str("category", &f.category)
	upd.Type = str("type", &f.taskType)
	upd.DueTime = str("due-time", &f.dueTime)
	upd.DueTimeDetails = str("due-time-details", &f.dueTimeDetails)
	upd.ReminderTime = str("reminder-time", &f.reminderTime)
	upd.ReminderOption = str("reminder-option", &f.reminderOption)
	if fs.Changed("assignee") {
		upd.AssignedToID = &f.assignee
	}
	if fs.Changed("calendar-sync") {
		upd.CalendarSyncEnabled = &f.calendarSync
	}
	if fs.Changed("subject") {
		subject, err := model.ParseSubject(f.subject)
		if err != nil {
			return upd, err
		}
		upd.Subject = &subject
	}
	if fs.Changed("frequency") {
		pattern, err := f.pattern()
		if err != nil {
			return upd, err
		}
		upd.Pattern = pattern
	}

	var err error
	if upd.AnchorDate, err = parseDateFlag("start", f.start); err != nil {
		return upd, err
	}
	if upd.EndDate, err = parseDateFlag("end", f.end); err != nil {
		return upd, err
	}
	return upd, nil
}

func changedAny(fs *pflag.FlagSet, names ...string) bool {
	for _, name := range names {
		if fs.Changed(name) {
			return true
		}
	}
	return false
}

var templateDeleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete a template and all of its occurrences",
	Args:    cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := a.templates.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Deleted template %d\n", id)
		return nil
	}),
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func init() {
	createFlags.register(templateCreateCmd.Flags())
	_ = templateCreateCmd.MarkFlagRequired("title")
	_ = templateCreateCmd.MarkFlagRequired("frequency")

	updateFlags.register(templateUpdateCmd.Flags())
	templateUpdateCmd.Flags().BoolVar(&flagClearEndDate, "clear-end", false, "remove the end date")
	templateUpdateCmd.MarkFlagsMutuallyExclusive("end", "clear-end")

	templateListCmd.Flags().UintVar(&flagListOffice, "office", 0, "only templates of this office")

	templateCmd.AddCommand(templateCreateCmd, templateListCmd, templateShowCmd, templateUpdateCmd, templateDeleteCmd)
	rootCmd.AddCommand(templateCmd)
}
