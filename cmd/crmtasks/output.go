package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"crm-tasks/internal/date"
	"crm-tasks/internal/model"
	"crm-tasks/internal/service"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// render writes v as JSON or YAML, or calls text with a table writer.
func render(w io.Writer, v any, text func(*tableWriter)) error {
	switch flagOutput {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := &tableWriter{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
		text(tw)
		return tw.tw.Flush()
	}
}

type tableWriter struct {
	tw *tabwriter.Writer
}

func (w *tableWriter) row(cols ...any) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w.tw, "\t")
		}
		fmt.Fprint(w.tw, c)
	}
	fmt.Fprintln(w.tw)
}

func (w *tableWriter) templates(templates []model.TaskTemplate) {
	w.row("ID", "TITLE", "PATTERN", "CURSOR", "NEXT", "END", "ASSIGNEE", "SUBJECT")
	for i := range templates {
		v := newTemplateView(&templates[i])
		w.row(v.ID, v.Title, v.Pattern, v.Cursor, dateOrDash(v.NextOccurrence), dateOrDash(v.EndDate), v.AssignedToID, orDash(v.Subject))
	}
}

func (w *tableWriter) template(tpl *model.TaskTemplate) {
	v := newTemplateView(tpl)
	w.row("ID:", v.ID)
	w.row("Title:", v.Title)
	if v.Description != "" {
		w.row("Description:", v.Description)
	}
	w.row("Priority:", orDash(v.Priority))
	w.row("Category:", orDash(v.Category))
	w.row("Assignee:", v.AssignedToID)
	w.row("Office:", v.OfficeID)
	w.row("Subject:", orDash(v.Subject))
	w.row("Due time:", orDash(v.DueTime))
	w.row("Pattern:", v.Pattern)
	w.row("Start:", dateOrDash(v.AnchorDate))
	w.row("End:", dateOrDash(v.EndDate))
	w.row("Cursor:", v.Cursor)
	w.row("Next:", dateOrDash(v.NextOccurrence))
	if v.InvalidReason != "" {
		w.row("Invalid:", v.InvalidReason)
	}
	w.row("Version:", v.Version)
}

func (w *tableWriter) occurrences(occurrences []model.TaskOccurrence) {
	w.row("ID", "DUE", "STATUS", "TITLE", "ASSIGNEE", "SUBJECT")
	for i := range occurrences {
		o := &occurrences[i]
		w.row(o.ID, o.DueDate, o.Status, o.Title, o.AssignedToID, o.Subject)
	}
}

func (w *tableWriter) report(r service.Report) {
	w.row("Run:", r.RunID)
	w.row("Horizon:", r.Horizon)
	w.row("Templates:", r.Templates)
	w.row("Generated:", r.Generated)
	w.row("Exhausted:", r.Exhausted)
	if r.Interrupted {
		w.row("Interrupted:", "yes")
	}
	for _, f := range r.Failures {
		kind := "failed"
		if f.Invalid {
			kind = "invalid"
		}
		w.row(fmt.Sprintf("Template %d:", f.TemplateID), fmt.Sprintf("%s (%s): %v", f.Title, kind, f.Err))
	}
}

type templateView struct {
	ID             uint       `json:"id" yaml:"id"`
	Title          string     `json:"title" yaml:"title"`
	Description    string     `json:"description,omitempty" yaml:"description,omitempty"`
	Priority       string     `json:"priority,omitempty" yaml:"priority,omitempty"`
	Category       string     `json:"category,omitempty" yaml:"category,omitempty"`
	Type           string     `json:"type,omitempty" yaml:"type,omitempty"`
	AssignedToID   uint       `json:"assigned_to_id" yaml:"assigned_to_id"`
	OfficeID       uint       `json:"office_id" yaml:"office_id"`
	Subject        string     `json:"subject,omitempty" yaml:"subject,omitempty"`
	DueTime        string     `json:"due_time,omitempty" yaml:"due_time,omitempty"`
	Pattern        string     `json:"pattern" yaml:"pattern"`
	AnchorDate     *date.Date `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate        *date.Date `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Cursor         string     `json:"cursor_state" yaml:"cursor_state"`
	NextOccurrence *date.Date `json:"next_occurrence,omitempty" yaml:"next_occurrence,omitempty"`
	InvalidReason  string     `json:"invalid_reason,omitempty" yaml:"invalid_reason,omitempty"`
	Version        int        `json:"version" yaml:"version"`
}

func newTemplateView(tpl *model.TaskTemplate) templateView {
	pattern := tpl.RecurFrequency
	if p, err := tpl.Pattern(); err == nil {
		pattern = p.String()
	}
	v := templateView{
		ID:             tpl.ID,
		Title:          tpl.Title,
		Description:    tpl.Description,
		Priority:       tpl.Priority,
		Category:       tpl.Category,
		Type:           tpl.Type,
		AssignedToID:   tpl.AssignedToID,
		OfficeID:       tpl.OfficeID,
		DueTime:        tpl.DueTime,
		Pattern:        pattern,
		AnchorDate:     tpl.AnchorDate,
		EndDate:        tpl.RecurrenceEndDate,
		Cursor:         string(tpl.CursorState),
		NextOccurrence: tpl.NextOccurrenceDate,
		InvalidReason:  tpl.InvalidReason,
		Version:        tpl.Version,
	}
	if tpl.Subject.Kind != model.SubjectNone {
		v.Subject = tpl.Subject.String()
	}
	return v
}

type occurrenceView struct {
	ID              uint       `json:"id" yaml:"id"`
	TemplateID      uint       `json:"template_id" yaml:"template_id"`
	Title           string     `json:"title" yaml:"title"`
	DueDate         date.Date  `json:"due_date" yaml:"due_date"`
	Status          string     `json:"status" yaml:"status"`
	AssignedToID    uint       `json:"assigned_to_id" yaml:"assigned_to_id"`
	Subject         string     `json:"subject,omitempty" yaml:"subject,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	CompletionNotes string     `json:"completion_notes,omitempty" yaml:"completion_notes,omitempty"`
}

func newOccurrenceView(o *model.TaskOccurrence) occurrenceView {
	v := occurrenceView{
		ID:              o.ID,
		TemplateID:      o.ParentTemplateID,
		Title:           o.Title,
		DueDate:         o.DueDate,
		Status:          string(o.Status),
		AssignedToID:    o.AssignedToID,
		CompletedAt:     o.CompletedAt,
		CompletionNotes: o.CompletionNotes,
	}
	if o.Subject.Kind != model.SubjectNone {
		v.Subject = o.Subject.String()
	}
	return v
}

func newOccurrenceViews(occurrences []model.TaskOccurrence) []occurrenceView {
	out := make([]occurrenceView, 0, len(occurrences))
	for i := range occurrences {
		out = append(out, newOccurrenceView(&occurrences[i]))
	}
	return out
}

type failureView struct {
	TemplateID uint   `json:"template_id" yaml:"template_id"`
	Title      string `json:"title" yaml:"title"`
	Invalid    bool   `json:"invalid" yaml:"invalid"`
	Error      string `json:"error" yaml:"error"`
}

type reportView struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	Horizon     date.Date     `json:"horizon" yaml:"horizon"`
	Templates   int           `json:"templates" yaml:"templates"`
	Generated   int           `json:"generated" yaml:"generated"`
	Exhausted   int           `json:"exhausted" yaml:"exhausted"`
	Interrupted bool          `json:"interrupted" yaml:"interrupted"`
	Failures    []failureView `json:"failures" yaml:"failures"`
}

func newReportView(r service.Report) reportView {
	v := reportView{
		RunID:       r.RunID,
		Horizon:     r.Horizon,
		Templates:   r.Templates,
		Generated:   r.Generated,
		Exhausted:   r.Exhausted,
		Interrupted: r.Interrupted,
		Failures:    make([]failureView, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		v.Failures = append(v.Failures, failureView{TemplateID: f.TemplateID, Title: f.Title, Invalid: f.Invalid, Error: f.Err.Error()})
	}
	return v
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dateOrDash(d *date.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

type errFailures int

func (n errFailures) Error() string {
	return fmt.Sprintf("%d templates failed to materialize", int(n))
}
