package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"crm-tasks/internal/date"
	"crm-tasks/internal/model"
	"crm-tasks/internal/recurrence"
	"crm-tasks/internal/repository"
	"crm-tasks/internal/testutil"
)

type fixture struct {
	db           *gorm.DB
	store        *repository.Store
	templates    *TemplateService
	occurrences  *OccurrenceService
	materializer *Materializer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, db := testutil.NewTestStore(t)
	return &fixture{
		db:           db,
		store:        store,
		templates:    NewTemplateService(store),
		occurrences:  NewOccurrenceService(store),
		materializer: NewMaterializer(store),
	}
}

func (f *fixture) batch(workers int) *BatchService {
	return NewBatchService(f.store, f.materializer, BatchOptions{Workers: workers})
}

func (f *fixture) create(t *testing.T, title string, p recurrence.Pattern, anchor date.Date, end *date.Date) *model.TaskTemplate {
	t.Helper()
	tpl, err := f.templates.Create(context.Background(), TemplateInput{
		Details: model.TaskDetails{
			Title:        title,
			Description:  "desc of " + title,
			Priority:     "medium",
			AssignedToID: 7,
			OfficeID:     1,
			Subject:      model.PersonSubject(3),
		},
		Pattern:    p,
		AnchorDate: &anchor,
		EndDate:    end,
	})
	require.NoError(t, err)
	return tpl
}

func (f *fixture) occurrencesOf(t *testing.T, templateID uint) []model.TaskOccurrence {
	t.Helper()
	occurrences, err := f.occurrences.ListByTemplate(context.Background(), templateID)
	require.NoError(t, err)
	return occurrences
}

func (f *fixture) reload(t *testing.T, id uint) *model.TaskTemplate {
	t.Helper()
	tpl, err := f.templates.Get(context.Background(), id)
	require.NoError(t, err)
	return tpl
}

func day(year int, month time.Month, d int) date.Date {
	return date.New(year, month, d)
}

func ptr(d date.Date) *date.Date { return &d }

func dueDates(occurrences []model.TaskOccurrence) []string {
	out := make([]string, 0, len(occurrences))
	for _, o := range occurrences {
		out = append(out, o.DueDate.String())
	}
	return out
}

func mustParse(t *testing.T, s string) date.Date {
	t.Helper()
	d, err := date.Parse(s)
	require.NoError(t, err)
	return d
}
