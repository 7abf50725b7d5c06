package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-tasks/internal/model"
	"crm-tasks/internal/recurrence"
)

func TestMaterializeOneCreatesOccurrenceAndAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.create(t, "Prayer call", recurrence.Daily{Interval: 2}, day(2024, time.January, 1), nil)
	require.Equal(t, day(2024, time.January, 3), *tpl.NextOccurrenceDate)

	occ, err := f.materializer.MaterializeOne(ctx, tpl)
	require.NoError(t, err)
	require.NotNil(t, occ)

	assert.Equal(t, tpl.ID, occ.ParentTemplateID)
	assert.Equal(t, day(2024, time.January, 3), occ.DueDate)
	assert.Equal(t, model.StatusPending, occ.Status)
	assert.False(t, occ.IsTemplate)
	assert.Equal(t, "Prayer call", occ.Title)
	assert.Equal(t, model.PersonSubject(3), occ.Subject)
	assert.Equal(t, uint(7), occ.AssignedToID)

	assert.Equal(t, day(2024, time.January, 5), *tpl.NextOccurrenceDate, "caller's template is refreshed")
	assert.Equal(t, 2, tpl.Version)

	stored := f.reload(t, tpl.ID)
	assert.Equal(t, day(2024, time.January, 5), *stored.NextOccurrenceDate)
	assert.Len(t, f.occurrencesOf(t, tpl.ID), 1)
}

func TestMaterializeOneExhaustsAtEndDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.create(t, "Short run", recurrence.Daily{Interval: 1}, day(2024, time.January, 1), ptr(day(2024, time.January, 3)))

	for _, want := range []int{2, 3} {
		occ, err := f.materializer.MaterializeOne(ctx, tpl)
		require.NoError(t, err)
		require.NotNil(t, occ)
		assert.Equal(t, day(2024, time.January, want), occ.DueDate)
	}
	assert.Equal(t, model.CursorExhausted, tpl.CursorState)
	assert.Nil(t, tpl.NextOccurrenceDate)

	occ, err := f.materializer.MaterializeOne(ctx, tpl)
	require.NoError(t, err)
	assert.Nil(t, occ)
	assert.Len(t, f.occurrencesOf(t, tpl.ID), 2)
}

func TestMaterializeOneCursorPastEndDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.create(t, "Stale", recurrence.Daily{Interval: 1}, day(2024, time.January, 1), nil)

	// Cursor at 2024-01-10 with an end date of 2024-01-05 written behind the service's back.
	require.NoError(t, f.db.Model(&model.TaskTemplate{}).Where("id = ?", tpl.ID).Updates(map[string]interface{}{
		"next_occurrence_date": day(2024, time.January, 10),
		"recurrence_end_date":  day(2024, time.January, 5),
	}).Error)
	tpl = f.reload(t, tpl.ID)

	occ, err := f.materializer.MaterializeOne(ctx, tpl)
	require.NoError(t, err)
	assert.Nil(t, occ)
	assert.Empty(t, f.occurrencesOf(t, tpl.ID))
	assert.Equal(t, model.CursorExhausted, f.reload(t, tpl.ID).CursorState)
}

func TestMaterializeOneStaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.create(t, "Contended", recurrence.Daily{Interval: 1}, day(2024, time.January, 1), nil)
	stale := *tpl

	_, err := f.materializer.MaterializeOne(ctx, tpl)
	require.NoError(t, err)

	occ, err := f.materializer.MaterializeOne(ctx, &stale)
	assert.Nil(t, occ)
	assert.True(t, errors.Is(err, ErrConcurrentModification))
	assert.Len(t, f.occurrencesOf(t, tpl.ID), 1, "nothing is written on conflict")
}

func TestMaterializeOneFlagsInvalidPattern(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tpl := f.create(t, "Broken", recurrence.Daily{Interval: 1}, day(2024, time.January, 1), nil)

	require.NoError(t, f.db.Model(&model.TaskTemplate{}).Where("id = ?", tpl.ID).
		Update("recur_frequency", "fortnightly").Error)
	tpl = f.reload(t, tpl.ID)

	occ, err := f.materializer.MaterializeOne(ctx, tpl)
	assert.Nil(t, occ)
	assert.True(t, errors.Is(err, recurrence.ErrInvalidPattern))

	stored := f.reload(t, tpl.ID)
	assert.Equal(t, model.CursorInvalid, stored.CursorState)
	assert.Nil(t, stored.NextOccurrenceDate)
	assert.Contains(t, stored.InvalidReason, "fortnightly")
	assert.Empty(t, f.occurrencesOf(t, tpl.ID))
}

func TestMaterializeOneSkipsNonActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl, err := f.templates.Create(ctx, TemplateInput{
		Details: model.TaskDetails{Title: "No anchor"},
		Pattern: recurrence.Weekly{Interval: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, model.CursorUnscheduled, tpl.CursorState)

	occ, err := f.materializer.MaterializeOne(ctx, tpl)
	require.NoError(t, err)
	assert.Nil(t, occ)
}

func TestMaterializeOneMissingTemplate(t *testing.T) {
	f := newFixture(t)
	tpl := f.create(t, "Gone", recurrence.Daily{Interval: 1}, day(2024, time.January, 1), nil)
	require.NoError(t, f.templates.Delete(context.Background(), tpl.ID))

	_, err := f.materializer.MaterializeOne(context.Background(), tpl)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestMaterializeOneCancelledContext(t *testing.T) {
	f := newFixture(t)
	tpl := f.create(t, "Cancelled", recurrence.Daily{Interval: 1}, day(2024, time.January, 1), nil)
	before := *tpl

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.materializer.MaterializeOne(ctx, tpl)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	assert.Equal(t, before.NextOccurrenceDate, tpl.NextOccurrenceDate, "cursor unchanged after a failed commit")
	assert.Empty(t, f.occurrencesOf(t, tpl.ID))
	assert.Equal(t, *before.NextOccurrenceDate, *f.reload(t, tpl.ID).NextOccurrenceDate)
}
