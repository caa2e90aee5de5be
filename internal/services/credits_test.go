package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/events"
)

func TestCredits_RecordIsIdempotent(t *testing.T) {
	ts := NewTestSetup(t)
	defer ts.CleanUp()
	credits := NewCreditsService(ts.CreditRepo)

	e := events.Event{Type: events.EventJobStarted, JobID: "job-1", Attempt: 1, TotalScenes: 4}
	require.NoError(t, credits.Record(ts.ctx, models.CreditKindCharge, e))
	require.NoError(t, credits.Record(ts.ctx, models.CreditKindCharge, e))

	entries, err := credits.ListByJob(ts.ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].Units)
}

func TestCredits_LifecycleThroughBus(t *testing.T) {
	ts := NewTestSetup(t)
	defer ts.CleanUp()
	credits := NewCreditsService(ts.CreditRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := events.NewBus()
	credits.Subscribe(bus)
	bus.Start(ctx)

	for _, e := range []events.Event{
		{Type: events.EventJobStarted, JobID: "job-1", Attempt: 1, TotalScenes: 2},
		{Type: events.EventJobFailed, JobID: "job-1", Attempt: 1, TotalScenes: 2},
		{Type: events.EventJobRetried, JobID: "job-1", Attempt: 2, TotalScenes: 2},
		{Type: events.EventJobCompleted, JobID: "job-1", Attempt: 2, TotalScenes: 2},
		{Type: events.EventSceneCompleted, JobID: "job-1", Attempt: 2, TotalScenes: 2},
	} {
		bus.Publish(e)
	}
	bus.Wait()

	entries, err := credits.ListByJob(ts.ctx, "job-1")
	require.NoError(t, err)

	var got []string
	for _, entry := range entries {
		got = append(got, fmt.Sprintf("%s/%d", entry.Kind, entry.Attempt))
	}
	assert.ElementsMatch(t, []string{"charge/1", "refund/1", "charge/2", "settle/2"}, got)
}
