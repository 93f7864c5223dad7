package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"vaxtrack/internal/scheduling/models"
	id "vaxtrack/pkg/domain"
)

func TestCompleteMatching(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	patientID := id.PatientID(uuid.New())
	vaccineID := id.VaccineID(uuid.New())
	otherVaccine := id.VaccineID(uuid.New())

	visit := func(at time.Time, status models.VisitStatus, vaccines ...id.VaccineID) models.ScheduledVisit {
		return models.ScheduledVisit{
			ID:          id.VisitID(uuid.New()),
			PatientID:   patientID,
			ScheduledAt: at,
			Status:      status,
			Vaccines:    vaccines,
			CreatedAt:   now,
		}
	}

	t.Run("completes the earliest linkable match", func(t *testing.T) {
		st := NewInMemoryStore()
		early := visit(now.AddDate(0, 0, 1), models.VisitScheduled, vaccineID)
		late := visit(now.AddDate(0, 0, 5), models.VisitConfirmed, vaccineID)
		require.NoError(t, st.Save(ctx, early))
		require.NoError(t, st.Save(ctx, late))

		completed, err := st.CompleteMatching(ctx, patientID, vaccineID, now)
		require.NoError(t, err)
		require.True(t, completed)

		got, err := st.Get(ctx, early.ID)
		require.NoError(t, err)
		require.Equal(t, models.VisitCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)

		got, err = st.Get(ctx, late.ID)
		require.NoError(t, err)
		require.Equal(t, models.VisitConfirmed, got.Status)
	})

	t.Run("ignores visits for other vaccines or closed statuses", func(t *testing.T) {
		st := NewInMemoryStore()
		require.NoError(t, st.Save(ctx, visit(now.AddDate(0, 0, 1), models.VisitCancelled, vaccineID)))
		require.NoError(t, st.Save(ctx, visit(now.AddDate(0, 0, 2), models.VisitScheduled, otherVaccine)))

		completed, err := st.CompleteMatching(ctx, patientID, vaccineID, now)
		require.NoError(t, err)
		require.False(t, completed)
	})

	t.Run("no match is not an error", func(t *testing.T) {
		st := NewInMemoryStore()
		completed, err := st.CompleteMatching(ctx, patientID, vaccineID, now)
		require.NoError(t, err)
		require.False(t, completed)
	})
}
