package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Rank(t *testing.T) {
	assert.Less(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityWarning.Rank())
	assert.Less(t, SeverityWarning.Rank(), SeverityInfo.Rank())
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityFor(KindOverdue))
	assert.Equal(t, SeverityHigh, SeverityFor(KindUrgent))
	assert.Equal(t, SeverityWarning, SeverityFor(KindDueSoon))
	assert.Equal(t, SeverityInfo, SeverityFor(KindNewAssignment))
}

func TestAlertID_RoundTrip(t *testing.T) {
	taskID := uuid.New()

	for _, kind := range []Kind{KindOverdue, KindDueSoon, KindUrgent, KindNewAssignment} {
		id := AlertID(kind, taskID)
		gotKind, gotTask, err := ParseAlertID(id)
		require.NoError(t, err, id)
		assert.Equal(t, kind, gotKind)
		assert.Equal(t, taskID, gotTask)
	}
}

func TestParseAlertID_Invalid(t *testing.T) {
	for _, id := range []string{
		"",
		"overdue-",
		"overdue-not-a-uuid",
		"snoozed-" + uuid.NewString(),
		uuid.NewString(),
	} {
		_, _, err := ParseAlertID(id)
		assert.Error(t, err, id)
	}
}

func TestDaysOverdue(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	t.Run("rounds partial days up", func(t *testing.T) {
		assert.Equal(t, 1, DaysOverdue(now, now.Add(-time.Hour)))
		assert.Equal(t, 2, DaysOverdue(now, now.Add(-25*time.Hour)))
	})

	t.Run("exact days stay exact", func(t *testing.T) {
		assert.Equal(t, 3, DaysOverdue(now, now.Add(-72*time.Hour)))
	})

	t.Run("future or equal due dates are zero", func(t *testing.T) {
		assert.Equal(t, 0, DaysOverdue(now, now))
		assert.Equal(t, 0, DaysOverdue(now, now.Add(time.Hour)))
	})
}
