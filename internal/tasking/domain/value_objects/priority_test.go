package value_objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	t.Run("accepts known levels", func(t *testing.T) {
		for _, s := range []string{"low", "medium", "high", "urgent"} {
			p, err := ParsePriority(s)
			require.NoError(t, err)
			assert.Equal(t, s, p.String())
		}
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := ParsePriority("critical")
		assert.Error(t, err)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParsePriority("")
		assert.Error(t, err)
	})
}

func TestPriority_Weight(t *testing.T) {
	assert.Greater(t, PriorityUrgent.Weight(), PriorityHigh.Weight())
	assert.Greater(t, PriorityHigh.Weight(), PriorityMedium.Weight())
	assert.Greater(t, PriorityMedium.Weight(), PriorityLow.Weight())
}

func TestPriority_IsUrgent(t *testing.T) {
	assert.True(t, PriorityUrgent.IsUrgent())
	assert.False(t, PriorityHigh.IsUrgent())
}

func TestParseStatus(t *testing.T) {
	t.Run("accepts known states", func(t *testing.T) {
		for _, s := range []string{"pending", "in_progress", "completed"} {
			st, err := ParseStatus(s)
			require.NoError(t, err)
			assert.Equal(t, s, st.String())
		}
	})

	t.Run("rejects unknown state", func(t *testing.T) {
		_, err := ParseStatus("archived")
		assert.Error(t, err)
	})
}

func TestStatus_IsOpen(t *testing.T) {
	assert.True(t, StatusPending.IsOpen())
	assert.True(t, StatusInProgress.IsOpen())
	assert.False(t, StatusCompleted.IsOpen())
}
