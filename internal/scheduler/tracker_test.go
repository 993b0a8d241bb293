package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerInsertIsIdempotent(t *testing.T) {
	tracker := NewTracker()

	assert.False(t, tracker.Contains(ResourceTeacher, "T1", "Mon-1"))
	assert.True(t, tracker.Insert(ResourceTeacher, "T1", "Mon-1"))
	assert.False(t, tracker.Insert(ResourceTeacher, "T1", "Mon-1"))
	assert.True(t, tracker.Contains(ResourceTeacher, "T1", "Mon-1"))
	assert.Equal(t, 1, tracker.Len(ResourceTeacher))

	// sets are independent
	assert.False(t, tracker.Contains(ResourceRoom, "T1", "Mon-1"))
	assert.False(t, tracker.Contains(ResourceTeacher, "T1", "Mon-2"))
}

func TestTrackerReserveIsAllOrNothing(t *testing.T) {
	tracker := NewTracker()
	require.NoError(t, tracker.Reserve("T1", "R1", "G1", "Mon-1"))
	assert.Equal(t, 1, tracker.Len(ResourceTeacher))
	assert.Equal(t, 1, tracker.Len(ResourceRoom))
	assert.Equal(t, 1, tracker.Len(ResourceGroup))

	err := tracker.Reserve("T2", "R1", "G2", "Mon-1")
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.False(t, tracker.Contains(ResourceTeacher, "T2", "Mon-1"))
	assert.False(t, tracker.Contains(ResourceGroup, "G2", "Mon-1"))

	assert.True(t, tracker.Free("T2", "R2", "G2", "Mon-1"))
	assert.False(t, tracker.Free("T1", "R2", "G2", "Mon-1"))
	assert.False(t, tracker.Free("T2", "R2", "G1", "Mon-1"))
}

func TestTrackerUnknownResource(t *testing.T) {
	tracker := NewTracker()
	assert.False(t, tracker.Insert(Resource(9), "x", "y"))
	assert.False(t, tracker.Contains(Resource(9), "x", "y"))
	assert.Equal(t, 0, tracker.Len(Resource(9)))
	assert.Equal(t, "unknown", Resource(9).String())
	assert.Equal(t, "room", ResourceRoom.String())
}
