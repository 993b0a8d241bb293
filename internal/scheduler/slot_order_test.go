package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func TestTieredShuffleDropsUnschedulableSlots(t *testing.T) {
	slots := append(weekSlots(),
		models.TimeSlot{ID: "Mon-0", Day: models.Monday, Period: 0},
		models.TimeSlot{ID: "Mon-13", Day: models.Monday, Period: 13},
	)

	order := NewSeededShuffle(9).Order(slots)

	require.Len(t, order, len(models.Weekdays)*(models.LastPeriod-1))
	for _, slot := range order {
		assert.NotEqual(t, models.BreakPeriod, slot.Period)
		assert.True(t, slot.Schedulable())
	}
}

func TestTieredShuffleKeepsPriorityBeforeExtended(t *testing.T) {
	order := NewSeededShuffle(123).Order(weekSlots())

	priority := len(models.Weekdays) * (models.LastPriorityPeriod - 1)
	for i, slot := range order {
		if i < priority {
			assert.LessOrEqual(t, slot.Period, models.LastPriorityPeriod, "slot %d", i)
		} else {
			assert.Greater(t, slot.Period, models.LastPriorityPeriod, "slot %d", i)
		}
	}
}

func TestTieredShuffleSeedReproducible(t *testing.T) {
	a := NewSeededShuffle(5).Order(weekSlots())
	b := NewSeededShuffle(5).Order(weekSlots())
	c := NewSeededShuffle(6).Order(weekSlots())

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestTieredShuffleDoesNotMutateInput(t *testing.T) {
	slots := weekSlots()
	original := append([]models.TimeSlot(nil), slots...)
	NewSeededShuffle(1).Order(slots)
	assert.Equal(t, original, slots)
}

func TestCatalogOrderIsStable(t *testing.T) {
	order := CatalogOrder{}.Order(weekSlots())
	require.NotEmpty(t, order)
	assert.Equal(t, "Mon-1", order[0].ID)
	assert.Equal(t, "Mon-2", order[1].ID)
	assert.Equal(t, "Mon-11", order[len(order)-10].ID)
	assert.Equal(t, "Fri-12", order[len(order)-1].ID)
}
