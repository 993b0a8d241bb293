package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func TestResultStoreExpiry(t *testing.T) {
	store := newResultStore(time.Minute)
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Save(models.TimetableResult{Run: models.TimetableRun{ID: "a", CreatedAt: now}})
	now = now.Add(30 * time.Second)
	store.Save(models.TimetableResult{Run: models.TimetableRun{ID: "b", CreatedAt: now}})

	runs := store.List()
	if assert.Len(t, runs, 2) {
		assert.Equal(t, "b", runs[0].ID)
	}

	now = now.Add(45 * time.Second)
	_, ok := store.Get("a")
	assert.False(t, ok)
	_, ok = store.Get("b")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Empty(t, store.List())
}
