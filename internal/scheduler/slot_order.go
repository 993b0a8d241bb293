package scheduler

import (
	"math/rand"
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// SlotOrderer produces the candidate slot sequence tried by the allocator.
// Implementations must drop slots that can never be scheduled.
type SlotOrderer interface {
	Order(slots []models.TimeSlot) []models.TimeSlot
}

// TieredShuffle shuffles the priority tier (periods 1-10) and the extended
// tier (11-12) independently and returns priority before extended.
// It is not safe for concurrent use; build one per run.
type TieredShuffle struct {
	rng *rand.Rand
}

// NewTieredShuffle uses rng, or a time-seeded source when rng is nil.
func NewTieredShuffle(rng *rand.Rand) *TieredShuffle {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &TieredShuffle{rng: rng}
}

// NewSeededShuffle returns a reproducible TieredShuffle.
func NewSeededShuffle(seed int64) *TieredShuffle {
	return NewTieredShuffle(rand.New(rand.NewSource(seed)))
}

func (o *TieredShuffle) Order(slots []models.TimeSlot) []models.TimeSlot {
	priority, extended := splitTiers(slots)
	o.rng.Shuffle(len(priority), func(i, j int) { priority[i], priority[j] = priority[j], priority[i] })
	o.rng.Shuffle(len(extended), func(i, j int) { extended[i], extended[j] = extended[j], extended[i] })
	return append(priority, extended...)
}

// CatalogOrder keeps catalog order inside each tier.
type CatalogOrder struct{}

func (CatalogOrder) Order(slots []models.TimeSlot) []models.TimeSlot {
	priority, extended := splitTiers(slots)
	return append(priority, extended...)
}

func splitTiers(slots []models.TimeSlot) (priority, extended []models.TimeSlot) {
	priority = make([]models.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		if !slot.Schedulable() {
			continue
		}
		if slot.Extended() {
			extended = append(extended, slot)
			continue
		}
		priority = append(priority, slot)
	}
	return priority, extended
}
