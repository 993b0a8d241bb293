package scheduler

// Resource identifies one of the three busy sets.
type Resource int

const (
	ResourceTeacher Resource = iota
	ResourceRoom
	ResourceGroup
)

func (r Resource) String() string {
	switch r {
	case ResourceTeacher:
		return "teacher"
	case ResourceRoom:
		return "room"
	case ResourceGroup:
		return "group"
	default:
		return "unknown"
	}
}

type busyKey struct {
	entity string
	slot   string
}

// Tracker records committed (entity, slot) pairs for teachers, rooms and
// groups. Sets only grow; a tracker lives for exactly one allocation run.
type Tracker struct {
	busy [3]map[busyKey]struct{}
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	for i := range t.busy {
		t.busy[i] = make(map[busyKey]struct{})
	}
	return t
}

// Contains reports whether entity is already busy in slot.
func (t *Tracker) Contains(kind Resource, entityID, slotID string) bool {
	set := t.set(kind)
	if set == nil {
		return false
	}
	_, ok := set[busyKey{entity: entityID, slot: slotID}]
	return ok
}

// Insert marks entity busy in slot. It returns false when the pair was
// already present; the set is left unchanged in that case.
func (t *Tracker) Insert(kind Resource, entityID, slotID string) bool {
	set := t.set(kind)
	if set == nil {
		return false
	}
	key := busyKey{entity: entityID, slot: slotID}
	if _, ok := set[key]; ok {
		return false
	}
	set[key] = struct{}{}
	return true
}

// Free reports whether teacher, room and group are all idle in slot.
func (t *Tracker) Free(teacherID, roomID, groupID, slotID string) bool {
	return !t.Contains(ResourceTeacher, teacherID, slotID) &&
		!t.Contains(ResourceRoom, roomID, slotID) &&
		!t.Contains(ResourceGroup, groupID, slotID)
}

// Reserve marks all three pairs busy. When any of them is taken nothing is
// written and ErrSlotTaken is returned.
func (t *Tracker) Reserve(teacherID, roomID, groupID, slotID string) error {
	if !t.Free(teacherID, roomID, groupID, slotID) {
		return ErrSlotTaken
	}
	t.Insert(ResourceTeacher, teacherID, slotID)
	t.Insert(ResourceRoom, roomID, slotID)
	t.Insert(ResourceGroup, groupID, slotID)
	return nil
}

// Len returns the number of busy pairs of kind.
func (t *Tracker) Len(kind Resource) int {
	return len(t.set(kind))
}

func (t *Tracker) set(kind Resource) map[busyKey]struct{} {
	if kind < ResourceTeacher || kind > ResourceGroup {
		return nil
	}
	return t.busy[kind]
}
