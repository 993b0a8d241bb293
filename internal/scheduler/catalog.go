package scheduler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// TeachingPolicy decides what happens when a subject has several teaching rows.
type TeachingPolicy int

const (
	// TeachingStrict rejects a subject mapped to two different teachers.
	// Identical duplicate rows are collapsed.
	TeachingStrict TeachingPolicy = iota
	// TeachingFirstWins keeps the first row and ignores the rest.
	TeachingFirstWins
)

// ParseTeachingPolicy maps the config value ("strict" or "first").
func ParseTeachingPolicy(raw string) TeachingPolicy {
	if raw == "first" {
		return TeachingFirstWins
	}
	return TeachingStrict
}

// CatalogOptions tunes catalog construction.
type CatalogOptions struct {
	TeachingPolicy TeachingPolicy
	Validator      *validator.Validate
	Logger         *zap.Logger
}

// Catalog is the immutable, indexed resource catalog of one run.
type Catalog struct {
	teachers     []models.Teacher
	teacherIndex map[string]int
	rooms        []models.Room
	roomIndex    map[string]int
	groups       []models.StudentGroup
	groupIndex   map[string]int
	subjects     []models.Subject
	subjectIndex map[string]int
	slots        []models.TimeSlot
	slotIndex    map[string]int
	teaching     map[string]string
	ignored      []models.Teaching
	fingerprint  string
}

// NewCatalog validates data and builds lookup indexes. Registrations are not
// part of the catalog; they are passed to the allocator separately.
func NewCatalog(data models.CatalogData, opts CatalogOptions) (*Catalog, error) {
	if opts.Validator == nil {
		opts.Validator = validator.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if err := opts.Validator.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	c := &Catalog{
		teachers: append([]models.Teacher(nil), data.Teachers...),
		rooms:    append([]models.Room(nil), data.Rooms...),
		groups:   append([]models.StudentGroup(nil), data.Groups...),
		subjects: append([]models.Subject(nil), data.Subjects...),
		slots:    append([]models.TimeSlot(nil), data.TimeSlots...),
		teaching: make(map[string]string, len(data.Teachings)),
	}

	var err error
	if c.teacherIndex, err = indexByID("teacher", c.teachers, func(t models.Teacher) string { return t.ID }); err != nil {
		return nil, err
	}
	if c.roomIndex, err = indexByID("room", c.rooms, func(r models.Room) string { return r.ID }); err != nil {
		return nil, err
	}
	if c.groupIndex, err = indexByID("student group", c.groups, func(g models.StudentGroup) string { return g.ID }); err != nil {
		return nil, err
	}
	if c.subjectIndex, err = indexByID("subject", c.subjects, func(s models.Subject) string { return s.ID }); err != nil {
		return nil, err
	}
	if c.slotIndex, err = indexByID("timeslot", c.slots, func(s models.TimeSlot) string { return s.ID }); err != nil {
		return nil, err
	}

	for _, row := range data.Teachings {
		current, exists := c.teaching[row.SubjectID]
		if !exists {
			c.teaching[row.SubjectID] = row.TeacherID
			continue
		}
		if current == row.TeacherID {
			continue
		}
		if opts.TeachingPolicy == TeachingStrict {
			return nil, fmt.Errorf("%w: subject %s has teachers %s and %s", ErrDuplicateTeaching, row.SubjectID, current, row.TeacherID)
		}
		c.ignored = append(c.ignored, row)
		opts.Logger.Warn("ignoring duplicate teaching row",
			zap.String("subject_id", row.SubjectID),
			zap.String("kept_teacher_id", current),
			zap.String("ignored_teacher_id", row.TeacherID))
	}

	c.fingerprint, err = Fingerprint(data)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Fingerprint hashes the catalog records so identical inputs share cache keys.
func Fingerprint(data models.CatalogData) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode catalog fingerprint: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:16]), nil
}

func indexByID[T any](kind string, items []T, id func(T) string) (map[string]int, error) {
	index := make(map[string]int, len(items))
	for i, item := range items {
		key := id(item)
		if _, exists := index[key]; exists {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateID, kind, key)
		}
		index[key] = i
	}
	return index, nil
}

// Teacher looks up a teacher by id.
func (c *Catalog) Teacher(id string) (models.Teacher, bool) {
	i, ok := c.teacherIndex[id]
	if !ok {
		return models.Teacher{}, false
	}
	return c.teachers[i], true
}

// Room looks up a room by id.
func (c *Catalog) Room(id string) (models.Room, bool) {
	i, ok := c.roomIndex[id]
	if !ok {
		return models.Room{}, false
	}
	return c.rooms[i], true
}

// Group looks up a student group by id.
func (c *Catalog) Group(id string) (models.StudentGroup, bool) {
	i, ok := c.groupIndex[id]
	if !ok {
		return models.StudentGroup{}, false
	}
	return c.groups[i], true
}

// Subject looks up a subject by id.
func (c *Catalog) Subject(id string) (models.Subject, bool) {
	i, ok := c.subjectIndex[id]
	if !ok {
		return models.Subject{}, false
	}
	return c.subjects[i], true
}

// TimeSlot looks up a slot by id.
func (c *Catalog) TimeSlot(id string) (models.TimeSlot, bool) {
	i, ok := c.slotIndex[id]
	if !ok {
		return models.TimeSlot{}, false
	}
	return c.slots[i], true
}

// TeacherFor returns the teacher responsible for subjectID.
func (c *Catalog) TeacherFor(subjectID string) (string, bool) {
	id, ok := c.teaching[subjectID]
	return id, ok
}

// Teachers returns a copy of the teachers in catalog order.
func (c *Catalog) Teachers() []models.Teacher {
	return append([]models.Teacher(nil), c.teachers...)
}

// Rooms returns a copy of the rooms in catalog order.
func (c *Catalog) Rooms() []models.Room {
	return append([]models.Room(nil), c.rooms...)
}

// Groups returns a copy of the student groups in catalog order.
func (c *Catalog) Groups() []models.StudentGroup {
	return append([]models.StudentGroup(nil), c.groups...)
}

// TimeSlots returns a copy of all slots, schedulable or not, in catalog order.
func (c *Catalog) TimeSlots() []models.TimeSlot {
	return append([]models.TimeSlot(nil), c.slots...)
}

// IgnoredTeachings lists rows dropped under TeachingFirstWins.
func (c *Catalog) IgnoredTeachings() []models.Teaching {
	return append([]models.Teaching(nil), c.ignored...)
}

// Fingerprint identifies the records the catalog was built from.
func (c *Catalog) Fingerprint() string {
	return c.fingerprint
}

// Summarize counts the catalog and the demand placed on it.
func (c *Catalog) Summarize(registrations []models.Registration) models.CatalogSummary {
	summary := models.CatalogSummary{
		Fingerprint:   c.fingerprint,
		Teachers:      len(c.teachers),
		Rooms:         len(c.rooms),
		Groups:        len(c.groups),
		Subjects:      len(c.subjects),
		TimeSlots:     len(c.slots),
		Teachings:     len(c.teaching),
		Registrations: len(registrations),
	}
	for _, slot := range c.slots {
		if slot.Schedulable() {
			summary.SchedulableSlots++
		}
	}
	var hours float64
	for _, subject := range c.subjects {
		hours += subject.Theory + subject.Practice
	}
	summary.TotalSubjectHours = int(hours)
	for _, reg := range registrations {
		if subject, ok := c.Subject(reg.SubjectID); ok {
			summary.TotalRequiredSessions += subject.RequiredSessions()
		}
	}
	return summary
}
