package models

// CatalogData holds the typed records of one scheduling input, in source order.
type CatalogData struct {
	Teachers      []Teacher      `json:"teachers" validate:"dive"`
	Rooms         []Room         `json:"rooms" validate:"dive"`
	Groups        []StudentGroup `json:"groups" validate:"dive"`
	Subjects      []Subject      `json:"subjects" validate:"dive"`
	TimeSlots     []TimeSlot     `json:"timeslots" validate:"dive"`
	Teachings     []Teaching     `json:"teachings" validate:"dive"`
	Registrations []Registration `json:"registrations"`
}

// CatalogSummary describes a loaded catalog.
type CatalogSummary struct {
	Fingerprint           string `json:"fingerprint"`
	Teachers              int    `json:"teachers"`
	Rooms                 int    `json:"rooms"`
	Groups                int    `json:"groups"`
	Subjects              int    `json:"subjects"`
	TimeSlots             int    `json:"timeslots"`
	SchedulableSlots      int    `json:"schedulable_slots"`
	Teachings             int    `json:"teachings"`
	Registrations         int    `json:"registrations"`
	TotalSubjectHours     int    `json:"total_subject_hours"`
	TotalRequiredSessions int    `json:"total_required_sessions"`
}
