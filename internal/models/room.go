package models

// Room is a teaching space holding one session per time slot.
type Room struct {
	ID   string `db:"room_id" json:"room_id" validate:"required"`
	Name string `db:"room_name" json:"room_name"`
}

// DisplayName falls back to the id when no name was loaded.
func (r Room) DisplayName() string {
	if r.Name == "" {
		return r.ID
	}
	return r.Name
}

// StudentGroup is a cohort attending one session per time slot.
type StudentGroup struct {
	ID   string `db:"group_id" json:"group_id" validate:"required"`
	Name string `db:"group_name" json:"group_name"`
}

// DisplayName falls back to the id when no name was loaded.
func (g StudentGroup) DisplayName() string {
	if g.Name == "" {
		return g.ID
	}
	return g.Name
}
