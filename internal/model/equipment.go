package model

// Category classifies a piece of equipment.
type Category string

const (
	CategoryCardio   Category = "cardio"
	CategoryStrength Category = "strength"
)

// Status is the three-value equipment state mirrored from the backend.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusInUse     Status = "IN_USE"
	StatusWaiting   Status = "WAITING"
)

// EquipmentRecord represents one physical piece of gym equipment as mirrored
// from the server.
type EquipmentRecord struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Category             Category `json:"category"`
	Status               Status   `json:"status"`
	WaitingCount         int      `json:"waitingCount"`
	CurrentUser          string   `json:"currentUser,omitempty"`
	TimeRemainingMinutes int      `json:"timeRemainingMinutes,omitempty"`
	AllocatedTimeMinutes int      `json:"allocatedTimeMinutes"`
	ImageURL             string   `json:"imageUrl"`
}

// Same reports whether the observable fields that drive UI emphasis are equal.
// Name, image and allocated time are static metadata and do not count as a
// change.
func (e *EquipmentRecord) Same(other *EquipmentRecord) bool {
	return e.Status == other.Status &&
		e.WaitingCount == other.WaitingCount &&
		e.CurrentUser == other.CurrentUser &&
		e.TimeRemainingMinutes == other.TimeRemainingMinutes
}
