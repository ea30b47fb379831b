package model

import "time"

// Reservation statuses that drive client behavior. The backend vocabulary is
// wider; anything else is carried through verbatim.
const (
	ReservationWaiting   = "WAITING"
	ReservationNotified  = "NOTIFIED"
	ReservationConfirmed = "CONFIRMED"
	ReservationCompleted = "COMPLETED"
)

// ReservationRecord represents the user's claim on a piece of equipment,
// either active or queued.
type ReservationRecord struct {
	ID              string
	EquipmentID     string
	EquipmentName   string
	Status          string
	WaitingPosition int
	NotifiedAt      *time.Time
	ExpiresAt       *time.Time
	WindowSeconds   int
	CreatedAt       time.Time
}

// ActiveNotification is the time-bounded "your turn" affordance derived from a
// NOTIFIED reservation.
type ActiveNotification struct {
	ReservationID string `json:"reservationId"`
	EquipmentName string `json:"equipmentName"`
	SecondsLeft   int    `json:"secondsLeft"`
}
