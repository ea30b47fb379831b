package model

import "time"

// StatusOpen is the current non-available state of a piece of equipment
// (hot table).
type StatusOpen struct {
	EquipmentID   string    `gorm:"primaryKey;size:64"`
	ObservedAt    time.Time `gorm:"not null"`
	Status        string    `gorm:"not null;size:16"`
	CurrentUser   string    `gorm:"size:256"`
	TimeRemaining int       `gorm:"not null"` // minutes reported at ObservedAt
}

// StatusHistory is the archived log of completed state periods (cold table).
type StatusHistory struct {
	ID          int64     `gorm:"autoIncrement"`
	EquipmentID string    `gorm:"not null;index;primaryKey;size:64"`
	ObservedAt  time.Time `gorm:"not null;index;primaryKey"` // when the state's end was observed
	Status      string    `gorm:"not null;size:16"`
	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"` // predicted end when remaining time was known
}

// PushSubscription holds a browser push subscription registered by the local
// UI.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
