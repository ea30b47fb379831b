// Package normalize isolates the backend's loose payload vocabulary from the
// rest of the client. The backend has emitted several spellings for the same
// field over time; each mapping below documents its precedence order and
// produces a strongly typed record.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gym-status-client/internal/model"
)

// Placeholder images substituted when the backend supplies none.
const (
	placeholderCardio   = "https://images.unsplash.com/photo-1571019613454-1cb2f99b2d8b?w=1080&q=80"
	placeholderStrength = "https://images.unsplash.com/photo-1534438327276-14e5300c3a48?w=1080&q=80"
)

// flexString accepts a JSON string or number and stores it as a string. The
// backend id fields arrive in either shape.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// rawEquipment tolerates every field spelling the backend has used for an
// equipment payload.
type rawEquipment struct {
	ID             flexString `json:"id"`
	EquipmentID    flexString `json:"equipment_id"`
	PK             flexString `json:"pk"`
	EquipmentIDAlt flexString `json:"equipmentId"`

	Name      string `json:"name"`
	Equipment string `json:"equipment"`

	Type   string `json:"type"`
	Status string `json:"status"`

	ImageURL    string `json:"image_url"`
	Image       string `json:"image"`
	ImageURLAlt string `json:"imageUrl"`
	Photo       string `json:"photo"`
	PictureURL  string `json:"picture_url"`

	BaseSessionTimeMinutes int `json:"base_session_time_minutes"`
	AllocatedTime          int `json:"allocatedTime"`

	WaitingCount    *int `json:"waiting_count"`
	WaitingCountAlt *int `json:"waitingCount"`
	QueueLength     *int `json:"queue_length"`

	CurrentUser    string `json:"current_user"`
	CurrentUserAlt string `json:"currentUser"`

	TimeRemaining    *int `json:"time_remaining"`
	TimeRemainingAlt *int `json:"timeRemaining"`
}

// EquipmentList decodes an equipment snapshot. The payload is normally an
// array, but push updates may carry a single object. Records without any id
// are dropped.
func EquipmentList(data []byte) ([]*model.EquipmentRecord, error) {
	var raws []rawEquipment
	if err := json.Unmarshal(data, &raws); err != nil {
		var one rawEquipment
		if err2 := json.Unmarshal(data, &one); err2 != nil {
			return nil, fmt.Errorf("failed to unmarshal equipment payload: %w", err)
		}
		raws = []rawEquipment{one}
	}

	records := make([]*model.EquipmentRecord, 0, len(raws))
	for i := range raws {
		if rec := equipmentFromRaw(&raws[i]); rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// equipmentFromRaw maps one raw payload onto a typed record.
//
// Precedence per field:
//   - id:        id > equipment_id > pk > equipmentId
//   - name:      name > equipment
//   - image:     image_url > image > imageUrl > photo > picture_url > placeholder
//   - allocated: base_session_time_minutes > allocatedTime > 30
//   - waiting:   waiting_count > waitingCount > queue_length > 0
//   - user:      current_user > currentUser
//   - remaining: time_remaining > timeRemaining > 0
func equipmentFromRaw(raw *rawEquipment) *model.EquipmentRecord {
	id := firstString(string(raw.ID), string(raw.EquipmentID), string(raw.PK), string(raw.EquipmentIDAlt))
	if id == "" {
		return nil
	}

	category := mapCategory(raw.Type)
	image := firstString(raw.ImageURL, raw.Image, raw.ImageURLAlt, raw.Photo, raw.PictureURL)
	if image == "" {
		image = placeholderImage(category)
	}

	allocated := raw.BaseSessionTimeMinutes
	if allocated <= 0 {
		allocated = raw.AllocatedTime
	}
	if allocated <= 0 {
		allocated = 30
	}

	return &model.EquipmentRecord{
		ID:                   id,
		Name:                 firstString(raw.Name, raw.Equipment),
		Category:             category,
		Status:               MapStatus(raw.Status),
		WaitingCount:         firstInt(raw.WaitingCount, raw.WaitingCountAlt, raw.QueueLength),
		CurrentUser:          firstString(raw.CurrentUser, raw.CurrentUserAlt),
		TimeRemainingMinutes: firstInt(raw.TimeRemaining, raw.TimeRemainingAlt),
		AllocatedTimeMinutes: allocated,
		ImageURL:             image,
	}
}

// MapStatus is a total mapping from the server status vocabulary onto the
// three-value enum. Casing varies across endpoints, so the match is
// case-insensitive. Unknown statuses default to AVAILABLE.
func MapStatus(s string) model.Status {
	switch strings.ToUpper(s) {
	case "AVAILABLE":
		return model.StatusAvailable
	case "IN_USE":
		return model.StatusInUse
	case "WAITING":
		return model.StatusWaiting
	default:
		return model.StatusAvailable
	}
}

func mapCategory(s string) model.Category {
	if strings.EqualFold(s, string(model.CategoryStrength)) {
		return model.CategoryStrength
	}
	return model.CategoryCardio
}

func placeholderImage(c model.Category) string {
	if c == model.CategoryStrength {
		return placeholderStrength
	}
	return placeholderCardio
}

// rawReservation tolerates the field spellings of a reservation payload.
type rawReservation struct {
	ID             flexString `json:"id"`
	EquipmentID    flexString `json:"equipment_id"`
	Equipment      string     `json:"equipment"`
	EquipmentName  string     `json:"equipment_name"`
	Status         string     `json:"status"`
	CreatedAt      *time.Time `json:"created_at"`
	NotifiedAt     *time.Time `json:"notified_at"`
	ExpiresAt      *time.Time `json:"notification_expires_at"`
	TimeoutSeconds int        `json:"notification_timeout_seconds"`

	Position        *int `json:"position"`
	WaitingPosition *int `json:"waiting_position"`
}

// ReservationList decodes the caller's reservation list.
//
// Precedence per field: equipment name is equipment_name > equipment; the
// waiting position is position > waiting_position; the notification window is
// notification_timeout_seconds, defaulting to 15 when absent.
func ReservationList(data []byte) ([]model.ReservationRecord, error) {
	var raws []rawReservation
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reservation payload: %w", err)
	}

	records := make([]model.ReservationRecord, 0, len(raws))
	for i := range raws {
		raw := &raws[i]
		if raw.ID == "" {
			continue
		}
		window := raw.TimeoutSeconds
		if window <= 0 {
			window = 15
		}
		var createdAt time.Time
		if raw.CreatedAt != nil {
			createdAt = *raw.CreatedAt
		}
		records = append(records, model.ReservationRecord{
			ID:              string(raw.ID),
			EquipmentID:     string(raw.EquipmentID),
			EquipmentName:   firstString(raw.EquipmentName, raw.Equipment),
			Status:          raw.Status,
			WaitingPosition: firstInt(raw.Position, raw.WaitingPosition),
			NotifiedAt:      raw.NotifiedAt,
			ExpiresAt:       raw.ExpiresAt,
			WindowSeconds:   window,
			CreatedAt:       createdAt,
		})
	}
	return records, nil
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...*int) int {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}
