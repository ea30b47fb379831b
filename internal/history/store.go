// Package history records equipment status transitions observed by the feed
// into a local database, backing the operator usage endpoint. An open row
// tracks each equipment currently not AVAILABLE; when that state ends the row
// is archived with its observed period.
package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gym-status-client/internal/model"
)

// Store defines the transition-log operations.
type Store interface {
	Record(ctx context.Context, now time.Time, records []*model.EquipmentRecord) error
	Recent(ctx context.Context, equipmentID string, limit int) ([]model.StatusHistory, error)
	DB() *gorm.DB
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// Record folds one reconciled snapshot into the transition log
// transactionally.
func (s *gormStore) Record(ctx context.Context, now time.Time, records []*model.EquipmentRecord) error {
	open, err := s.fetchOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch open status rows: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			oldRow, exists := open[rec.ID]

			if exists {
				if oldRow.Status != string(rec.Status) {
					if err := archiveRow(tx, oldRow, now); err != nil {
						return err
					}
					if rec.Status == model.StatusAvailable {
						if err := tx.Delete(&model.StatusOpen{}, "equipment_id = ?", oldRow.EquipmentID).Error; err != nil {
							return fmt.Errorf("failed to delete open row for equipment %s: %w", oldRow.EquipmentID, err)
						}
					} else {
						updated := openRow(rec, now)
						if err := tx.Save(&updated).Error; err != nil {
							return fmt.Errorf("failed to update open row for equipment %s: %w", rec.ID, err)
						}
					}
				}
				delete(open, rec.ID)
			} else if rec.Status != model.StatusAvailable {
				newRow := openRow(rec, now)
				if err := tx.Create(&newRow).Error; err != nil {
					return fmt.Errorf("failed to create open row for equipment %s: %w", rec.ID, err)
				}
			}
		}

		// Equipment that vanished from the snapshot: close out its state.
		for _, remaining := range open {
			if err := archiveRow(tx, remaining, now); err != nil {
				return err
			}
			if err := tx.Delete(&model.StatusOpen{}, "equipment_id = ?", remaining.EquipmentID).Error; err != nil {
				return fmt.Errorf("failed to delete open row for equipment %s: %w", remaining.EquipmentID, err)
			}
		}
		return nil
	})
}

// Recent returns the newest archived periods for one piece of equipment.
func (s *gormStore) Recent(ctx context.Context, equipmentID string, limit int) ([]model.StatusHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []model.StatusHistory
	err := s.db.WithContext(ctx).
		Where("equipment_id = ?", equipmentID).
		Order("observed_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query history for equipment %s: %w", equipmentID, err)
	}
	return rows, nil
}

func (s *gormStore) fetchOpen(ctx context.Context) (map[string]model.StatusOpen, error) {
	var rows []model.StatusOpen
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	rowMap := make(map[string]model.StatusOpen, len(rows))
	for _, r := range rows {
		rowMap[r.EquipmentID] = r
	}
	return rowMap, nil
}

// archiveRow writes the completed state period. When the state carried a
// predicted duration the period end is the predicted finish, otherwise the
// observation time.
func archiveRow(tx *gorm.DB, row model.StatusOpen, observationTime time.Time) error {
	periodEnd := observationTime
	if row.TimeRemaining > 0 {
		periodEnd = row.ObservedAt.Add(time.Duration(row.TimeRemaining) * time.Minute)
	}

	record := model.StatusHistory{
		EquipmentID: row.EquipmentID,
		ObservedAt:  observationTime,
		Status:      row.Status,
		PeriodStart: row.ObservedAt,
		PeriodEnd:   periodEnd,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to archive status row for equipment %s: %w", row.EquipmentID, err)
	}
	return nil
}

func openRow(rec *model.EquipmentRecord, now time.Time) model.StatusOpen {
	return model.StatusOpen{
		EquipmentID:   rec.ID,
		ObservedAt:    now,
		Status:        string(rec.Status),
		CurrentUser:   rec.CurrentUser,
		TimeRemaining: rec.TimeRemainingMinutes,
	}
}
