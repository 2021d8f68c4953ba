package audit

import (
	"encoding/json"
	"fmt"

	"pantry-backend/internal/database"
	"pantry-backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EntityProduct     = "product"
	EntityStockRecord = "stock_record"
)

type LogOptions struct {
	EntityType  string
	EntityID    string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog stores one history entry. Pass the transaction handle when the entry
// must commit together with the change it describes.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	log := models.AuditLog{
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  toJSON(opts.Before),
		AfterData:   toJSON(opts.After),
	}

	if err := db.Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", database.Classify(err))
	}
	return nil
}

// a nil or unmarshalable value is stored as JSON null
func toJSON(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

type ListFilter struct {
	EntityType string
	EntityID   string
	Limit      int
}

// List returns history entries newest first.
func List(db *gorm.DB, f ListFilter) ([]models.AuditLog, error) {
	q := db.Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC").Order("id DESC").Find(&logs).Error; err != nil {
		return nil, database.Classify(err)
	}
	return logs, nil
}
