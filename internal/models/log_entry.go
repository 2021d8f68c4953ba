package models

import "time"

type LogSource string

const (
	LogSourceConsumption LogSource = "consumption"
	LogSourceManual      LogSource = "manual"
)

// LogEntry: one eating event. References a product by id, code or both.
type LogEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID *uint     `gorm:"index" json:"product_id,omitempty"`
	Code      *string   `gorm:"size:64;index" json:"code,omitempty"`
	Units     int64     `gorm:"not null" json:"units"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	Source    LogSource `gorm:"size:20;not null" json:"source"`
}

// LogTrash holds soft-deleted log entries verbatim. OriginalID is unique so a
// repeated trash insert for the same entry is a no-op.
type LogTrash struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OriginalID uint      `gorm:"uniqueIndex;not null" json:"original_id"`
	ProductID  *uint     `json:"product_id,omitempty"`
	Code       *string   `gorm:"size:64" json:"code,omitempty"`
	Units      int64     `gorm:"not null" json:"units"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
	Source     LogSource `gorm:"size:20" json:"source"`
	TrashedAt  time.Time `gorm:"index;not null" json:"trashed_at"`
}

func (LogTrash) TableName() string { return "log_trash" }
