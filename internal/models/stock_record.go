package models

import (
	"time"

	"gorm.io/datatypes"
)

// StockRecord: quantity on hand for one product code, with a snapshot of the
// catalog fields taken at the last write.
type StockRecord struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	Token     string `gorm:"size:36;index" json:"token"` // backfilled on read when empty
	Code      string `gorm:"size:64;uniqueIndex;not null" json:"code"`
	ProductID *uint  `gorm:"index" json:"product_id,omitempty"`
	Quantity  int64  `gorm:"not null;default:0" json:"quantity"`

	// snapshot
	Name        string                        `gorm:"size:255" json:"name,omitempty"`
	Tags        datatypes.JSONSlice[string]   `json:"tags,omitempty"`
	Ingredients datatypes.JSONSlice[string]   `json:"ingredients,omitempty"`
	Nutrition   datatypes.JSONType[Nutrition] `json:"nutrition"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockRemoval: units taken out of stock for a reason other than eating them.
type StockRemoval struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID *uint     `gorm:"index" json:"product_id,omitempty"`
	Code      string    `gorm:"size:64;index;not null" json:"code"`
	Units     int64     `gorm:"not null" json:"units"`
	Reason    string    `gorm:"size:500;not null" json:"reason"` // required
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
}
