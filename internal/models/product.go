package models

import (
	"time"

	"gorm.io/datatypes"
)

// Product is a catalog entry. Code is the natural key (digits only, leading
// zeros significant); nil fields are absent from the stored document.
type Product struct {
	ID          uint                          `gorm:"primaryKey" json:"id"`
	Code        *string                       `gorm:"size:64;uniqueIndex" json:"code,omitempty"`
	Name        *string                       `gorm:"size:255" json:"name,omitempty"`
	Tags        datatypes.JSONSlice[string]   `json:"tags,omitempty"`
	Ingredients datatypes.JSONSlice[string]   `json:"ingredients,omitempty"`
	Nutrition   datatypes.JSONType[Nutrition] `json:"nutrition"`
	Extensions  datatypes.JSONMap             `json:"extensions,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
	UpdatedAt   time.Time                     `json:"updated_at"`
}

func (p *Product) CodeValue() string {
	if p.Code == nil {
		return ""
	}
	return *p.Code
}

func (p *Product) NameValue() string {
	if p.Name == nil {
		return ""
	}
	return *p.Name
}

// Document renders the product as a JSON-ready object that leaves out absent
// fields.
func (p *Product) Document() map[string]any {
	doc := map[string]any{
		"id":         p.ID,
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
	if p.Code != nil {
		doc["code"] = *p.Code
	}
	if p.Name != nil {
		doc["name"] = *p.Name
	}
	if len(p.Tags) > 0 {
		doc["tags"] = []string(p.Tags)
	}
	if len(p.Ingredients) > 0 {
		doc["ingredients"] = []string(p.Ingredients)
	}
	if n := p.Nutrition.Data(); len(n) > 0 {
		doc["nutrition"] = map[string]float64(n)
	}
	if len(p.Extensions) > 0 {
		doc["extensions"] = map[string]any(p.Extensions)
	}
	return doc
}
