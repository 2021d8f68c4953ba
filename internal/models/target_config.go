package models

import "time"

// TargetConfigID is the key of the single targets row.
const TargetConfigID = "current"

// TargetConfig stores daily macro overrides. A nil column means "use the
// default".
type TargetConfig struct {
	ID        string   `gorm:"primaryKey;size:20"`
	Calories  *float64 `gorm:"column:calories"`
	Protein   *float64 `gorm:"column:protein"`
	Fat       *float64 `gorm:"column:fat"`
	Carbs     *float64 `gorm:"column:carbs"`
	UpdatedAt time.Time
}

// Overrides returns the macros that are set.
func (t *TargetConfig) Overrides() map[string]float64 {
	out := map[string]float64{}
	for macro, v := range map[string]*float64{
		"calories": t.Calories,
		"protein":  t.Protein,
		"fat":      t.Fat,
		"carbs":    t.Carbs,
	} {
		if v != nil {
			out[macro] = *v
		}
	}
	return out
}
