package foodlog

import (
	"context"
	"errors"
	"sort"
	"time"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/database"
	"pantry-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTargets are daily values used for any macro without an override.
var DefaultTargets = map[string]float64{
	"calories": 2000,
	"protein":  50,
	"fat":      78,
	"carbs":    275,
}

// Targets keeps daily macro overrides in a single row.
type Targets struct {
	db *gorm.DB
}

func NewTargets(db *gorm.DB) *Targets {
	return &Targets{db: db}
}

// Get returns the stored overrides merged over the defaults.
func (t *Targets) Get(ctx context.Context) (map[string]float64, error) {
	out := make(map[string]float64, len(DefaultTargets))
	for k, v := range DefaultTargets {
		out[k] = v
	}

	var cfg models.TargetConfig
	err := t.db.WithContext(ctx).Take(&cfg, "id = ?", models.TargetConfigID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	for k, v := range cfg.Overrides() {
		out[k] = v
	}
	return out, nil
}

// Patch validates every key of partial and stores the non-null ones. Unknown
// macros and negative values are rejected as a whole; a payload with nothing
// to store is refused.
func (t *Targets) Patch(ctx context.Context, partial map[string]any) (map[string]float64, error) {
	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cfg := models.TargetConfig{ID: models.TargetConfigID, UpdatedAt: time.Now().UTC()}
	var (
		c    apperr.Collector
		cols []string
	)
	for _, k := range keys {
		if !models.IsMacro(k) {
			c.Add(k, "unknown macro")
			continue
		}
		raw := partial[k]
		if raw == nil {
			continue
		}
		v, ok := raw.(float64)
		if !ok {
			c.Add(k, "must be a number")
			continue
		}
		if v < 0 {
			c.Add(k, "must be greater than or equal to 0")
			continue
		}
		setMacro(&cfg, k, v)
		cols = append(cols, k)
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, apperr.Refused(apperr.ReasonNoFields, "no valid target fields supplied")
	}

	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(append(cols, "updated_at")),
	}).Create(&cfg).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return t.Get(ctx)
}

// Reset clears the override for macro, or every override when macro is empty.
func (t *Targets) Reset(ctx context.Context, macro string) (map[string]float64, error) {
	db := t.db.WithContext(ctx)
	if macro == "" {
		if err := db.Where("id = ?", models.TargetConfigID).Delete(&models.TargetConfig{}).Error; err != nil {
			return nil, database.Classify(err)
		}
		return t.Get(ctx)
	}
	if !models.IsMacro(macro) {
		return nil, apperr.NotFound("unknown macro " + macro)
	}

	err := db.Model(&models.TargetConfig{}).
		Where("id = ?", models.TargetConfigID).
		Updates(map[string]interface{}{
			macro:        gorm.Expr("NULL"),
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return t.Get(ctx)
}

func setMacro(cfg *models.TargetConfig, macro string, v float64) {
	switch macro {
	case "calories":
		cfg.Calories = &v
	case "protein":
		cfg.Protein = &v
	case "fat":
		cfg.Fat = &v
	case "carbs":
		cfg.Carbs = &v
	}
}
