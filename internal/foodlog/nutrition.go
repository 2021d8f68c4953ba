package foodlog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/database"
	"pantry-backend/internal/models"

	"gorm.io/gorm"
)

const maxOffsetMinutes = 14 * 60

// ParseOffset reads a fixed UTC offset given as "+HH:MM", "-HH:MM" or a
// signed number of minutes and returns it in seconds, clamped to ±14h.
// An unsigned "HH:MM" is positive, since a raw '+' in a query string arrives
// as a space.
func ParseOffset(tz string) (int, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || tz == "Z" {
		return 0, nil
	}
	invalid := apperr.Validation(apperr.Field("tz", "must be +HH:MM, -HH:MM or minutes"))

	var minutes int
	if h, m, ok := strings.Cut(tz, ":"); ok {
		negative := strings.HasPrefix(h, "-")
		h = strings.TrimPrefix(strings.TrimPrefix(h, "+"), "-")
		if !isDigits(h) || !isDigits(m) {
			return 0, invalid
		}
		hours, _ := strconv.Atoi(h)
		mins, _ := strconv.Atoi(m)
		if mins > 59 {
			return 0, invalid
		}
		minutes = hours*60 + mins
		if negative {
			minutes = -minutes
		}
	} else {
		n, err := strconv.Atoi(tz)
		if err != nil {
			return 0, invalid
		}
		minutes = n
	}

	minutes = max(-maxOffsetMinutes, min(maxOffsetMinutes, minutes))
	return minutes * 60, nil
}

func isDigits(s string) bool {
	if s == "" || len(s) > 2 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func formatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d:%02d", sign, seconds/3600, seconds%3600/60)
}

func zeroMacros() map[string]float64 {
	out := make(map[string]float64, len(models.Macros))
	for _, m := range models.Macros {
		out[m] = 0
	}
	return out
}

// nutritionSource resolves the nutrition of log entries, memoising lookups
// for the duration of one report.
type nutritionSource struct {
	db     *gorm.DB
	byID   map[uint]models.Nutrition
	byCode map[string]models.Nutrition
}

func newNutritionSource(db *gorm.DB) *nutritionSource {
	return &nutritionSource{
		db:     db,
		byID:   map[uint]models.Nutrition{},
		byCode: map[string]models.Nutrition{},
	}
}

// add accumulates the macros of e, times its units, into totals.
func (s *nutritionSource) add(totals map[string]float64, e *models.LogEntry) error {
	n, err := s.forEntry(e)
	if err != nil {
		return err
	}
	units := float64(e.Units)
	for _, m := range models.Macros {
		totals[m] += n[m] * units
	}
	return nil
}

// forEntry prefers the catalog product by id, then by code, and falls back to
// the stock snapshot for the code. Unknown products contribute nothing.
func (s *nutritionSource) forEntry(e *models.LogEntry) (models.Nutrition, error) {
	if e.ProductID != nil {
		n, err := s.productByID(*e.ProductID)
		if err != nil || len(n) > 0 {
			return n, err
		}
	}
	if e.Code != nil {
		return s.productByCode(*e.Code)
	}
	return nil, nil
}

func (s *nutritionSource) productByID(id uint) (models.Nutrition, error) {
	if n, ok := s.byID[id]; ok {
		return n, nil
	}
	var p models.Product
	err := s.db.Select("id", "nutrition").Take(&p, id).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.Classify(err)
	}
	n := p.Nutrition.Data()
	s.byID[id] = n
	return n, nil
}

func (s *nutritionSource) productByCode(code string) (models.Nutrition, error) {
	if n, ok := s.byCode[code]; ok {
		return n, nil
	}

	var p models.Product
	err := s.db.Select("id", "nutrition").Where("code = ?", code).Take(&p).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.Classify(err)
	}
	n := p.Nutrition.Data()

	if len(n) == 0 {
		var rec models.StockRecord
		err := s.db.Select("id", "nutrition").Where("code = ?", code).Take(&rec).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.Classify(err)
		}
		n = rec.Nutrition.Data()
	}
	s.byCode[code] = n
	return n, nil
}
