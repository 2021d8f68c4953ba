// Package foodlog records what was eaten and reports it against daily macro
// targets.
package foodlog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/catalog"
	"pantry-backend/internal/database"
	"pantry-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

type Log struct {
	db      *gorm.DB
	targets *Targets
	log     *zap.Logger
	now     func() time.Time
}

func NewLog(db *gorm.DB, targets *Targets, log *zap.Logger) *Log {
	return &Log{
		db:      db,
		targets: targets,
		log:     log.Named("foodlog"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ManualEntry references a product by id, code or both. Units defaults to 1
// when zero and Timestamp to now when nil.
type ManualEntry struct {
	ProductID string
	Code      string
	Units     int64
	Timestamp *time.Time
}

func (l *Log) AppendManualEntry(ctx context.Context, in ManualEntry) (*models.LogEntry, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Code = strings.TrimSpace(in.Code)
	if in.ProductID == "" && in.Code == "" {
		return nil, apperr.Validation(apperr.Field("product_id", "product_id or code is required"))
	}
	if in.Units < 0 {
		return nil, apperr.Validation(apperr.Field("units", "must be greater than 0"))
	}
	if in.Units == 0 {
		in.Units = 1
	}

	entry := &models.LogEntry{
		Units:     in.Units,
		Timestamp: l.now(),
		Source:    models.LogSourceManual,
	}
	if in.ProductID != "" {
		id, err := catalog.ParseID(in.ProductID)
		if err != nil {
			return nil, err
		}
		entry.ProductID = &id
	}
	if in.Code != "" {
		code := in.Code
		entry.Code = &code
	}
	if in.Timestamp != nil {
		entry.Timestamp = in.Timestamp.UTC()
	}

	if err := l.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, database.Classify(err)
	}
	return entry, nil
}

type DayReport struct {
	Date      string             `json:"date"`
	Entries   []models.LogEntry  `json:"entries"`
	Totals    map[string]float64 `json:"totals"`
	Targets   map[string]float64 `json:"targets"`
	Remaining map[string]float64 `json:"remaining"`
}

// GetDay reports the entries of one UTC calendar day. An empty date means
// today.
func (l *Log) GetDay(ctx context.Context, date string) (*DayReport, error) {
	day := l.now().Truncate(24 * time.Hour)
	if date != "" {
		d, err := time.ParseInLocation(dateLayout, date, time.UTC)
		if err != nil {
			return nil, apperr.Validation(apperr.Field("date", "must be a date in YYYY-MM-DD format"))
		}
		day = d
	}

	entries, err := l.entriesBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	targets, err := l.targets.Get(ctx)
	if err != nil {
		return nil, err
	}

	src := newNutritionSource(l.db.WithContext(ctx))
	totals := zeroMacros()
	for i := range entries {
		if err := src.add(totals, &entries[i]); err != nil {
			return nil, err
		}
	}

	remaining := zeroMacros()
	for m, target := range targets {
		if left := target - totals[m]; left > 0 {
			remaining[m] = left
		}
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}
	return &DayReport{
		Date:      day.Format(dateLayout),
		Entries:   entries,
		Totals:    totals,
		Targets:   targets,
		Remaining: remaining,
	}, nil
}

type DayTotals struct {
	Date   string             `json:"date"`
	Totals map[string]float64 `json:"totals"`
}

type RangeReport struct {
	Start  string             `json:"start"`
	End    string             `json:"end"`
	Offset string             `json:"offset"`
	Days   []DayTotals        `json:"days"`
	Total  map[string]float64 `json:"total"`
}

const maxRangeDays = 366

// GetRange sums macros per local calendar day, where local means UTC shifted
// by tz. Days without entries are reported with zero totals.
func (l *Log) GetRange(ctx context.Context, start, end, tz string) (*RangeReport, error) {
	offset, err := ParseOffset(tz)
	if err != nil {
		return nil, err
	}
	zone := time.FixedZone("", offset)

	var c apperr.Collector
	startDay, err := time.ParseInLocation(dateLayout, start, zone)
	if err != nil {
		c.Add("start", "must be a date in YYYY-MM-DD format")
	}
	endDay := startDay
	if end != "" {
		if endDay, err = time.ParseInLocation(dateLayout, end, zone); err != nil {
			c.Add("end", "must be a date in YYYY-MM-DD format")
		}
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	if startDay.After(endDay) {
		return nil, apperr.Validation(apperr.Field("start", "must not be after end"))
	}
	if endDay.Sub(startDay) >= maxRangeDays*24*time.Hour {
		return nil, apperr.Validation(apperr.Field("end", "range must not exceed %d days", maxRangeDays))
	}

	entries, err := l.entriesBetween(ctx, startDay.UTC(), endDay.AddDate(0, 0, 1).UTC())
	if err != nil {
		return nil, err
	}

	var (
		days  []DayTotals
		index = map[string]int{}
	)
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		index[key] = len(days)
		days = append(days, DayTotals{Date: key, Totals: zeroMacros()})
	}

	src := newNutritionSource(l.db.WithContext(ctx))
	total := zeroMacros()
	for i := range entries {
		key := entries[i].Timestamp.In(zone).Format(dateLayout)
		at, ok := index[key]
		if !ok {
			continue
		}
		if err := src.add(days[at].Totals, &entries[i]); err != nil {
			return nil, err
		}
		if err := src.add(total, &entries[i]); err != nil {
			return nil, err
		}
	}

	return &RangeReport{
		Start:  startDay.Format(dateLayout),
		End:    endDay.Format(dateLayout),
		Offset: formatOffset(offset),
		Days:   days,
		Total:  total,
	}, nil
}

func (l *Log) entriesBetween(ctx context.Context, from, to time.Time) ([]models.LogEntry, error) {
	var entries []models.LogEntry
	err := l.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", from.UTC(), to.UTC()).
		Order("timestamp").Order("id").
		Find(&entries).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return entries, nil
}

// SoftDelete moves one entry into the trash.
func (l *Log) SoftDelete(ctx context.Context, rawID string) (*models.LogEntry, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id == 0 {
		return nil, apperr.InvalidID("log entry id")
	}
	return l.trash(ctx, func(tx *gorm.DB, e *models.LogEntry) error {
		err := tx.Take(e, uint(id)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("log entry not found")
		}
		return err
	})
}

// UndoLast trashes the most recently timestamped entry.
func (l *Log) UndoLast(ctx context.Context) (*models.LogEntry, error) {
	return l.trash(ctx, func(tx *gorm.DB, e *models.LogEntry) error {
		err := tx.Order("timestamp DESC").Order("id DESC").Take(e).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &apperr.Error{Kind: apperr.KindNotFound, Reason: apperr.ReasonNoEntries, Message: "no log entries to undo"}
		}
		return err
	})
}

// trash copies the selected entry into log_trash and deletes it from the live
// log in one transaction. The copy is keyed by the entry id, so a replayed
// copy is ignored.
func (l *Log) trash(ctx context.Context, pick func(tx *gorm.DB, e *models.LogEntry) error) (*models.LogEntry, error) {
	var entry models.LogEntry
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := pick(tx.Clauses(clause.Locking{Strength: "UPDATE"}), &entry); err != nil {
			return err
		}
		row := models.LogTrash{
			OriginalID: entry.ID,
			ProductID:  entry.ProductID,
			Code:       entry.Code,
			Units:      entry.Units,
			Timestamp:  entry.Timestamp,
			Source:     entry.Source,
			TrashedAt:  l.now(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "original_id"}},
			DoNothing: true,
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Delete(&models.LogEntry{}, entry.ID).Error
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	l.log.Debug("log entry trashed", zap.Uint("id", entry.ID))
	return &entry, nil
}

func (l *Log) ListTrash(ctx context.Context) ([]models.LogTrash, error) {
	var out []models.LogTrash
	if err := l.db.WithContext(ctx).Order("trashed_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, database.Classify(err)
	}
	return out, nil
}
