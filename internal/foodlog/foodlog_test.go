package foodlog

import (
	"context"
	"strconv"
	"testing"
	"time"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/catalog"
	"pantry-backend/internal/database/dbtest"
	"pantry-backend/internal/lookup"
	"pantry-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var day = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newLog(t *testing.T) (*Log, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t)
	l := NewLog(db, NewTargets(db), zap.NewNop())
	l.now = func() time.Time { return day.Add(12 * time.Hour) }
	return l, db
}

func seedProduct(t *testing.T, db *gorm.DB, code string, nutrition map[string]any) uint {
	t.Helper()
	s := catalog.NewStore(db, lookup.Noop{}, zap.NewNop())
	p, _, err := s.CreateOrUpdate(context.Background(), map[string]any{
		"code":      code,
		"name":      "Product " + code,
		"nutrition": nutrition,
	})
	require.NoError(t, err)
	return p.ID
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func at(hour int) *time.Time {
	ts := day.Add(time.Duration(hour) * time.Hour)
	return &ts
}

func kindOf(t *testing.T, err error) (apperr.Kind, string) {
	t.Helper()
	e, ok := apperr.As(err)
	require.True(t, ok, "expected tagged error, got %v", err)
	return e.Kind, e.Reason
}

func TestTargetsPatchKeepsOtherDefaults(t *testing.T) {
	db := dbtest.New(t)
	targets := NewTargets(db)
	ctx := context.Background()

	_, err := targets.Patch(ctx, map[string]any{"protein": 120.0})
	require.NoError(t, err)

	got, err := targets.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got["protein"])
	assert.Equal(t, 2000.0, got["calories"])
	assert.Equal(t, 78.0, got["fat"])
	assert.Equal(t, 275.0, got["carbs"])

	_, err = targets.Patch(ctx, map[string]any{"fat": 60.0})
	require.NoError(t, err)
	got, err = targets.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got["protein"], "earlier override survives a later patch")
	assert.Equal(t, 60.0, got["fat"])
}

func TestTargetsPatchValidation(t *testing.T) {
	targets := NewTargets(dbtest.New(t))
	ctx := context.Background()

	_, err := targets.Patch(ctx, map[string]any{"sugar": 10.0})
	kind, _ := kindOf(t, err)
	assert.Equal(t, apperr.KindValidation, kind)

	_, err = targets.Patch(ctx, map[string]any{"protein": -1.0})
	kind, _ = kindOf(t, err)
	assert.Equal(t, apperr.KindValidation, kind)

	_, err = targets.Patch(ctx, map[string]any{"protein": nil})
	kind, reason := kindOf(t, err)
	assert.Equal(t, apperr.KindRefused, kind)
	assert.Equal(t, apperr.ReasonNoFields, reason)

	_, err = targets.Patch(ctx, map[string]any{})
	_, reason = kindOf(t, err)
	assert.Equal(t, apperr.ReasonNoFields, reason)
}

func TestTargetsReset(t *testing.T) {
	targets := NewTargets(dbtest.New(t))
	ctx := context.Background()

	_, err := targets.Patch(ctx, map[string]any{"protein": 120.0, "carbs": 100.0})
	require.NoError(t, err)

	got, err := targets.Reset(ctx, "protein")
	require.NoError(t, err)
	assert.Equal(t, 50.0, got["protein"])
	assert.Equal(t, 100.0, got["carbs"])

	_, err = targets.Reset(ctx, "sugar")
	kind, _ := kindOf(t, err)
	assert.Equal(t, apperr.KindNotFound, kind)

	got, err = targets.Reset(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTargets, got)
}

func TestAppendManualEntry(t *testing.T) {
	l, _ := newLog(t)
	ctx := context.Background()

	e, err := l.AppendManualEntry(ctx, ManualEntry{Code: "111"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Units)
	assert.Equal(t, models.LogSourceManual, e.Source)
	assert.Equal(t, day.Add(12*time.Hour), e.Timestamp)

	_, err = l.AppendManualEntry(ctx, ManualEntry{})
	kind, _ := kindOf(t, err)
	assert.Equal(t, apperr.KindValidation, kind)

	_, err = l.AppendManualEntry(ctx, ManualEntry{ProductID: "abc"})
	kind, reason := kindOf(t, err)
	assert.Equal(t, apperr.KindInvalidID, kind)
	assert.Equal(t, apperr.ReasonInvalidIdentifier, reason)
}

func TestGetDayTotalsAndRemaining(t *testing.T) {
	l, db := newLog(t)
	ctx := context.Background()
	bar := seedProduct(t, db, "111", map[string]any{"calories": 250.0, "protein": 20.0})

	id := itoa(bar)
	_, err := l.AppendManualEntry(ctx, ManualEntry{ProductID: id, Units: 2, Timestamp: at(8)})
	require.NoError(t, err)
	_, err = l.AppendManualEntry(ctx, ManualEntry{Code: "111", Timestamp: at(13)})
	require.NoError(t, err)
	// next day, not counted
	_, err = l.AppendManualEntry(ctx, ManualEntry{Code: "111", Timestamp: at(25)})
	require.NoError(t, err)

	report, err := l.GetDay(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Len(t, report.Entries, 2)
	assert.Equal(t, 750.0, report.Totals["calories"])
	assert.Equal(t, 60.0, report.Totals["protein"])
	assert.Equal(t, 0.0, report.Totals["fat"])
	assert.Equal(t, 1250.0, report.Remaining["calories"])
	assert.Equal(t, 0.0, report.Remaining["protein"], "remaining never goes negative")
	assert.Equal(t, 78.0, report.Remaining["fat"])

	_, err = l.GetDay(ctx, "03/01/2026")
	kind, _ := kindOf(t, err)
	assert.Equal(t, apperr.KindValidation, kind)
}

func TestGetDayFallsBackToStockSnapshot(t *testing.T) {
	l, db := newLog(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.StockRecord{
		Token:     "00000000-0000-0000-0000-000000000001",
		Code:      "222",
		Quantity:  1,
		Nutrition: datatypes.NewJSONType(models.Nutrition{"calories": 90}),
	}).Error)
	_, err := l.AppendManualEntry(ctx, ManualEntry{Code: "222", Units: 3, Timestamp: at(9)})
	require.NoError(t, err)

	report, err := l.GetDay(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 270.0, report.Totals["calories"])
}

func TestUndoLastReducesTotalsByTheUndoneEntry(t *testing.T) {
	l, db := newLog(t)
	ctx := context.Background()
	seedProduct(t, db, "111", map[string]any{"calories": 100.0})
	seedProduct(t, db, "333", map[string]any{"calories": 40.0})

	_, err := l.AppendManualEntry(ctx, ManualEntry{Code: "111", Timestamp: at(7)})
	require.NoError(t, err)
	_, err = l.AppendManualEntry(ctx, ManualEntry{Code: "333", Units: 2, Timestamp: at(10)})
	require.NoError(t, err)

	before, err := l.GetDay(ctx, "2026-03-01")
	require.NoError(t, err)

	undone, err := l.UndoLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, "333", *undone.Code)

	after, err := l.GetDay(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, before.Totals["calories"]-80, after.Totals["calories"])

	trash, err := l.ListTrash(ctx)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, undone.ID, trash[0].OriginalID)
	assert.Equal(t, int64(2), trash[0].Units)

	_, err = l.UndoLast(ctx)
	require.NoError(t, err)
	_, err = l.UndoLast(ctx)
	_, reason := kindOf(t, err)
	assert.Equal(t, apperr.ReasonNoEntries, reason)
}

func TestSoftDelete(t *testing.T) {
	l, db := newLog(t)
	ctx := context.Background()

	e, err := l.AppendManualEntry(ctx, ManualEntry{Code: "111", Timestamp: at(7)})
	require.NoError(t, err)

	_, err = l.SoftDelete(ctx, "x1")
	kind, _ := kindOf(t, err)
	assert.Equal(t, apperr.KindInvalidID, kind)

	_, err = l.SoftDelete(ctx, itoa(e.ID))
	require.NoError(t, err)

	var live int64
	require.NoError(t, db.Model(&models.LogEntry{}).Count(&live).Error)
	assert.Zero(t, live)

	_, err = l.SoftDelete(ctx, itoa(e.ID))
	kind, _ = kindOf(t, err)
	assert.Equal(t, apperr.KindNotFound, kind)
}

func TestGetRangeBucketsByOffset(t *testing.T) {
	l, db := newLog(t)
	ctx := context.Background()
	seedProduct(t, db, "111", map[string]any{"calories": 100.0})

	// 23:30 UTC on March 1st is March 2nd at +01:00
	late := day.Add(23*time.Hour + 30*time.Minute)
	_, err := l.AppendManualEntry(ctx, ManualEntry{Code: "111", Timestamp: &late})
	require.NoError(t, err)
	_, err = l.AppendManualEntry(ctx, ManualEntry{Code: "111", Timestamp: at(12)})
	require.NoError(t, err)

	report, err := l.GetRange(ctx, "2026-03-01", "2026-03-03", "+01:00")
	require.NoError(t, err)
	require.Len(t, report.Days, 3)
	assert.Equal(t, "+01:00", report.Offset)
	assert.Equal(t, 100.0, report.Days[0].Totals["calories"])
	assert.Equal(t, 100.0, report.Days[1].Totals["calories"])
	assert.Equal(t, 0.0, report.Days[2].Totals["calories"])
	assert.Equal(t, 200.0, report.Total["calories"])

	utc, err := l.GetRange(ctx, "2026-03-01", "", "")
	require.NoError(t, err)
	require.Len(t, utc.Days, 1)
	assert.Equal(t, 200.0, utc.Days[0].Totals["calories"])

	_, err = l.GetRange(ctx, "2026-03-03", "2026-03-01", "")
	kind, _ := kindOf(t, err)
	assert.Equal(t, apperr.KindValidation, kind)
}

func TestParseOffset(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"+05:30", 5*3600 + 30*60},
		{"-03:00", -3 * 3600},
		{"90", 90 * 60},
		{"-120", -120 * 60},
		{"+20:00", 14 * 3600},
		{"-1000", -14 * 3600},
		{"05:30", 5*3600 + 30*60},
		{" 05:30", 5*3600 + 30*60},
		{"9:15", 9*3600 + 15*60},
	}
	for _, tc := range cases {
		got, err := ParseOffset(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"abc", "+05:75", "+xx:00", "+-05:00", ":30", "+05:", "005:00"} {
		_, err := ParseOffset(bad)
		assert.Error(t, err, bad)
	}
}
