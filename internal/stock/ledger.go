package stock

import (
	"context"
	"errors"
	"strings"
	"time"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/audit"
	"pantry-backend/internal/catalog"
	"pantry-backend/internal/database"
	"pantry-backend/internal/metrics"
	"pantry-backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger owns quantity on hand per product code. Every successful decrement is
// paired with exactly one log entry or removal record in the same transaction.
type Ledger struct {
	db      *gorm.DB
	catalog *catalog.Store
	log     *zap.Logger
	now     func() time.Time
}

func NewLedger(db *gorm.DB, cat *catalog.Store, log *zap.Logger) *Ledger {
	return &Ledger{
		db:      db,
		catalog: cat,
		log:     log.Named("stock"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type AddItem struct {
	Code        string
	Quantity    int64
	Name        *string
	Tags        []string
	Ingredients []string
	Nutrition   models.Nutrition
}

type ItemError struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	err     error
}

type AddResult struct {
	Tokens []string    `json:"tokens"`
	Errors []ItemError `json:"errors,omitempty"`
}

// AddUnits processes every item on its own: a failing item does not undo the
// ones already committed.
func (l *Ledger) AddUnits(ctx context.Context, items []AddItem) *AddResult {
	res := &AddResult{Tokens: []string{}}
	for i, item := range items {
		token, err := l.addOne(ctx, item)
		if err != nil {
			metrics.StockOp("add", metrics.OutcomeError)
			ie := ItemError{Index: i, Code: item.Code, Reason: apperr.ReasonInternal, Message: "stock add failed", err: err}
			if e, ok := apperr.As(err); ok {
				ie.Reason, ie.Message = e.Reason, e.Message
			}
			l.log.Warn("stock add failed", zap.String("code", item.Code), zap.Error(err))
			res.Errors = append(res.Errors, ie)
			continue
		}
		metrics.StockOp("add", metrics.OutcomeOK)
		res.Tokens = append(res.Tokens, token)
	}
	return res
}

// FirstError returns the error of the first failed item.
func (r *AddResult) FirstError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0].err
}

func (l *Ledger) addOne(ctx context.Context, item AddItem) (string, error) {
	product, err := l.catalog.ResolveForStock(ctx, item.Code, catalog.Metadata{
		Name:        item.Name,
		Tags:        item.Tags,
		Ingredients: item.Ingredients,
		Nutrition:   item.Nutrition,
	})
	if err != nil {
		return "", err
	}

	db := l.db.WithContext(ctx)
	rec := models.StockRecord{
		Token:       uuid.NewString(),
		Code:        item.Code,
		ProductID:   &product.ID,
		Quantity:    item.Quantity,
		Name:        product.NameValue(),
		Tags:        product.Tags,
		Ingredients: product.Ingredients,
		Nutrition:   product.Nutrition,
	}
	// increment and snapshot in one statement; the token is only set on insert
	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: append(
			clause.Assignments(map[string]interface{}{
				"quantity": gorm.Expr("stock_records.quantity + excluded.quantity"),
			}),
			clause.AssignmentColumns([]string{"product_id", "name", "tags", "ingredients", "nutrition", "updated_at"})...,
		),
	}).Create(&rec).Error
	if err != nil {
		return "", database.Classify(err)
	}

	var stored models.StockRecord
	if err := db.Where("code = ?", item.Code).Take(&stored).Error; err != nil {
		return "", database.Classify(err)
	}
	if stored.Token == "" {
		return l.backfillToken(ctx, &stored)
	}
	return stored.Token, nil
}

// Consume takes units out of stock and logs them as eaten.
func (l *Ledger) Consume(ctx context.Context, code string, units int64) (int64, error) {
	remaining, err := l.decrement(ctx, "consume", code, units, func(tx *gorm.DB, rec *models.StockRecord, now time.Time) error {
		c := code
		return tx.Create(&models.LogEntry{
			ProductID: rec.ProductID,
			Code:      &c,
			Units:     units,
			Timestamp: now,
			Source:    models.LogSourceConsumption,
		}).Error
	})
	return remaining, err
}

// Remove takes units out of stock for a reason other than eating them.
func (l *Ledger) Remove(ctx context.Context, code string, units int64, reason string) (int64, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		metrics.StockOp("remove", metrics.OutcomeError)
		return 0, apperr.Refused(apperr.ReasonReasonRequired, "a reason is required to remove stock")
	}
	return l.decrement(ctx, "remove", code, units, func(tx *gorm.DB, rec *models.StockRecord, now time.Time) error {
		return tx.Create(&models.StockRemoval{
			ProductID: rec.ProductID,
			Code:      code,
			Units:     units,
			Reason:    reason,
			Timestamp: now,
		}).Error
	})
}

// decrement lowers quantity by units iff quantity >= units and writes the
// paired record, all in one transaction.
func (l *Ledger) decrement(ctx context.Context, op, code string, units int64, pair func(tx *gorm.DB, rec *models.StockRecord, now time.Time) error) (int64, error) {
	if units <= 0 {
		metrics.StockOp(op, metrics.OutcomeError)
		return 0, apperr.Validation(apperr.Field("units", "must be greater than 0"))
	}

	now := l.now()
	var remaining int64
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.StockRecord{}).
			Where("code = ? AND quantity >= ?", code, units).
			Updates(map[string]interface{}{
				"quantity":   gorm.Expr("quantity - ?", units),
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}

		var rec models.StockRecord
		if err := tx.Where("code = ?", code).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("no stock for code " + code)
			}
			return err
		}
		if res.RowsAffected == 0 {
			return apperr.Refused(apperr.ReasonInsufficientStock, "insufficient stock")
		}

		if err := pair(tx, &rec, now); err != nil {
			return err
		}
		remaining = rec.Quantity
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindRefused, apperr.ReasonInsufficientStock) {
			metrics.StockOp(op, metrics.OutcomeInsufficient)
		} else {
			metrics.StockOp(op, metrics.OutcomeError)
		}
		return 0, database.Classify(err)
	}
	metrics.StockOp(op, metrics.OutcomeOK)
	return remaining, nil
}

// DeleteRecord removes a stock record whatever its quantity.
func (l *Ledger) DeleteRecord(ctx context.Context, token string) error {
	if _, err := uuid.Parse(token); err != nil {
		return apperr.InvalidID("stock token")
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.StockRecord
		if err := tx.Where("token = ?", token).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("stock record not found")
			}
			return err
		}
		if err := tx.Delete(&rec).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			EntityType:  audit.EntityStockRecord,
			EntityID:    token,
			Action:      models.AuditActionDelete,
			Description: "stock record deleted",
			Before:      rec,
		})
	})
	if err != nil {
		metrics.StockOp("delete", metrics.OutcomeError)
		return database.Classify(err)
	}
	metrics.StockOp("delete", metrics.OutcomeOK)
	return nil
}

type Aggregate struct {
	Code          string `json:"code"`
	ProductID     *uint  `json:"product_id,omitempty"`
	TotalQuantity int64  `json:"total_quantity"`
}

func (l *Ledger) ListAggregate(ctx context.Context) ([]Aggregate, error) {
	var rows []Aggregate
	err := l.db.WithContext(ctx).Model(&models.StockRecord{}).
		Select("code, product_id, SUM(quantity) AS total_quantity").
		Group("code, product_id").
		Order("code").
		Scan(&rows).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return rows, nil
}

// ListItems returns every stock record, giving a token to records that lack
// one.
func (l *Ledger) ListItems(ctx context.Context) ([]models.StockRecord, error) {
	var recs []models.StockRecord
	if err := l.db.WithContext(ctx).Order("code").Find(&recs).Error; err != nil {
		return nil, database.Classify(err)
	}
	for i := range recs {
		if recs[i].Token != "" {
			continue
		}
		token, err := l.backfillToken(ctx, &recs[i])
		if err != nil {
			return nil, err
		}
		recs[i].Token = token
	}
	return recs, nil
}

// backfillToken assigns a token to rec unless another request got there first,
// in which case the stored one is returned.
func (l *Ledger) backfillToken(ctx context.Context, rec *models.StockRecord) (string, error) {
	db := l.db.WithContext(ctx)
	token := uuid.NewString()
	res := db.Model(&models.StockRecord{}).
		Where("id = ? AND (token = '' OR token IS NULL)", rec.ID).
		UpdateColumn("token", token)
	if res.Error != nil {
		return "", database.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		var stored models.StockRecord
		if err := db.Select("token").Take(&stored, rec.ID).Error; err != nil {
			return "", database.Classify(err)
		}
		return stored.Token, nil
	}
	l.log.Info("backfilled stock token", zap.String("code", rec.Code), zap.String("token", token))
	return token, nil
}

func (l *Ledger) ListRemovals(ctx context.Context) ([]models.StockRemoval, error) {
	var out []models.StockRemoval
	if err := l.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, database.Classify(err)
	}
	return out, nil
}
