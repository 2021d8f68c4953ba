package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/audit"
	"pantry-backend/internal/database"
	"pantry-backend/internal/lookup"
	"pantry-backend/internal/merge"
	"pantry-backend/internal/metrics"
	"pantry-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns product records.
type Store struct {
	db     *gorm.DB
	lookup lookup.Lookup
	log    *zap.Logger
}

func NewStore(db *gorm.DB, lk lookup.Lookup, log *zap.Logger) *Store {
	if lk == nil {
		lk = lookup.Noop{}
	}
	return &Store{db: db, lookup: lk, log: log.Named("catalog")}
}

// FindByCode returns nil when no product has the code.
func (s *Store) FindByCode(ctx context.Context, code string) (*models.Product, error) {
	return findByCode(s.db.WithContext(ctx), code)
}

func findByCode(db *gorm.DB, code string) (*models.Product, error) {
	var p models.Product
	err := db.Where("code = ?", code).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &p, nil
}

func ParseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.InvalidID("product id")
	}
	return uint(id), nil
}

// FindByID fails with InvalidID for a malformed id and NotFound for an
// unknown one.
func (s *Store) FindByID(ctx context.Context, rawID string) (*models.Product, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	var p models.Product
	err = s.db.WithContext(ctx).Take(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &p, nil
}

type SearchFilter struct {
	Query string // name, code, tags, ingredients
	Code  string // exact
	Tag   string
}

// Search ANDs all filters. Query and Tag are case-insensitive literal substring
// matches.
func (s *Store) Search(ctx context.Context, f SearchFilter) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Model(&models.Product{})
	if code := strings.TrimSpace(f.Code); code != "" {
		q = q.Where("code = ?", code)
	}

	var products []models.Product
	if err := q.Order("id").Find(&products).Error; err != nil {
		return nil, database.Classify(err)
	}

	text := strings.ToLower(strings.TrimSpace(f.Query))
	tag := strings.ToLower(strings.TrimSpace(f.Tag))
	if text == "" && tag == "" {
		return products, nil
	}

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if tag != "" && !anyContains(p.Tags, tag) {
			continue
		}
		if text != "" && !matchesText(&p, text) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func matchesText(p *models.Product, needle string) bool {
	if strings.Contains(strings.ToLower(p.NameValue()), needle) ||
		strings.Contains(strings.ToLower(p.CodeValue()), needle) {
		return true
	}
	return anyContains(p.Tags, needle) || anyContains(p.Ingredients, needle)
}

func anyContains(items []string, needle string) bool {
	for _, it := range items {
		if strings.Contains(strings.ToLower(it), needle) {
			return true
		}
	}
	return false
}

// CreateOrUpdate merges raw into the product with the same code, or creates a
// new product when there is none. created reports which path was taken.
func (s *Store) CreateOrUpdate(ctx context.Context, raw map[string]any) (*models.Product, bool, error) {
	p, err := parsePayload(raw)
	if err != nil {
		return nil, false, err
	}

	if p.code != "" {
		existing, err := s.FindByCode(ctx, p.code)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			updated, err := s.update(ctx, existing.ID, p.updateOps())
			return updated, false, err
		}
	}

	doc, err := p.creationDoc()
	if err != nil {
		return nil, false, err
	}
	product := &models.Product{}
	if p.code != "" {
		code := p.code
		product.Code = &code
	}
	if err := applyDoc(product, doc); err != nil {
		return nil, false, apperr.Internal("build product", err)
	}

	err = s.db.WithContext(ctx).Create(product).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) && p.code != "" {
		// lost a create race for the same code; merge into the winner
		existing, ferr := s.FindByCode(ctx, p.code)
		if ferr != nil {
			return nil, false, ferr
		}
		if existing == nil {
			return nil, false, apperr.Refused(apperr.ReasonDuplicateCode, "a product with this code already exists")
		}
		updated, uerr := s.update(ctx, existing.ID, p.updateOps())
		return updated, false, uerr
	}
	if err != nil {
		return nil, false, database.Classify(err)
	}
	return product, true, nil
}

// update applies ops to the locked row. An empty op set returns the stored
// product without writing.
func (s *Store) update(ctx context.Context, id uint, ops merge.Ops) (*models.Product, error) {
	var out models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("product not found")
			}
			return err
		}
		if ops.Empty() {
			out = current
			return nil
		}

		before := current.Document()
		next := current
		if err := applyDoc(&next, merge.Apply(editableDoc(&current), ops)); err != nil {
			return apperr.Internal("merge product", err)
		}
		if err := tx.Save(&next).Error; err != nil {
			return err
		}

		if err := audit.WriteLog(tx, audit.LogOptions{
			EntityType:  audit.EntityProduct,
			EntityID:    strconv.FormatUint(uint64(id), 10),
			Action:      models.AuditActionUpdate,
			Description: "product updated",
			Before:      before,
			After:       next.Document(),
		}); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	return &out, nil
}

// Delete removes a product. Unless force is set it refuses while any stock or
// log record references the product by id or code.
func (s *Store) Delete(ctx context.Context, rawID string, force bool) error {
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.Take(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("product not found")
			}
			return err
		}

		if !force {
			referenced, err := isReferenced(tx, &p)
			if err != nil {
				return err
			}
			if referenced {
				return apperr.Refused(apperr.ReasonProductReferenced, "product is referenced by stock or log records; pass force=true to delete anyway")
			}
		}

		if err := tx.Delete(&models.Product{}, id).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			EntityType:  audit.EntityProduct,
			EntityID:    strconv.FormatUint(uint64(id), 10),
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("product deleted (force=%t)", force),
			Before:      p.Document(),
		})
	})
	return database.Classify(err)
}

func isReferenced(tx *gorm.DB, p *models.Product) (bool, error) {
	for _, m := range []any{&models.StockRecord{}, &models.LogEntry{}} {
		q := tx.Model(m).Where("product_id = ?", p.ID)
		if p.Code != nil {
			q = tx.Model(m).Where("product_id = ? OR code = ?", p.ID, *p.Code)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// EnrichFromExternal asks the lookup collaborator about an unknown code and
// stores what it returns. Every failure is logged and reported as "absent".
func (s *Store) EnrichFromExternal(ctx context.Context, code string) *models.Product {
	data, err := s.lookup.Lookup(ctx, code)
	if err != nil {
		metrics.Lookup(metrics.LookupError)
		s.log.Warn("product lookup failed", zap.String("code", code), zap.Error(err))
		return nil
	}
	if data.Empty() {
		metrics.Lookup(metrics.LookupMiss)
		return nil
	}
	metrics.Lookup(metrics.LookupHit)

	product := &models.Product{
		Code:        &code,
		Tags:        datatypes.JSONSlice[string](merge.NormalizeList(data.Tags)),
		Ingredients: datatypes.JSONSlice[string](merge.NormalizeList(data.Ingredients)),
		Nutrition:   datatypes.NewJSONType(filterNutrition(data.Nutrition)),
	}
	if data.Name != "" {
		name := data.Name
		product.Name = &name
	}
	if len(product.Tags) == 0 {
		product.Tags = nil
	}
	if len(product.Ingredients) == 0 {
		product.Ingredients = nil
	}

	err = s.db.WithContext(ctx).Create(product).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, ferr := s.FindByCode(ctx, code)
		if ferr == nil && existing != nil {
			return existing
		}
		err = ferr
	}
	if err != nil {
		s.log.Warn("storing looked-up product failed", zap.String("code", code), zap.Error(err))
		return nil
	}
	return product
}

// Metadata is what a stock-add caller knows about a product.
type Metadata struct {
	Name        *string
	Tags        []string
	Ingredients []string
	Nutrition   models.Nutrition
}

// name returns the trimmed name, or nil when it is blank.
func (m Metadata) name() *string {
	if m.Name == nil {
		return nil
	}
	name := strings.TrimSpace(*m.Name)
	if name == "" {
		return nil
	}
	return &name
}

// ResolveForStock returns the catalog product for code, enriching or seeding
// it when unknown, and folds the caller's metadata into it.
func (s *Store) ResolveForStock(ctx context.Context, code string, meta Metadata) (*models.Product, error) {
	product, err := s.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if product == nil {
		product = s.EnrichFromExternal(ctx, code)
	}
	if product == nil {
		seeded, err := s.seed(ctx, code, meta)
		if err != nil || seeded != nil {
			return seeded, err
		}
		// seeded concurrently by someone else
		if product, err = s.FindByCode(ctx, code); err != nil {
			return nil, err
		}
		if product == nil {
			return nil, apperr.Internal("product vanished while seeding", nil)
		}
	}
	return s.reconcile(ctx, product.ID, meta)
}

// seed stores a product that carries only the code and the caller's metadata.
// It returns nil without error when the code already exists.
func (s *Store) seed(ctx context.Context, code string, meta Metadata) (*models.Product, error) {
	product := &models.Product{
		Code:      &code,
		Name:      meta.name(),
		Nutrition: datatypes.NewJSONType(filterNutrition(meta.Nutrition)),
	}
	if tags := merge.NormalizeList(meta.Tags); len(tags) > 0 {
		product.Tags = tags
	}
	if ingredients := merge.NormalizeList(meta.Ingredients); len(ingredients) > 0 {
		product.Ingredients = ingredients
	}

	err := s.db.WithContext(ctx).Create(product).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	s.log.Debug("seeded product without lookup data", zap.String("code", code))
	return product, nil
}

func (s *Store) reconcile(ctx context.Context, id uint, meta Metadata) (*models.Product, error) {
	var out models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&out, id).Error; err != nil {
			return err
		}

		changed := false
		if name := meta.name(); name != nil && out.NameValue() != *name {
			out.Name = name
			changed = true
		}
		if tags, ok := merge.Union(out.Tags, meta.Tags); ok {
			out.Tags = tags
			changed = true
		}
		if ingredients, ok := merge.Union(out.Ingredients, meta.Ingredients); ok {
			out.Ingredients = ingredients
			changed = true
		}
		if n, ok := merge.MergeNutrition(out.Nutrition.Data(), filterNutrition(meta.Nutrition)); ok {
			out.Nutrition = datatypes.NewJSONType(models.Nutrition(n))
			changed = true
		}

		if !changed {
			return nil
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	return &out, nil
}

// filterNutrition drops keys outside the known set and negative values.
func filterNutrition(n models.Nutrition) models.Nutrition {
	if len(n) == 0 {
		return nil
	}
	out := make(models.Nutrition, len(n))
	for k, v := range n {
		if models.IsNutritionField(k) && v >= 0 {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
