package catalog

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/audit"
	"pantry-backend/internal/database/dbtest"
	"pantry-backend/internal/lookup"
	"pantry-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newStore(t *testing.T, lk lookup.Lookup) (*Store, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t)
	return NewStore(db, lk, zap.NewNop()), db
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func reasonOf(t *testing.T, err error) (apperr.Kind, string) {
	t.Helper()
	e, ok := apperr.As(err)
	require.True(t, ok, "expected tagged error, got %v", err)
	return e.Kind, e.Reason
}

func TestCreateFillsSuppliedNutritionWithZeros(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()

	p, created, err := s.CreateOrUpdate(ctx, map[string]any{
		"code":      "0012345",
		"name":      " Oat milk ",
		"tags":      []any{"Dairy-free", "dairy-FREE", " ", "vegan"},
		"nutrition": map[string]any{"calories": 45.0, "protein": 1.5},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "0012345", p.CodeValue())
	assert.Equal(t, "Oat milk", p.NameValue())
	assert.Equal(t, []string{"Dairy-free", "vegan"}, []string(p.Tags))

	got, err := s.FindByCode(ctx, "0012345")
	require.NoError(t, err)
	n := got.Nutrition.Data()
	assert.Len(t, n, len(models.NutritionFields))
	assert.Equal(t, 45.0, n["calories"])
	assert.Equal(t, 1.5, n["protein"])
	assert.Equal(t, 0.0, n["vitamin_b12_mcg"])
	assert.Nil(t, got.Ingredients)
}

func TestCreateWithoutNutritionLeavesItAbsent(t *testing.T) {
	s, _ := newStore(t, nil)
	p, created, err := s.CreateOrUpdate(context.Background(), map[string]any{"name": "Salt"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, p.Code)
	assert.NotContains(t, p.Document(), "nutrition")
}

func TestCreateRoundTripKeepsNutrition(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()

	full := map[string]any{}
	for i, f := range models.NutritionFields {
		full[f] = float64(i) + 0.25
	}
	_, _, err := s.CreateOrUpdate(ctx, map[string]any{"code": "42", "name": "Multi", "nutrition": full})
	require.NoError(t, err)

	got, err := s.FindByCode(ctx, "42")
	require.NoError(t, err)
	for k, v := range full {
		assert.Equal(t, v, got.Nutrition.Data()[k], k)
	}
}

func TestCreateRequiresName(t *testing.T) {
	s, _ := newStore(t, nil)
	_, _, err := s.CreateOrUpdate(context.Background(), map[string]any{"code": "1"})
	kind, _ := reasonOf(t, err)
	assert.Equal(t, apperr.KindValidation, kind)
}

func TestPayloadValidation(t *testing.T) {
	s, _ := newStore(t, nil)
	_, _, err := s.CreateOrUpdate(context.Background(), map[string]any{
		"code":      49000028911.0,
		"name":      "Cola",
		"colour":    "red",
		"nutrition": map[string]any{"bogus": 1.0, "fat": -1.0},
	})
	e, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.KindValidation, e.Kind)

	fields := map[string]bool{}
	for _, f := range e.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["code"])
	assert.True(t, fields["colour"])
	assert.True(t, fields["nutrition.bogus"])
	assert.True(t, fields["nutrition.fat"])
}

func TestUpdateTouchesOnlyMentionedFields(t *testing.T) {
	s, db := newStore(t, nil)
	ctx := context.Background()

	orig, _, err := s.CreateOrUpdate(ctx, map[string]any{
		"code":        "777",
		"name":        "Granola",
		"tags":        []any{"breakfast"},
		"ingredients": []any{"oats", "honey"},
		"nutrition":   map[string]any{"calories": 450.0, "sugars": 20.0},
		"extensions":  map[string]any{"shelf": "B2", "store": map[string]any{"aisle": "4"}},
	})
	require.NoError(t, err)

	p, created, err := s.CreateOrUpdate(ctx, map[string]any{
		"code":       "777",
		"nutrition":  map[string]any{"sugars": nil, "protein": 12.0},
		"extensions": map[string]any{"store": map[string]any{"bay": "x"}},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, orig.ID, p.ID)

	got, err := s.FindByCode(ctx, "777")
	require.NoError(t, err)
	assert.Equal(t, "Granola", got.NameValue())
	assert.Equal(t, []string{"breakfast"}, []string(got.Tags))
	assert.Equal(t, []string{"oats", "honey"}, []string(got.Ingredients))

	n := got.Nutrition.Data()
	assert.Equal(t, 450.0, n["calories"])
	assert.Equal(t, 12.0, n["protein"])
	assert.NotContains(t, n, "sugars")

	assert.Equal(t, "B2", got.Extensions["shelf"])
	store := got.Extensions["store"].(map[string]any)
	assert.Equal(t, "4", store["aisle"])
	assert.Equal(t, "x", store["bay"])

	logs, err := audit.List(db, audit.ListFilter{EntityType: audit.EntityProduct})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionUpdate, logs[0].Action)
}

func TestUpdateNullClearsFields(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()

	_, _, err := s.CreateOrUpdate(ctx, map[string]any{
		"code": "9", "name": "Tea", "tags": "herbal", "nutrition": map[string]any{},
	})
	require.NoError(t, err)

	p, _, err := s.CreateOrUpdate(ctx, map[string]any{"code": "9", "tags": nil, "nutrition": nil, "protein": 4.0})
	require.NoError(t, err)

	doc := p.Document()
	assert.NotContains(t, doc, "tags")
	assert.NotContains(t, doc, "nutrition", "explicit nutrition null wins over legacy macros")
	assert.Equal(t, "Tea", doc["name"])
}

func TestUpdateLegacyMacrosFoldIntoNutrition(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()

	_, _, err := s.CreateOrUpdate(ctx, map[string]any{"code": "5", "name": "Bar", "calories": 200.0})
	require.NoError(t, err)
	p, _, err := s.CreateOrUpdate(ctx, map[string]any{"code": "5", "protein": 10.0})
	require.NoError(t, err)

	n := p.Nutrition.Data()
	assert.Equal(t, 200.0, n["calories"])
	assert.Equal(t, 10.0, n["protein"])
	assert.NotContains(t, p.Document(), "protein")
}

func TestEmptyUpdateReturnsCurrentRecord(t *testing.T) {
	s, db := newStore(t, nil)
	ctx := context.Background()

	orig, _, err := s.CreateOrUpdate(ctx, map[string]any{"code": "3", "name": "Rice"})
	require.NoError(t, err)

	p, created, err := s.CreateOrUpdate(ctx, map[string]any{"code": "3", "nutrition": map[string]any{}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, orig.UpdatedAt.Unix(), p.UpdatedAt.Unix())

	logs, err := audit.List(db, audit.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSearch(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()

	for _, raw := range []map[string]any{
		{"code": "1", "name": "Dark Chocolate", "tags": []any{"Snack", "sweet"}},
		{"code": "2", "name": "Pretzels", "tags": []any{"snack", "salty"}, "ingredients": []any{"wheat", "salt"}},
		{"code": "3", "name": "Sea (salt).*", "tags": []any{"pantry"}},
	} {
		_, _, err := s.CreateOrUpdate(ctx, raw)
		require.NoError(t, err)
	}

	all, err := s.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	snacks, err := s.Search(ctx, SearchFilter{Tag: "SNACK"})
	require.NoError(t, err)
	assert.Len(t, snacks, 2)

	salty, err := s.Search(ctx, SearchFilter{Query: "salt", Tag: "snack"})
	require.NoError(t, err)
	require.Len(t, salty, 1)
	assert.Equal(t, "2", salty[0].CodeValue())

	literal, err := s.Search(ctx, SearchFilter{Query: "(salt).*"})
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, "3", literal[0].CodeValue())

	byCode, err := s.Search(ctx, SearchFilter{Code: "1", Query: "chocolate"})
	require.NoError(t, err)
	assert.Len(t, byCode, 1)
}

func TestFindByIDErrors(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()

	_, err := s.FindByID(ctx, "abc")
	kind, reason := reasonOf(t, err)
	assert.Equal(t, apperr.KindInvalidID, kind)
	assert.Equal(t, apperr.ReasonInvalidIdentifier, reason)

	_, err = s.FindByID(ctx, "999")
	kind, _ = reasonOf(t, err)
	assert.Equal(t, apperr.KindNotFound, kind)
}

func TestDeleteRefusesReferencedProduct(t *testing.T) {
	s, db := newStore(t, nil)
	ctx := context.Background()

	p, _, err := s.CreateOrUpdate(ctx, map[string]any{"code": "11", "name": "Milk"})
	require.NoError(t, err)
	code := "11"
	require.NoError(t, db.Create(&models.LogEntry{Code: &code, Units: 1, Source: models.LogSourceManual}).Error)

	id := itoa(p.ID)
	err = s.Delete(ctx, id, false)
	kind, reason := reasonOf(t, err)
	assert.Equal(t, apperr.KindRefused, kind)
	assert.Equal(t, apperr.ReasonProductReferenced, reason)

	require.NoError(t, s.Delete(ctx, id, true))
	_, err = s.FindByID(ctx, id)
	kind, _ = reasonOf(t, err)
	assert.Equal(t, apperr.KindNotFound, kind)

	err = s.Delete(ctx, "x1", false)
	kind, _ = reasonOf(t, err)
	assert.Equal(t, apperr.KindInvalidID, kind)
}

func TestResolveForStockEnrichesFromLookup(t *testing.T) {
	calls := 0
	lk := lookup.Func(func(ctx context.Context, code string) (*lookup.ProductData, error) {
		calls++
		return &lookup.ProductData{Name: "Cola", Tags: []string{"soda"}, Nutrition: models.Nutrition{"calories": 140}}, nil
	})
	s, _ := newStore(t, lk)
	ctx := context.Background()

	p, err := s.ResolveForStock(ctx, "049000028911", Metadata{Tags: []string{"SODA", "caffeinated"}})
	require.NoError(t, err)
	assert.Equal(t, "Cola", p.NameValue())
	assert.Equal(t, []string{"soda", "caffeinated"}, []string(p.Tags))
	assert.Equal(t, 140.0, p.Nutrition.Data()["calories"])

	_, err = s.ResolveForStock(ctx, "049000028911", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "known codes are not looked up again")
}

func TestResolveForStockSeedsWhenLookupFails(t *testing.T) {
	lk := lookup.Func(func(ctx context.Context, code string) (*lookup.ProductData, error) {
		return nil, errors.New("timeout")
	})
	s, _ := newStore(t, lk)
	name := "Mystery"

	p, err := s.ResolveForStock(context.Background(), "000123", Metadata{Name: &name, Nutrition: models.Nutrition{"fat": 3}})
	require.NoError(t, err)
	assert.Equal(t, "000123", p.CodeValue())
	assert.Equal(t, "Mystery", p.NameValue())
	assert.Equal(t, 3.0, p.Nutrition.Data()["fat"])
}

func TestResolveForStockMergesIntoExisting(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()

	_, _, err := s.CreateOrUpdate(ctx, map[string]any{
		"code": "55", "name": "Soup", "ingredients": []any{"Tomato"},
		"nutrition": map[string]any{"calories": 90.0},
	})
	require.NoError(t, err)

	newName := "Tomato Soup"
	p, err := s.ResolveForStock(ctx, "55", Metadata{
		Name:        &newName,
		Ingredients: []string{"tomato", "basil"},
		Nutrition:   models.Nutrition{"sodium_mg": 480},
	})
	require.NoError(t, err)
	assert.Equal(t, "Tomato Soup", p.NameValue())
	assert.Equal(t, []string{"Tomato", "basil"}, []string(p.Ingredients))
	assert.Equal(t, 90.0, p.Nutrition.Data()["calories"])
	assert.Equal(t, 480.0, p.Nutrition.Data()["sodium_mg"])
}

func TestResolveForStockTrimsNames(t *testing.T) {
	s, _ := newStore(t, nil)
	ctx := context.Background()

	blank := "   "
	p, err := s.ResolveForStock(ctx, "77", Metadata{Name: &blank})
	require.NoError(t, err)
	assert.Nil(t, p.Name, "a blank name is not stored")

	padded := "  Rye Bread "
	p, err = s.ResolveForStock(ctx, "77", Metadata{Name: &padded})
	require.NoError(t, err)
	assert.Equal(t, "Rye Bread", p.NameValue())

	p, err = s.ResolveForStock(ctx, "77", Metadata{Name: &blank})
	require.NoError(t, err)
	assert.Equal(t, "Rye Bread", p.NameValue(), "a blank name does not overwrite")
}
