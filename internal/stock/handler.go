package stock

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/merge"
	"pantry-backend/internal/models"
	"pantry-backend/internal/web"

	"github.com/gofiber/fiber/v2"
)

// listField accepts either a single string or a list of strings. A single
// string is one item.
type listField []string

func (l *listField) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*l = merge.NormalizeList([]string{one})
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return errors.New("must be a string or a list of strings")
	}
	*l = merge.NormalizeList(many)
	return nil
}

type addItemRequest struct {
	Code        string             `json:"code" validate:"required,digits,max=64"`
	Quantity    int64              `json:"quantity" validate:"gt=0"`
	Name        *string            `json:"name"`
	Tags        listField          `json:"tags"`
	Ingredients listField          `json:"ingredients"`
	Nutrition   map[string]float64 `json:"nutrition"`

	// top-level macros from older clients, folded into Nutrition
	Calories *float64 `json:"calories" validate:"omitempty,gte=0"`
	Protein  *float64 `json:"protein" validate:"omitempty,gte=0"`
	Fat      *float64 `json:"fat" validate:"omitempty,gte=0"`
	Carbs    *float64 `json:"carbs" validate:"omitempty,gte=0"`
	Fiber    *float64 `json:"fiber" validate:"omitempty,gte=0"`
	Sugars   *float64 `json:"sugars" validate:"omitempty,gte=0"`
}

// nutrition returns the explicit nutrition map with the legacy macros folded
// in. Keys present in the map win over the legacy fields.
func (r addItemRequest) nutrition() models.Nutrition {
	out := models.Nutrition{}
	for k, v := range r.Nutrition {
		out[k] = v
	}
	legacy := []struct {
		key   string
		value *float64
	}{
		{"calories", r.Calories},
		{"protein", r.Protein},
		{"fat", r.Fat},
		{"carbs", r.Carbs},
		{"fiber", r.Fiber},
		{"sugars", r.Sugars},
	}
	for _, m := range legacy {
		if m.value == nil {
			continue
		}
		if _, ok := out[m.key]; !ok {
			out[m.key] = *m.value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type addBatchRequest struct {
	Items []addItemRequest `json:"items" validate:"required,min=1,dive"`
}

type consumeRequest struct {
	Code  string `json:"code" validate:"required,digits,max=64"`
	Units int64  `json:"units" validate:"gt=0"`
}

type removeRequest struct {
	Code   string `json:"code" validate:"required,digits,max=64"`
	Units  int64  `json:"units" validate:"gt=0"`
	Reason string `json:"reason" validate:"max=500"`
}

// decodeBatch accepts {"items": [...]}, a bare array or a single item.
func decodeBatch(body []byte) (*addBatchRequest, error) {
	trimmed := bytes.TrimSpace(body)
	req := &addBatchRequest{}
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := web.DecodeStrict(trimmed, &req.Items); err != nil {
			return nil, err
		}
	case hasItemsKey(trimmed):
		if err := web.DecodeStrict(trimmed, req); err != nil {
			return nil, err
		}
	default:
		var one addItemRequest
		if err := web.DecodeStrict(trimmed, &one); err != nil {
			return nil, err
		}
		req.Items = []addItemRequest{one}
	}
	if err := web.Validate(req); err != nil {
		return nil, err
	}

	var c apperr.Collector
	for i := range req.Items {
		it := &req.Items[i]
		if it.Name != nil {
			name := strings.TrimSpace(*it.Name)
			if name == "" {
				c.Add(fmt.Sprintf("items[%d].name", i), "must not be empty")
			}
			it.Name = &name
		}
		keys := make([]string, 0, len(it.Nutrition))
		for k := range it.Nutrition {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch {
			case !models.IsNutritionField(k):
				c.Add(fmt.Sprintf("items[%d].nutrition.%s", i, k), "unknown nutrition field")
			case it.Nutrition[k] < 0:
				c.Add(fmt.Sprintf("items[%d].nutrition.%s", i, k), "must be greater than or equal to 0")
			}
		}
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return req, nil
}

func hasItemsKey(body []byte) bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return false
	}
	_, ok := top["items"]
	return ok
}

// GET /api/stock?view=aggregate|items
func ListStockHandler(l *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch view := c.Query("view", "aggregate"); view {
		case "aggregate":
			rows, err := l.ListAggregate(c.UserContext())
			if err != nil {
				return err
			}
			return web.List(c, "items", rows, fiber.Map{"view": view})
		case "items":
			recs, err := l.ListItems(c.UserContext())
			if err != nil {
				return err
			}
			return web.List(c, "items", recs, fiber.Map{"view": view})
		default:
			return apperr.Validation(apperr.Field("view", "must be aggregate or items"))
		}
	}
}

// POST /api/stock
// Adds units for one or more codes. Items succeed or fail independently.
func AddStockHandler(l *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := decodeBatch(c.Body())
		if err != nil {
			return err
		}

		items := make([]AddItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, AddItem{
				Code:        it.Code,
				Quantity:    it.Quantity,
				Name:        it.Name,
				Tags:        it.Tags,
				Ingredients: it.Ingredients,
				Nutrition:   it.nutrition(),
			})
		}

		res := l.AddUnits(c.UserContext(), items)
		if len(res.Tokens) == 0 {
			return res.FirstError()
		}
		msg := fmt.Sprintf("added %d item(s)", len(res.Tokens))
		return web.Success(c, fiber.StatusCreated, msg, fiber.Map{
			"tokens": res.Tokens,
			"errors": res.Errors,
		})
	}
}

// POST /api/stock/consume
func ConsumeStockHandler(l *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req consumeRequest
		if err := web.DecodeStrict(c.Body(), &req); err != nil {
			return err
		}
		if err := web.Validate(req); err != nil {
			return err
		}

		remaining, err := l.Consume(c.UserContext(), req.Code, req.Units)
		if err != nil {
			return err
		}
		return web.Success(c, fiber.StatusOK, "stock consumed", fiber.Map{
			"code":      req.Code,
			"remaining": remaining,
		})
	}
}

// POST /api/stock/remove
func RemoveStockHandler(l *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req removeRequest
		if err := web.DecodeStrict(c.Body(), &req); err != nil {
			return err
		}
		if err := web.Validate(req); err != nil {
			return err
		}

		remaining, err := l.Remove(c.UserContext(), req.Code, req.Units, req.Reason)
		if err != nil {
			return err
		}
		return web.Success(c, fiber.StatusOK, "stock removed", fiber.Map{
			"code":      req.Code,
			"remaining": remaining,
		})
	}
}

// DELETE /api/stock/:token
func DeleteStockHandler(l *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := l.DeleteRecord(c.UserContext(), c.Params("token")); err != nil {
			return err
		}
		return web.Success(c, fiber.StatusOK, "stock record deleted", nil)
	}
}

// GET /api/stock/removals
func ListRemovalsHandler(l *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := l.ListRemovals(c.UserContext())
		if err != nil {
			return err
		}
		return web.List(c, "items", out, nil)
	}
}
