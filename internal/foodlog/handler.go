package foodlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/web"

	"github.com/gofiber/fiber/v2"
)

// idRef accepts a product id as a JSON string or number.
type idRef string

func (r *idRef) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = idRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("product_id must be a string or a number")
	}
	*r = idRef(n.String())
	return nil
}

type entryRequest struct {
	ProductID idRef      `json:"product_id"`
	Code      string     `json:"code" validate:"omitempty,digits,max=64"`
	Units     *int64     `json:"units"`
	Timestamp *time.Time `json:"timestamp"`
}

// GET /api/log?date=YYYY-MM-DD
func GetDayHandler(l *Log) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := l.GetDay(c.UserContext(), c.Query("date"))
		if err != nil {
			return err
		}
		return c.JSON(report)
	}
}

// GET /api/log/stats?start=&end=&tz=
func GetStatsHandler(l *Log) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := l.GetRange(c.UserContext(), c.Query("start"), c.Query("end"), c.Query("tz"))
		if err != nil {
			return err
		}
		return c.JSON(report)
	}
}

// POST /api/log
func AppendEntryHandler(l *Log) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req entryRequest
		if err := web.DecodeStrict(c.Body(), &req); err != nil {
			return err
		}
		if err := web.Validate(req); err != nil {
			return err
		}

		in := ManualEntry{
			ProductID: string(req.ProductID),
			Code:      req.Code,
			Units:     1,
			Timestamp: req.Timestamp,
		}
		if req.Units != nil {
			if *req.Units <= 0 {
				return apperr.Validation(apperr.Field("units", "must be greater than 0"))
			}
			in.Units = *req.Units
		}

		entry, err := l.AppendManualEntry(c.UserContext(), in)
		if err != nil {
			return err
		}
		return web.Success(c, fiber.StatusCreated, "log entry added", fiber.Map{
			"id":    entry.ID,
			"entry": entry,
		})
	}
}

// DELETE /api/log/:id
func DeleteEntryHandler(l *Log) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entry, err := l.SoftDelete(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return web.Success(c, fiber.StatusOK, "log entry moved to trash", fiber.Map{"entry": entry})
	}
}

// POST /api/log/undo
func UndoHandler(l *Log) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entry, err := l.UndoLast(c.UserContext())
		if err != nil {
			return err
		}
		return web.Success(c, fiber.StatusOK, "last log entry undone", fiber.Map{"entry": entry})
	}
}

// GET /api/log/trash
func ListTrashHandler(l *Log) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := l.ListTrash(c.UserContext())
		if err != nil {
			return err
		}
		return web.List(c, "items", out, nil)
	}
}

// GET /api/targets
func GetTargetsHandler(t *Targets) fiber.Handler {
	return func(c *fiber.Ctx) error {
		targets, err := t.Get(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"targets": targets, "defaults": DefaultTargets})
	}
}

// PATCH /api/targets
func PatchTargetsHandler(t *Targets) fiber.Handler {
	return func(c *fiber.Ctx) error {
		partial, err := web.DecodeObject(c.Body())
		if err != nil {
			return err
		}
		targets, err := t.Patch(c.UserContext(), partial)
		if err != nil {
			return err
		}
		return web.Success(c, fiber.StatusOK, "targets updated", fiber.Map{"targets": targets})
	}
}

// DELETE /api/targets and DELETE /api/targets/:macro
func ResetTargetsHandler(t *Targets) fiber.Handler {
	return func(c *fiber.Ctx) error {
		macro := c.Params("macro")
		targets, err := t.Reset(c.UserContext(), macro)
		if err != nil {
			return err
		}
		msg := "targets reset"
		if macro != "" {
			msg = macro + " target reset"
		}
		return web.Success(c, fiber.StatusOK, msg, fiber.Map{"targets": targets})
	}
}
