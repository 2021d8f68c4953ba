package audit

import (
	"strconv"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/models"
	"pantry-backend/internal/web"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const defaultListLimit = 200

// GET /api/audit-logs?entity_type=product&entity_id=1&limit=50
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := defaultListLimit
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return apperr.Validation(apperr.Field("limit", "must be a positive integer"))
			}
			limit = n
		}

		logs, err := List(db, ListFilter{
			EntityType: c.Query("entity_type"),
			EntityID:   c.Query("entity_id"),
			Limit:      limit,
		})
		if err != nil {
			return err
		}
		return web.List[models.AuditLog](c, "items", logs, nil)
	}
}
