package catalog

import (
	"strings"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/models"
	"pantry-backend/internal/web"

	"github.com/gofiber/fiber/v2"
)

func documents(products []models.Product) []map[string]any {
	out := make([]map[string]any, 0, len(products))
	for i := range products {
		out = append(out, products[i].Document())
	}
	return out
}

// GET /api/catalog?q=&code=&tag=
func ListProductsHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		products, err := store.Search(c.UserContext(), SearchFilter{
			Query: c.Query("q"),
			Code:  c.Query("code"),
			Tag:   c.Query("tag"),
		})
		if err != nil {
			return err
		}
		return web.List(c, "items", documents(products), nil)
	}
}

// GET /api/catalog/:id
func GetProductHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := store.FindByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(p.Document())
	}
}

// POST /api/catalog
// Creates a product, or merges into the one with the same code.
func UpsertProductHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := web.DecodeObject(c.Body())
		if err != nil {
			return err
		}

		p, created, err := store.CreateOrUpdate(c.UserContext(), raw)
		if err != nil {
			return err
		}

		if created {
			return web.Success(c, fiber.StatusCreated, "product created", fiber.Map{"product": p.Document()})
		}
		return web.Success(c, fiber.StatusOK, "product updated", fiber.Map{"product": p.Document()})
	}
}

// DELETE /api/catalog/:id?force=true
func DeleteProductHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		force := c.QueryBool("force", false)
		if err := store.Delete(c.UserContext(), c.Params("id"), force); err != nil {
			return err
		}
		return web.Success(c, fiber.StatusOK, "product deleted", nil)
	}
}

// POST /api/catalog/import (multipart, field "file", .xlsx)
func ImportProductsHandler(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperr.Validation(apperr.Field("file", "is required"))
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return apperr.Validation(apperr.Field("file", "only .xlsx files are accepted"))
		}

		file, err := fileHeader.Open()
		if err != nil {
			return apperr.Internal("open uploaded file", err)
		}
		defer file.Close()

		report, err := store.ImportXLSX(c.UserContext(), file)
		if err != nil {
			return err
		}
		return web.Success(c, fiber.StatusOK, "import finished", fiber.Map{"report": report})
	}
}
