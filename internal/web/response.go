// Package web holds the response envelope, the error handler and request
// decoding shared by every HTTP handler.
package web

import (
	"github.com/gofiber/fiber/v2"
)

// Success writes {"success": true, "message": ..., <data>...}.
func Success(c *fiber.Ctx, status int, message string, data fiber.Map) error {
	body := fiber.Map{
		"success": true,
		"message": message,
	}
	for k, v := range data {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// List writes a listing under the given key. A nil slice is rendered as [].
func List[T any](c *fiber.Ctx, key string, items []T, extra fiber.Map) error {
	if items == nil {
		items = []T{}
	}
	body := fiber.Map{key: items}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(body)
}
