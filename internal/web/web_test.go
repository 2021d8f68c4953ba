package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"pantry-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sample struct {
	Code     string `json:"code" validate:"required,digits"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	e, ok := apperr.As(err)
	require.True(t, ok, "expected tagged error, got %v", err)
	require.Equal(t, apperr.KindValidation, e.Kind)
	out := map[string]string{}
	for _, f := range e.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestDecodeStrictRejectsUnknownField(t *testing.T) {
	var s sample
	err := DecodeStrict([]byte(`{"code":"1","quantity":1,"colour":"red"}`), &s)
	assert.Contains(t, fieldsOf(t, err), "colour")
}

func TestDecodeStrictRejectsNumericCode(t *testing.T) {
	var s sample
	err := DecodeStrict([]byte(`{"code":49000028911,"quantity":1}`), &s)
	assert.Equal(t, "must be of type string", fieldsOf(t, err)["code"])
}

func TestDecodeStrictMalformed(t *testing.T) {
	var s sample
	assert.Contains(t, fieldsOf(t, DecodeStrict([]byte(`{"code":`), &s)), "body")
	assert.Contains(t, fieldsOf(t, DecodeStrict(nil, &s)), "body")
}

func TestDecodeObjectKeepsNulls(t *testing.T) {
	doc, err := DecodeObject([]byte(`{"name":null,"nutrition":{"protein":3}}`))
	require.NoError(t, err)
	v, present := doc["name"]
	assert.True(t, present)
	assert.Nil(t, v)

	_, err = DecodeObject([]byte(`null`))
	assert.Error(t, err)
	_, err = DecodeObject([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestValidateUsesJSONNames(t *testing.T) {
	fields := fieldsOf(t, Validate(sample{Code: "12a4", Quantity: 0}))
	assert.Equal(t, "must contain digits only", fields["code"])
	assert.Equal(t, "must be greater than 0", fields["quantity"])

	assert.NoError(t, Validate(sample{Code: "0049", Quantity: 2}))
}

func TestErrorHandlerEnvelope(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Get("/refused", func(c *fiber.Ctx) error {
		return apperr.Refused(apperr.ReasonInsufficientStock, "insufficient stock")
	})
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return apperr.Validation(apperr.Field("nutrition.bogus", "unknown nutrition key"))
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("dsn=postgres://secret")
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return Success(c, fiber.StatusCreated, "created", fiber.Map{"id": 7})
	})

	cases := []struct {
		path   string
		status int
		check  func(body map[string]any)
	}{
		{"/refused", 400, func(b map[string]any) {
			assert.Equal(t, false, b["success"])
			assert.Equal(t, "insufficient_stock", b["reason"])
		}},
		{"/invalid", 422, func(b map[string]any) {
			fields := b["fields"].([]any)
			assert.Equal(t, "nutrition.bogus", fields[0].(map[string]any)["field"])
		}},
		{"/boom", 500, func(b map[string]any) {
			assert.NotContains(t, b["message"], "secret")
		}},
		{"/ok", 201, func(b map[string]any) {
			assert.Equal(t, true, b["success"])
			assert.Equal(t, float64(7), b["id"])
		}},
	}

	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.path)

		raw, _ := io.ReadAll(resp.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		tc.check(body)
	}
}
