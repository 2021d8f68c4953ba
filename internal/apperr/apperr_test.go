package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:  http.StatusUnprocessableEntity,
		KindRefused:     http.StatusBadRequest,
		KindInvalidID:   http.StatusBadRequest,
		KindNotFound:    http.StatusNotFound,
		KindUnavailable: http.StatusServiceUnavailable,
		KindInternal:    http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestAsThroughWrapping(t *testing.T) {
	base := Refused(ReasonInsufficientStock, "insufficient stock")
	wrapped := fmt.Errorf("consume 123: %w", base)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ReasonInsufficientStock, got.Reason)
	assert.True(t, Is(wrapped, KindRefused, ReasonInsufficientStock))
	assert.False(t, Is(wrapped, KindRefused, ReasonReasonRequired))
	assert.False(t, Is(errors.New("plain"), KindRefused, ""))
}

func TestCollector(t *testing.T) {
	var c Collector
	require.NoError(t, c.Err())

	c.Add("nutrition.bogus", "unknown nutrition key")
	c.Add("code", "must contain digits only")

	err := c.Err()
	require.Error(t, err)
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Len(t, e.Fields, 2)
	assert.Contains(t, e.Error(), "nutrition.bogus unknown nutrition key")
}
