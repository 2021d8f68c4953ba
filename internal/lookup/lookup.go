// Package lookup defines the external product-data collaborator.
package lookup

import (
	"context"

	"pantry-backend/internal/models"
)

// ProductData is what an external source knows about a code. Empty fields
// mean the source had nothing for them.
type ProductData struct {
	Name        string
	Tags        []string
	Ingredients []string
	Nutrition   models.Nutrition
}

func (p *ProductData) Empty() bool {
	return p == nil || (p.Name == "" && len(p.Tags) == 0 && len(p.Ingredients) == 0 && len(p.Nutrition) == 0)
}

// Lookup queries product data by code. A nil result with a nil error means the
// source does not know the code. Implementations must be safe for concurrent
// use.
type Lookup interface {
	Lookup(ctx context.Context, code string) (*ProductData, error)
}

// Noop never finds anything. Used when lookups are disabled.
type Noop struct{}

func (Noop) Lookup(context.Context, string) (*ProductData, error) { return nil, nil }

// Func adapts a function to Lookup.
type Func func(ctx context.Context, code string) (*ProductData, error)

func (f Func) Lookup(ctx context.Context, code string) (*ProductData, error) { return f(ctx, code) }
