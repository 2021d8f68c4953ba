package catalog

import (
	"fmt"

	"pantry-backend/internal/models"

	"gorm.io/datatypes"
)

// editableDoc returns the mergeable part of a product as a generic document.
func editableDoc(p *models.Product) map[string]any {
	doc := map[string]any{}
	if p.Name != nil {
		doc["name"] = *p.Name
	}
	if len(p.Tags) > 0 {
		doc["tags"] = append([]string{}, p.Tags...)
	}
	if len(p.Ingredients) > 0 {
		doc["ingredients"] = append([]string{}, p.Ingredients...)
	}
	if n := p.Nutrition.Data(); len(n) > 0 {
		nutrition := make(map[string]any, len(n))
		for k, v := range n {
			nutrition[k] = v
		}
		doc["nutrition"] = nutrition
	}
	if len(p.Extensions) > 0 {
		doc["extensions"] = map[string]any(p.Extensions)
	}
	return doc
}

// applyDoc replaces the editable fields of p with those in doc. Fields missing
// from doc become absent.
func applyDoc(p *models.Product, doc map[string]any) error {
	p.Name = nil
	if s, ok := doc["name"].(string); ok {
		p.Name = &s
	}

	tags, err := stringList(doc["tags"])
	if err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	p.Tags = tags

	ingredients, err := stringList(doc["ingredients"])
	if err != nil {
		return fmt.Errorf("ingredients: %w", err)
	}
	p.Ingredients = ingredients

	var nutrition models.Nutrition
	if raw, ok := doc["nutrition"].(map[string]any); ok && len(raw) > 0 {
		nutrition = make(models.Nutrition, len(raw))
		for k, v := range raw {
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("nutrition.%s: not a number", k)
			}
			nutrition[k] = f
		}
	}
	p.Nutrition = datatypes.NewJSONType(nutrition)

	p.Extensions = nil
	if ext, ok := doc["extensions"].(map[string]any); ok && len(ext) > 0 {
		p.Extensions = datatypes.JSONMap(ext)
	}
	return nil
}

func stringList(v any) (datatypes.JSONSlice[string], error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
		return datatypes.JSONSlice[string](t), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("not a string list")
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil, nil
		}
		return datatypes.JSONSlice[string](out), nil
	default:
		return nil, fmt.Errorf("not a string list")
	}
}
