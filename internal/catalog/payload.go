package catalog

import (
	"sort"
	"strings"

	"pantry-backend/internal/apperr"
	"pantry-backend/internal/merge"
	"pantry-backend/internal/models"
	"pantry-backend/internal/web"
)

// top-level keys a product payload may carry
var payloadKeys = map[string]struct{}{
	"code": {}, "name": {}, "tags": {}, "ingredients": {}, "nutrition": {}, "extensions": {},
	// legacy flat macros, folded into nutrition
	"calories": {}, "protein": {}, "fat": {}, "carbs": {},
}

// payload is a validated product document. fields holds only what the caller
// sent: nil values mean "clear", nutrition is a map[string]any whose nil values
// clear single keys.
type payload struct {
	code   string
	fields map[string]any
}

// parsePayload validates a raw product document. Lists are normalised and
// legacy macros are folded into nutrition; an explicit "nutrition": null wins
// over them.
func parsePayload(raw map[string]any) (*payload, error) {
	var c apperr.Collector
	p := &payload{fields: map[string]any{}}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := payloadKeys[k]; !ok {
			c.Add(k, "unknown field")
		}
	}

	if v, ok := raw["code"]; ok && v != nil {
		code, err := parseCode(v)
		if err != "" {
			c.Add("code", "%s", err)
		}
		p.code = code
	}

	if v, ok := raw["name"]; ok {
		switch t := v.(type) {
		case nil:
			p.fields["name"] = nil
		case string:
			if s := strings.TrimSpace(t); s != "" {
				p.fields["name"] = s
			} else {
				c.Add("name", "must not be empty")
			}
		default:
			c.Add("name", "must be a string")
		}
	}

	for _, key := range []string{"tags", "ingredients"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		list, err := parseList(v)
		if err != "" {
			c.Add(key, "%s", err)
			continue
		}
		if len(list) == 0 {
			p.fields[key] = nil
		} else {
			p.fields[key] = list
		}
	}

	var nutrition map[string]any
	nutritionCleared := false
	if v, ok := raw["nutrition"]; ok {
		switch t := v.(type) {
		case nil:
			nutritionCleared = true
			p.fields["nutrition"] = nil
		case map[string]any:
			nutrition = map[string]any{}
			for k, nv := range t {
				if !models.IsNutritionField(k) {
					c.Add("nutrition."+k, "unknown nutrition key")
					continue
				}
				if nv == nil {
					nutrition[k] = nil
					continue
				}
				f, msg := parseAmount(nv)
				if msg != "" {
					c.Add("nutrition."+k, "%s", msg)
					continue
				}
				nutrition[k] = f
			}
		default:
			c.Add("nutrition", "must be an object")
		}
	}

	for _, macro := range models.Macros {
		v, ok := raw[macro]
		if !ok {
			continue
		}
		var amount any
		if v != nil {
			f, msg := parseAmount(v)
			if msg != "" {
				c.Add(macro, "%s", msg)
				continue
			}
			amount = f
		}
		if nutritionCleared {
			continue
		}
		if nutrition == nil {
			nutrition = map[string]any{}
		}
		if _, explicit := nutrition[macro]; !explicit {
			nutrition[macro] = amount
		}
	}
	if nutrition != nil {
		p.fields["nutrition"] = nutrition
	}

	if v, ok := raw["extensions"]; ok {
		switch t := v.(type) {
		case nil:
			p.fields["extensions"] = nil
		case map[string]any:
			p.fields["extensions"] = t
		default:
			c.Add("extensions", "must be an object")
		}
	}

	if err := c.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// creationDoc builds the document for a new product. A supplied nutrition
// object is filled with zeros for every field it omits.
func (p *payload) creationDoc() (map[string]any, error) {
	name, _ := p.fields["name"].(string)
	if name == "" {
		return nil, apperr.Validation(apperr.Field("name", "is required"))
	}

	fields := make(map[string]any, len(p.fields))
	for k, v := range p.fields {
		fields[k] = v
	}
	if n, ok := fields["nutrition"].(map[string]any); ok {
		full := make(map[string]any, len(models.NutritionFields))
		for _, f := range models.NutritionFields {
			full[f] = 0.0
		}
		for k, v := range n {
			if v != nil {
				full[k] = v
			}
		}
		fields["nutrition"] = full
	}
	return merge.Apply(map[string]any{}, merge.Flatten(fields)), nil
}

// updateOps returns the write/clear operations for an existing product. The
// code is the lookup key and never part of the update.
func (p *payload) updateOps() merge.Ops {
	return merge.Flatten(p.fields)
}

func parseCode(v any) (string, string) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if !web.IsDigits(s) {
			return "", "must contain digits only"
		}
		return s, ""
	case float64:
		return "", "must be a string; numeric codes lose leading zeros"
	default:
		return "", "must be a string"
	}
}

func parseList(v any) ([]string, string) {
	switch t := v.(type) {
	case nil:
		return nil, ""
	case string:
		return merge.NormalizeList([]string{t}), ""
	case []string:
		return merge.NormalizeList(t), ""
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return nil, "must be a string or a list of strings"
			}
			items = append(items, s)
		}
		return merge.NormalizeList(items), ""
	default:
		return nil, "must be a string or a list of strings"
	}
}

func parseAmount(v any) (float64, string) {
	f, ok := v.(float64)
	if !ok {
		return 0, "must be a number"
	}
	if f < 0 {
		return 0, "must be greater than or equal to 0"
	}
	return f, ""
}
