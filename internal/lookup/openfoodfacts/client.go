package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pantry-backend/internal/lookup"
	"pantry-backend/internal/merge"
	"pantry-backend/internal/models"
)

const (
	defaultBaseURL = "https://world.openfoodfacts.org"
	userAgent      = "pantry-backend/1.0"
	maxBodyBytes   = 4 << 20
)

// per-100g nutriment key -> nutrition field
var nutrimentFields = []struct{ src, dst string }{
	{"energy-kcal_100g", "calories"},
	{"proteins_100g", "protein"},
	{"fat_100g", "fat"},
	{"carbohydrates_100g", "carbs"},
	{"fiber_100g", "fiber"},
	{"sugars_100g", "sugars"},
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

var _ lookup.Lookup = (*Client)(nil)

// Lookup fetches a product by barcode. Unknown products yield (nil, nil).
func (c *Client) Lookup(ctx context.Context, code string) (*lookup.ProductData, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}

	u := fmt.Sprintf("%s/api/v2/product/%s.json", base, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create openfoodfacts request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute openfoodfacts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read openfoodfacts response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openfoodfacts request failed with status %d", resp.StatusCode)
	}

	var parsed offResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode openfoodfacts response: %w", err)
	}
	if parsed.Status != 1 {
		return nil, nil
	}

	data := toProductData(parsed.Product)
	if data.Empty() {
		return nil, nil
	}
	return data, nil
}

func toProductData(p offProduct) *lookup.ProductData {
	data := &lookup.ProductData{}

	for _, name := range []string{p.ProductName, p.ProductNameEN, p.GenericName} {
		if s := strings.TrimSpace(name); s != "" {
			data.Name = s
			break
		}
	}

	var tags []string
	for _, t := range append(append([]string{}, p.CategoriesTags...), p.LabelsTags...) {
		// "en:sodas" -> "sodas"
		if _, rest, ok := strings.Cut(t, ":"); ok {
			t = rest
		}
		tags = append(tags, t)
	}
	data.Tags = merge.NormalizeList(tags)

	var ingredients []string
	if len(p.Ingredients) > 0 {
		for _, ing := range p.Ingredients {
			ingredients = append(ingredients, ing.Text)
		}
	} else if p.IngredientsText != "" {
		ingredients = strings.Split(p.IngredientsText, ",")
	}
	data.Ingredients = merge.NormalizeList(ingredients)

	nutrition := models.Nutrition{}
	for _, f := range nutrimentFields {
		if v, ok := parseFloatAny(p.Nutriments[f.src]); ok && v != 0 {
			nutrition[f.dst] = v
		}
	}
	if len(nutrition) > 0 {
		data.Nutrition = nutrition
	}

	if len(data.Tags) == 0 {
		data.Tags = nil
	}
	if len(data.Ingredients) == 0 {
		data.Ingredients = nil
	}
	return data
}

func parseFloatAny(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

type offResponse struct {
	Status  int        `json:"status"`
	Product offProduct `json:"product"`
}

type offIngredient struct {
	Text string `json:"text"`
}

type offProduct struct {
	Code            string          `json:"code"`
	ProductName     string          `json:"product_name"`
	ProductNameEN   string          `json:"product_name_en"`
	GenericName     string          `json:"generic_name"`
	CategoriesTags  []string        `json:"categories_tags"`
	LabelsTags      []string        `json:"labels_tags"`
	Ingredients     []offIngredient `json:"ingredients"`
	IngredientsText string          `json:"ingredients_text"`
	Nutriments      map[string]any  `json:"nutriments"`
}
