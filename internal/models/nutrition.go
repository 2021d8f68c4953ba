package models

// Nutrition holds per-unit nutrition facts keyed by field name. Macros are in
// grams, energy in kcal, micronutrients in mg or mcg as the key suffix says.
type Nutrition map[string]float64

// NutritionFields is the closed set of accepted nutrition keys.
var NutritionFields = []string{
	// energy
	"calories",
	// macros
	"protein", "fat", "carbs", "fiber", "sugars", "saturated_fat", "trans_fat",
	// cholesterol and electrolytes
	"cholesterol_mg", "sodium_mg", "potassium_mg",
	// minerals
	"calcium_mg", "iron_mg", "magnesium_mg", "phosphorus_mg", "zinc_mg",
	"selenium_mcg", "copper_mg", "manganese_mg",
	// vitamins
	"vitamin_a_mcg", "vitamin_c_mg", "vitamin_d_mcg", "vitamin_e_mg", "vitamin_k_mcg",
	"thiamin_mg", "riboflavin_mg", "niacin_mg", "vitamin_b6_mg", "folate_mcg", "vitamin_b12_mcg",
}

// Macros tracked by the daily log and targets.
var Macros = []string{"calories", "protein", "fat", "carbs"}

var nutritionFieldSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(NutritionFields))
	for _, f := range NutritionFields {
		m[f] = struct{}{}
	}
	return m
}()

func IsNutritionField(key string) bool {
	_, ok := nutritionFieldSet[key]
	return ok
}

func IsMacro(key string) bool {
	for _, m := range Macros {
		if m == key {
			return true
		}
	}
	return false
}

// ZeroNutrition returns a record with every known field set to zero.
func ZeroNutrition() Nutrition {
	n := make(Nutrition, len(NutritionFields))
	for _, f := range NutritionFields {
		n[f] = 0
	}
	return n
}
