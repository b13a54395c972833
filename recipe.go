package elpico

// Recipe is a read-only bake profile: target temperatures for both zones,
// the ready-state message, and nominal bake duration.
type Recipe struct {
	Name        string
	UpperC      float64
	LowerC      float64
	ReadyMsg    string
	BakeSeconds int
}

// Recipes is the built-in recipe table. Index into it with
// Settings.RecipeIdx; never mutated at runtime.
var Recipes = [...]Recipe{
	{Name: "Napoli", UpperC: 500, LowerC: 430, ReadyMsg: "Pizza Time", BakeSeconds: 90},
	{Name: "Romana", UpperC: 330, LowerC: 310, ReadyMsg: "Crispy Romana", BakeSeconds: 180},
}

// PowerLimit is a selectable circuit-breaker budget.
type PowerLimit struct {
	Label string
	Watts int
}

// PowerLimits is the built-in power-limit table. Index into it with
// Settings.LimitIdx.
var PowerLimits = [...]PowerLimit{
	{Label: "1.4kW", Watts: 1420},
	{Label: "1.0kW", Watts: 1000},
	{Label: "0.7kW", Watts: 700},
}

// Element ratings, watts.
const (
	RatedUpperW = 850
	RatedLowerW = 570
)

// RecipeAt returns the recipe at idx, clamping into range so a corrupt or
// stale settings index never panics.
func RecipeAt(idx uint8) Recipe {
	if int(idx) >= len(Recipes) {
		return Recipes[0]
	}
	return Recipes[idx]
}

// PowerLimitAt returns the power limit at idx, clamping into range.
func PowerLimitAt(idx uint8) PowerLimit {
	if int(idx) >= len(PowerLimits) {
		return PowerLimits[0]
	}
	return PowerLimits[idx]
}
