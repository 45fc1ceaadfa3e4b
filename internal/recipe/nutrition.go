package recipe

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Nutrition estimation methods
const (
	MethodAIEstimate    = "ai_enhanced_estimation"
	MethodBasicEstimate = "basic_estimate"
)

type nutritionPromptData struct {
	Title       string
	Servings    Servings
	MealType    string
	Methods     []string
	Ingredients []string
}

// nutritionReply mirrors NutritionFacts with pointers so missing values can
// be told apart from zeros.
type nutritionReply struct {
	Calories      *float64 `json:"calories"`
	Protein       *float64 `json:"protein"`
	Carbs         *float64 `json:"carbs"`
	Fat           *float64 `json:"fat"`
	Fiber         *float64 `json:"fiber"`
	Sugar         *float64 `json:"sugar"`
	Sodium        *float64 `json:"sodium"`
	Confidence    string   `json:"confidence"`
	AnalysisNotes []string `json:"analysis_notes"`
}

// analyzeNutrition estimates per-serving nutrition. A model failure falls
// back to a meal-type estimate, so the only error is ctx cancellation.
func (p *Pipeline) analyzeNutrition(ctx context.Context, logger *slog.Logger, r Recipe) (NutritionReport, error) {
	facts, err := p.estimateNutrition(ctx, r)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return NutritionReport{}, ctxErr
		}
		logger.WarnContext(ctx, "nutrition estimate failed, using meal type baseline",
			"error", err,
			"meal_type", r.MealType)
		report := buildNutritionReport(basicEstimate(r.MealType), r)
		report.Error = "Nutrition analysis failed"
		return report, nil
	}
	return buildNutritionReport(facts, r), nil
}

func (p *Pipeline) estimateNutrition(ctx context.Context, r Recipe) (NutritionFacts, error) {
	prompt, err := render("nutrition", nutritionPromptData{
		Title:       r.Title,
		Servings:    r.Servings,
		MealType:    r.MealType,
		Methods:     cookingMethods(r.Instructions),
		Ingredients: r.Ingredients,
	})
	if err != nil {
		return NutritionFacts{}, err
	}

	reply, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return NutritionFacts{}, err
	}

	var raw nutritionReply
	if err := extractJSON(reply, &raw); err != nil {
		return NutritionFacts{}, fmt.Errorf("nutrition: %w", err)
	}
	return raw.normalize(), nil
}

// normalize clamps every value into a plausible range, substituting
// defaults for missing ones, and reconciles calories with the macros when
// they disagree by more than 30%.
func (n nutritionReply) normalize() NutritionFacts {
	value := func(v *float64, def, limit float64) float64 {
		if v == nil {
			return def
		}
		return math.Max(0, math.Min(*v, limit))
	}
	facts := NutritionFacts{
		Calories:      value(n.Calories, 400, 2000),
		Protein:       value(n.Protein, 15, 100),
		Carbs:         value(n.Carbs, 30, 150),
		Fat:           value(n.Fat, 10, 80),
		Fiber:         value(n.Fiber, 3, 20),
		Sugar:         value(n.Sugar, 5, 50),
		Sodium:        value(n.Sodium, 300, 3000),
		Confidence:    n.Confidence,
		Method:        MethodAIEstimate,
		AnalysisNotes: n.AnalysisNotes,
	}
	if facts.Confidence == "" {
		facts.Confidence = "medium"
	}

	fromMacros := facts.Protein*4 + facts.Carbs*4 + facts.Fat*9
	if math.Abs(facts.Calories-fromMacros) > facts.Calories*0.3 {
		facts.Calories = math.Round((facts.Calories + fromMacros) / 2)
	}
	return facts
}

var mealBaselines = map[string]NutritionFacts{
	"breakfast": {Calories: 350, Protein: 15, Carbs: 45, Fat: 12},
	"lunch":     {Calories: 450, Protein: 20, Carbs: 50, Fat: 15},
	"dinner":    {Calories: 550, Protein: 25, Carbs: 55, Fat: 18},
	"snack":     {Calories: 200, Protein: 8, Carbs: 25, Fat: 8},
	"dessert":   {Calories: 300, Protein: 5, Carbs: 45, Fat: 12},
}

// basicEstimate returns a low-confidence baseline for the meal type.
func basicEstimate(mealType string) NutritionFacts {
	facts, ok := mealBaselines[strings.ToLower(mealType)]
	if !ok {
		facts = mealBaselines["dinner"]
	}
	facts.Fiber = 4
	facts.Sugar = 8
	facts.Sodium = 400
	facts.Method = MethodBasicEstimate
	facts.Confidence = "low"
	return facts
}

var cookingVerbs = []string{
	"bake", "roast", "grill", "fry", "saute", "sauté", "boil", "simmer",
	"steam", "braise", "broil", "poach", "sear",
}

// cookingMethods lists the cooking verbs mentioned in the instructions.
func cookingMethods(instructions []string) []string {
	var found []string
	text := strings.ToLower(strings.Join(instructions, " "))
	for _, verb := range cookingVerbs {
		if strings.Contains(text, verb) {
			found = append(found, verb)
		}
	}
	return found
}

func buildNutritionReport(facts NutritionFacts, r Recipe) NutritionReport {
	return NutritionReport{
		PerServing:       facts,
		HealthInsights:   healthInsights(facts, r.MealType),
		DietaryTags:      dietaryTags(facts),
		NutritionScore:   nutritionScore(facts),
		Recommendations:  nutritionRecommendations(facts),
		AnalysisMethod:   facts.Method,
		Confidence:       facts.Confidence,
		ServingsAnalyzed: r.Servings.Count(),
	}
}

// dietaryTags derives calorie and macro tags.
func dietaryTags(n NutritionFacts) []string {
	tags := []string{}
	switch {
	case n.Calories < 300:
		tags = append(tags, "low-calorie")
	case n.Calories > 500:
		tags = append(tags, "high-calorie")
	}
	if n.Protein > 20 {
		tags = append(tags, "high-protein")
	}
	if n.Carbs < 20 {
		tags = append(tags, "low-carb")
	}
	return tags
}

// nutritionScore rates n from 0 to 10 starting at 5.
func nutritionScore(n NutritionFacts) float64 {
	score := 5.0
	if n.Protein > 15 {
		score++
	}
	if n.Fiber > 5 {
		score++
	}
	if n.Sodium < 600 {
		score++
	}
	if n.Sodium > 1000 {
		score--
	}
	if n.Calories > 700 {
		score -= 0.5
	}
	return clampScore(round1(score))
}

const maxInsights = 4

func healthInsights(n NutritionFacts, mealType string) []string {
	var insights []string

	switch meal := strings.ToLower(mealType); {
	case meal == "breakfast" && n.Calories < 300:
		insights = append(insights, "Light breakfast - great for weight management")
	case meal == "lunch" && n.Calories >= 400 && n.Calories <= 600:
		insights = append(insights, "Well-balanced lunch portion")
	case meal == "dinner" && n.Calories > 700:
		insights = append(insights, "Hearty dinner - consider portion control if needed")
	case n.Calories < 300:
		insights = append(insights, "Light meal - perfect for calorie-conscious eating")
	case n.Calories > 600:
		insights = append(insights, "Substantial meal - great for active individuals")
	}

	switch {
	case n.Protein > 25:
		insights = append(insights, "High protein content - excellent for muscle maintenance")
	case n.Protein > 15:
		insights = append(insights, "Good protein source - supports daily protein needs")
	case n.Protein < 10:
		insights = append(insights, "Lower protein - consider adding protein-rich ingredients")
	}

	switch {
	case n.Fiber > 8:
		insights = append(insights, "High fiber content - supports digestive health")
	case n.Fiber > 5:
		insights = append(insights, "Good fiber source - aids in digestion")
	case n.Fiber < 3:
		insights = append(insights, "Low fiber - consider adding vegetables or whole grains")
	}

	switch {
	case n.Sodium > 1000:
		insights = append(insights, "Higher sodium content - balance with low-sodium foods")
	case n.Sodium > 600:
		insights = append(insights, "Moderate sodium levels - within reasonable range")
	case n.Sodium < 300:
		insights = append(insights, "Low sodium - heart-friendly option")
	}

	if n.Method == MethodBasicEstimate {
		insights = append(insights, "Nutrition analysis unavailable - estimates provided")
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

func nutritionRecommendations(n NutritionFacts) []string {
	var recs []string
	if n.Fiber < 5 {
		recs = append(recs, "Add more vegetables or use whole grain alternatives")
	}
	if n.Protein < 15 {
		recs = append(recs, "Consider adding lean protein like chicken, fish, or legumes")
	}
	if n.Sodium > 800 {
		recs = append(recs, "Reduce salt and use herbs/spices for flavor instead")
	}
	return recs
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}
