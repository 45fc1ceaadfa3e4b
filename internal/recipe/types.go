package recipe

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Servings accepts either a JSON string or number and keeps it as text.
type Servings string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Servings) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Servings(text)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = Servings(n.String())
	return nil
}

// Count returns the first integer found in s, or 4 when there is none.
func (s Servings) Count() int {
	digits := strings.FieldsFunc(string(s), func(r rune) bool { return r < '0' || r > '9' })
	if len(digits) == 0 {
		return 4
	}
	n, err := strconv.Atoi(digits[0])
	if err != nil || n <= 0 {
		return 4
	}
	return n
}

// Recipe is a structured recipe as produced and refined by the pipeline.
type Recipe struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	PrepTime     string   `json:"prep_time"`
	CookTime     string   `json:"cook_time"`
	TotalTime    string   `json:"total_time"`
	Servings     Servings `json:"servings"`
	Difficulty   string   `json:"difficulty"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	Tags         []string `json:"tags"`
	CuisineType  string   `json:"cuisine_type"`
	MealType     string   `json:"meal_type"`

	OriginalRequest string `json:"original_request,omitempty"`

	// Set by the enhancement stage
	Enhanced           bool     `json:"enhanced,omitempty"`
	EnhancementsMade   []string `json:"enhancements_made,omitempty"`
	ChefNotes          []string `json:"chef_notes,omitempty"`
	EnhancementLevel   string   `json:"enhancement_level,omitempty"`
	OriginalTitle      string   `json:"original_title,omitempty"`
	EnhancementError   string   `json:"enhancement_error,omitempty"`
	EnhancementWarning string   `json:"enhancement_warning,omitempty"`
}

// Inspiration is the cooking knowledge gathered for a recipe before it is
// enhanced.
type Inspiration struct {
	KeyTechniques          []string `json:"key_techniques"`
	InterestingIngredients []string `json:"interesting_ingredients"`
	FlavorCombinations     []string `json:"flavor_combinations"`
	PresentationIdeas      []string `json:"presentation_ideas"`
	ChefSecrets            []string `json:"chef_secrets"`
	CommonMistakes         []string `json:"common_mistakes"`
	InspirationStrength    string   `json:"inspiration_strength"`
}

// empty reports whether the model returned nothing usable.
func (i *Inspiration) empty() bool {
	return len(i.KeyTechniques) == 0 &&
		len(i.InterestingIngredients) == 0 &&
		len(i.FlavorCombinations) == 0 &&
		len(i.PresentationIdeas) == 0 &&
		len(i.ChefSecrets) == 0
}

// NutritionFacts are per-serving estimates.
type NutritionFacts struct {
	Calories      float64  `json:"calories"`
	Protein       float64  `json:"protein"`
	Carbs         float64  `json:"carbs"`
	Fat           float64  `json:"fat"`
	Fiber         float64  `json:"fiber"`
	Sugar         float64  `json:"sugar"`
	Sodium        float64  `json:"sodium"`
	Confidence    string   `json:"confidence"`
	Method        string   `json:"method"`
	AnalysisNotes []string `json:"analysis_notes,omitempty"`
}

// NutritionReport is the output of the nutrition analysis.
type NutritionReport struct {
	PerServing       NutritionFacts `json:"nutrition_per_serving"`
	HealthInsights   []string       `json:"health_insights"`
	DietaryTags      []string       `json:"dietary_tags"`
	NutritionScore   float64        `json:"nutrition_score"`
	Recommendations  []string       `json:"recommendations"`
	AnalysisMethod   string         `json:"analysis_method"`
	Confidence       string         `json:"confidence"`
	ServingsAnalyzed int            `json:"servings_analyzed"`
	Error            string         `json:"error,omitempty"`
}

// DimensionScore is the evaluation of one quality dimension.
type DimensionScore struct {
	Score               float64  `json:"score"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`
	Analysis            string   `json:"analysis,omitempty"`
	Confidence          string   `json:"confidence"`
}

// Quality dimensions
const (
	DimensionCreativity          = "creativity"
	DimensionPracticality        = "practicality"
	DimensionNutrition           = "nutrition"
	DimensionCompleteness        = "completeness"
	DimensionComplexityAlignment = "complexity_alignment"
)

// QualityReport is the output of the quality evaluation.
type QualityReport struct {
	Score               float64                   `json:"score"`
	Verdict             string                    `json:"quality_verdict"`
	Level               string                    `json:"quality_level"`
	DetailedScores      map[string]DimensionScore `json:"detailed_scores"`
	Recommendations     []string                  `json:"recommendations"`
	MeetsThreshold      bool                      `json:"meets_threshold"`
	Confidence          string                    `json:"confidence"`
	ComplexityEvaluated string                    `json:"complexity_evaluated"`
}

// GenerationResult is what a completed task carries as its result.
type GenerationResult struct {
	Success               bool            `json:"success"`
	Recipe                Recipe          `json:"recipe"`
	Nutrition             NutritionReport `json:"nutrition"`
	Quality               QualityReport   `json:"quality"`
	Iterations            int             `json:"iterations"`
	ComplexityRequested   string          `json:"complexity_requested"`
	GenerationTimeSeconds int             `json:"generation_time_seconds"`
	InspirationUsed       bool            `json:"inspiration_used"`
}
