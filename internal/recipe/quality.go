package recipe

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/phrazzld/recipe-queue/internal/task"
)

// Quality thresholds
const (
	ThresholdAcceptable = 6.0
	ThresholdGood       = 7.5
	ThresholdExcellent  = 9.0
)

var dimensionWeights = map[string]float64{
	DimensionCreativity:          0.20,
	DimensionPracticality:        0.25,
	DimensionNutrition:           0.20,
	DimensionCompleteness:        0.15,
	DimensionComplexityAlignment: 0.20,
}

// scoreOrder fixes the order recommendations are collected in.
var scoreOrder = []string{
	DimensionCreativity,
	DimensionPracticality,
	DimensionNutrition,
	DimensionCompleteness,
	DimensionComplexityAlignment,
}

type evaluatePromptData struct {
	Dimension  string
	Complexity string
	Criteria   string
	Focus      string
	Recipe     any
}

var dimensionFocus = map[string]string{
	DimensionCreativity: `Evaluate creativity based on ingredient combinations, cooking techniques,
flavor profiles, presentation, and creative enhancements over basic versions.`,
	DimensionPracticality: `Evaluate practicality for home cooks based on ingredient accessibility,
equipment, time commitment, skill level, and how actionable the instructions are.`,
	DimensionComplexityAlignment: `Evaluate how well the recipe matches the expected complexity: ingredient
specialization, techniques, time, equipment, skill, and number of steps.
Score 10 = perfect alignment, 5 = somewhat matches, 1 = completely wrong complexity.`,
}

// evaluateDimensions scores every dimension except nutrition, which is
// folded in later by assembleQuality once the nutrition analysis is done.
func (p *Pipeline) evaluateDimensions(
	ctx context.Context,
	logger *slog.Logger,
	r Recipe,
	complexity task.Complexity,
) (map[string]DimensionScore, error) {
	scores := map[string]DimensionScore{
		DimensionCompleteness: evaluateCompleteness(r),
	}
	for _, dim := range []string{DimensionCreativity, DimensionPracticality, DimensionComplexityAlignment} {
		score, err := p.evaluateDimension(ctx, dim, r, complexity)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.WarnContext(ctx, "quality evaluation failed, using heuristic",
				"dimension", dim,
				"error", err)
			score = fallbackDimension(dim, r, complexity)
		}
		scores[dim] = score
	}
	return scores, nil
}

func (p *Pipeline) evaluateDimension(
	ctx context.Context,
	dim string,
	r Recipe,
	complexity task.Complexity,
) (DimensionScore, error) {
	prompt, err := render("evaluate", evaluatePromptData{
		Dimension:  strings.ToUpper(strings.ReplaceAll(dim, "_", " ")),
		Complexity: complexity.Label(),
		Criteria:   criteriaFor(complexity),
		Focus:      dimensionFocus[dim],
		Recipe:     r,
	})
	if err != nil {
		return DimensionScore{}, err
	}

	reply, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return DimensionScore{}, err
	}

	var score DimensionScore
	if err := extractJSON(reply, &score); err != nil {
		return DimensionScore{}, fmt.Errorf("%s evaluation: %w", dim, err)
	}
	if score.Score <= 0 {
		return DimensionScore{}, fmt.Errorf("%s evaluation: missing score", dim)
	}
	score.Score = clampScore(score.Score)
	if score.Confidence == "" {
		score.Confidence = "medium"
	}
	return score, nil
}

// fallbackDimension scores dim from the recipe shape alone.
func fallbackDimension(dim string, r Recipe, complexity task.Complexity) DimensionScore {
	ingredients, steps := len(r.Ingredients), len(r.Instructions)
	switch dim {
	case DimensionCreativity:
		score := 5.0
		if len(r.EnhancementsMade) > 0 {
			score++
		}
		if ingredients > 8 {
			score += 0.5
		}
		return DimensionScore{
			Score:               score,
			Strengths:           []string{"Recipe has been enhanced"},
			AreasForImprovement: []string{"Could add more creative elements"},
			Confidence:          "low",
		}
	case DimensionPracticality:
		score := 6.0
		if strings.EqualFold(r.Difficulty, "easy") {
			score++
		}
		if ingredients <= 10 {
			score += 0.5
		}
		return DimensionScore{
			Score:               score,
			Strengths:           []string{"Reasonable ingredient count"},
			AreasForImprovement: []string{"Verify ingredient accessibility"},
			Confidence:          "low",
		}
	default:
		score := 5.0
		switch complexity {
		case task.ComplexityEasy:
			if ingredients <= 10 && steps <= 8 {
				score++
			}
		case task.ComplexityHigh:
			if ingredients >= 12 && steps >= 10 {
				score++
			}
		}
		label := complexity.Label()
		return DimensionScore{
			Score:               score,
			Analysis:            "Basic heuristic evaluation for " + label + " complexity",
			Strengths:           []string{"Recipe structure suits " + label + " level"},
			AreasForImprovement: []string{"Verify alignment with " + label + " complexity standards"},
			Confidence:          "low",
		}
	}
}

var measureWords = []string{"cup", "tbsp", "tsp", "lb", "oz", "gram", "kg", "liter", "ml", " g "}

// evaluateCompleteness checks structural completeness locally.
func evaluateCompleteness(r Recipe) DimensionScore {
	detailed := ingredientsDetailed(r.Ingredients)
	readable := instructionsClear(r.Instructions)
	timed := r.PrepTime != "" && r.CookTime != "" && r.PrepTime != "Unknown" && r.CookTime != "Unknown"

	checks := []bool{
		r.Title != "",
		r.Description != "",
		len(r.Ingredients) > 0,
		len(r.Instructions) > 0,
		timed,
		r.Servings != "",
		detailed,
		readable,
		len(r.Tags) > 0,
	}
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}

	var strengths, improvements []string
	if detailed {
		strengths = append(strengths, "Detailed ingredient measurements")
	} else {
		improvements = append(improvements, "Add specific measurements to ingredients")
	}
	if readable {
		strengths = append(strengths, "Clear step-by-step instructions")
	} else {
		improvements = append(improvements, "Make instructions more detailed and clear")
	}
	if timed {
		strengths = append(strengths, "Complete timing information")
	} else {
		improvements = append(improvements, "Add prep and cook time estimates")
	}

	return DimensionScore{
		Score:               round1(float64(passed) / float64(len(checks)) * 10),
		Strengths:           strengths,
		AreasForImprovement: improvements,
		Confidence:          "high",
	}
}

// ingredientsDetailed reports whether at least 70% of the ingredients carry
// a measurement.
func ingredientsDetailed(ingredients []string) bool {
	if len(ingredients) == 0 {
		return false
	}
	n := 0
	for _, ing := range ingredients {
		lower := " " + strings.ToLower(ing) + " "
		for _, m := range measureWords {
			if strings.Contains(lower, m) {
				n++
				break
			}
		}
	}
	return float64(n) >= float64(len(ingredients))*0.7
}

// instructionsClear reports whether at least 80% of the steps have five or
// more words.
func instructionsClear(instructions []string) bool {
	if len(instructions) == 0 {
		return false
	}
	n := 0
	for _, step := range instructions {
		if len(strings.Fields(step)) >= 5 {
			n++
		}
	}
	return float64(n) >= float64(len(instructions))*0.8
}

// nutritionDimension turns the nutrition analysis into a quality dimension.
func nutritionDimension(n NutritionReport) DimensionScore {
	return DimensionScore{
		Score:               n.NutritionScore,
		Strengths:           firstN(n.HealthInsights, 2),
		AreasForImprovement: firstN(n.Recommendations, 2),
		Confidence:          n.Confidence,
	}
}

// assembleQuality combines the dimension scores into the final report.
func assembleQuality(scores map[string]DimensionScore, complexity task.Complexity) QualityReport {
	overall := overallScore(scores)
	return QualityReport{
		Score:               overall,
		Verdict:             qualityVerdict(overall),
		Level:               qualityLevel(overall),
		DetailedScores:      scores,
		Recommendations:     qualityRecommendations(scores, complexity),
		MeetsThreshold:      overall >= ThresholdAcceptable,
		Confidence:          overallConfidence(scores),
		ComplexityEvaluated: complexity.Label(),
	}
}

// overallScore is the weighted mean of the scored dimensions, or 5 when
// none were scored.
func overallScore(scores map[string]DimensionScore) float64 {
	var sum, weights float64
	for dim, s := range scores {
		w, ok := dimensionWeights[dim]
		if !ok || s.Score <= 0 {
			continue
		}
		sum += s.Score * w
		weights += w
	}
	if weights == 0 {
		return 5.0
	}
	return round1(sum / weights)
}

func qualityVerdict(score float64) string {
	switch {
	case score >= ThresholdExcellent:
		return "excellent"
	case score >= ThresholdGood:
		return "good"
	case score >= ThresholdAcceptable:
		return "acceptable"
	default:
		return "needs_improvement"
	}
}

func qualityLevel(score float64) string {
	switch {
	case score >= 9.0:
		return "Exceptional"
	case score >= 7.5:
		return "Very Good"
	case score >= 6.0:
		return "Good"
	case score >= 4.0:
		return "Average"
	default:
		return "Needs Work"
	}
}

const maxRecommendations = 5

func qualityRecommendations(scores map[string]DimensionScore, complexity task.Complexity) []string {
	var recs []string
	for _, dim := range scoreOrder {
		for _, r := range firstN(scores[dim].AreasForImprovement, 2) {
			if !slices.Contains(recs, r) {
				recs = append(recs, r)
			}
		}
	}

	label := complexity.Label()
	low := func(dim string) bool {
		s, ok := scores[dim]
		return ok && s.Score < ThresholdAcceptable
	}
	if low(DimensionComplexityAlignment) {
		recs = slices.Insert(recs, 0, "Better align recipe with "+label+" complexity expectations")
	}
	if low(DimensionCreativity) {
		recs = slices.Insert(recs, 0, "Add more creative elements appropriate for "+label+" level")
	}
	if low(DimensionPracticality) {
		recs = slices.Insert(recs, 0, "Improve practicality for "+label+" complexity level")
	}
	return firstN(recs, maxRecommendations)
}

func overallConfidence(scores map[string]DimensionScore) string {
	levels := map[string]float64{"low": 1, "medium": 2, "high": 3}
	var sum float64
	n := 0
	for _, s := range scores {
		if s.Confidence == "" {
			continue
		}
		v, ok := levels[s.Confidence]
		if !ok {
			v = 2
		}
		sum += v
		n++
	}
	if n == 0 {
		return "medium"
	}
	switch avg := sum / float64(n); {
	case avg >= 2.7:
		return "high"
	case avg >= 1.7:
		return "medium"
	default:
		return "low"
	}
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
