package recipe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/recipe-queue/internal/task"
)

// Strategy is one way of improving a recipe.
type Strategy struct {
	Name        string
	Description string
}

// Enhancement strategies
var (
	StrategyFlavorBoosting = Strategy{"flavor_boosting",
		"Add complementary spices, herbs, aromatics, or flavor compounds"}
	StrategyTextureVariation = Strategy{"texture_variation",
		"Introduce contrasting textures (crunchy, creamy, chewy elements)"}
	StrategyPresentationUpgrade = Strategy{"presentation_upgrade",
		"Improve plating, garnishing, and visual appeal"}
	StrategyTechniqueSophistication = Strategy{"technique_sophistication",
		"Upgrade cooking techniques (braising, reduction, emulsification)"}
	StrategyFusionElements = Strategy{"fusion_elements",
		"Incorporate elements from other cuisines tastefully"}
)

const maxStrategies = 3

// selectStrategies picks at most three strategies for r.
func selectStrategies(r Recipe, insp *Inspiration) []Strategy {
	difficulty := strings.ToLower(r.Difficulty)
	mealType := strings.ToLower(r.MealType)

	strategies := []Strategy{StrategyFlavorBoosting}
	if len(r.Ingredients) > 3 {
		strategies = append(strategies, StrategyTextureVariation)
	}
	if mealType == "dinner" || mealType == "dessert" || difficulty == "easy" {
		strategies = append(strategies, StrategyPresentationUpgrade)
	}
	if difficulty == "easy" {
		strategies = append(strategies, StrategyTechniqueSophistication)
	}
	if insp != nil {
		strategies = append(strategies, StrategyFusionElements)
	}
	if len(strategies) > maxStrategies {
		strategies = strategies[:maxStrategies]
	}
	return strategies
}

type enhancePromptData struct {
	Recipe      Recipe
	Inspiration *Inspiration
	Strategies  []Strategy
	Complexity  string
}

// enhance returns an improved copy of base. On failure base is returned
// with EnhancementError set.
func (p *Pipeline) enhance(
	ctx context.Context,
	logger *slog.Logger,
	base Recipe,
	insp *Inspiration,
	complexity task.Complexity,
) Recipe {
	strategies := selectStrategies(base, insp)
	enhanced, err := p.requestEnhancement(ctx, base, insp, strategies, complexity)
	if err != nil {
		logger.WarnContext(ctx, "enhancement failed, keeping base recipe",
			"error", err)
		base.EnhancementError = err.Error()
		return base
	}
	logger.DebugContext(ctx, "recipe enhanced",
		"strategy_count", len(strategies),
		"enhancements", len(enhanced.EnhancementsMade))
	return enhanced
}

func (p *Pipeline) requestEnhancement(
	ctx context.Context,
	base Recipe,
	insp *Inspiration,
	strategies []Strategy,
	complexity task.Complexity,
) (Recipe, error) {
	prompt, err := render("enhance", enhancePromptData{
		Recipe:      base,
		Inspiration: insp,
		Strategies:  strategies,
		Complexity:  complexity.Label(),
	})
	if err != nil {
		return Recipe{}, err
	}

	reply, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return Recipe{}, err
	}

	var update Recipe
	if err := extractJSON(reply, &update); err != nil {
		return Recipe{}, fmt.Errorf("enhancement: %w", err)
	}
	return mergeEnhancement(base, update), nil
}

// mergeEnhancement overlays the non-empty fields of update on base.
func mergeEnhancement(base, update Recipe) Recipe {
	out := base
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlayList := func(dst *[]string, v []string) {
		if len(v) > 0 {
			*dst = v
		}
	}
	overlay(&out.Title, update.Title)
	overlay(&out.Description, update.Description)
	overlay(&out.PrepTime, update.PrepTime)
	overlay(&out.CookTime, update.CookTime)
	overlay(&out.TotalTime, update.TotalTime)
	overlay(&out.Difficulty, update.Difficulty)
	overlay(&out.CuisineType, update.CuisineType)
	overlay(&out.MealType, update.MealType)
	overlay(&out.EnhancementLevel, update.EnhancementLevel)
	if update.Servings != "" {
		out.Servings = update.Servings
	}
	overlayList(&out.Ingredients, update.Ingredients)
	overlayList(&out.Instructions, update.Instructions)
	overlayList(&out.Tags, update.Tags)
	overlayList(&out.EnhancementsMade, update.EnhancementsMade)
	overlayList(&out.ChefNotes, update.ChefNotes)

	if len(out.EnhancementsMade) == 0 {
		out.EnhancementsMade = []string{"General improvements"}
	}
	if out.EnhancementLevel == "" {
		out.EnhancementLevel = "moderate"
	}
	out.Enhanced = true
	out.OriginalTitle = base.Title
	if len(update.Ingredients) < len(base.Ingredients) {
		out.EnhancementWarning = "Enhancement may have simplified the recipe"
	}
	return out
}
