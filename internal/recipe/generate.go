package recipe

import (
	"context"
	"fmt"

	"github.com/phrazzld/recipe-queue/internal/task"
)

type generatePromptData struct {
	Request    string
	Complexity string
	Criteria   string
}

// generateBase asks the model for the first draft of the recipe. This is
// the only stage whose failure fails the task.
func (p *Pipeline) generateBase(ctx context.Context, req task.Request) (Recipe, error) {
	prompt, err := render("generate", generatePromptData{
		Request:    req.Text,
		Complexity: req.Complexity.Label(),
		Criteria:   criteriaFor(req.Complexity),
	})
	if err != nil {
		return Recipe{}, err
	}

	reply, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return Recipe{}, err
	}

	var r Recipe
	if err := extractJSON(reply, &r); err != nil {
		return Recipe{}, fmt.Errorf("base recipe: %w", err)
	}
	applyDefaults(&r, req.Text)
	return r, nil
}

// applyDefaults fills in anything the model left out.
func applyDefaults(r *Recipe, request string) {
	setIfEmpty := func(field *string, v string) {
		if *field == "" {
			*field = v
		}
	}
	setIfEmpty(&r.Title, "Recipe for "+request)
	setIfEmpty(&r.Description, "A delicious recipe")
	setIfEmpty(&r.PrepTime, "Unknown")
	setIfEmpty(&r.CookTime, "Unknown")
	setIfEmpty(&r.TotalTime, "Unknown")
	setIfEmpty(&r.Difficulty, "Medium")
	setIfEmpty(&r.CuisineType, "Unknown")
	setIfEmpty(&r.MealType, "Unknown")
	if r.Servings == "" {
		r.Servings = "4"
	}
	if len(r.Ingredients) == 0 {
		r.Ingredients = []string{"Ingredients need to be specified"}
	}
	if len(r.Instructions) == 0 {
		r.Instructions = []string{"Instructions need to be specified"}
	}
	if len(r.Tags) == 0 {
		r.Tags = []string{"homemade", "recipe"}
	}
	r.OriginalRequest = request
}
