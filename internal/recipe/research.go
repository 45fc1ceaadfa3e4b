package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type researchPromptData struct {
	Title    string
	MealType string
}

// research gathers inspiration for the enhancement stage. A nil result
// means none could be found; the pipeline carries on without it.
func (p *Pipeline) research(ctx context.Context, logger *slog.Logger, r Recipe) *Inspiration {
	insp, err := p.fetchInspiration(ctx, r)
	if err != nil {
		logger.WarnContext(ctx, "inspiration unavailable, continuing without it",
			"error", err)
		return nil
	}
	return insp
}

func (p *Pipeline) fetchInspiration(ctx context.Context, r Recipe) (*Inspiration, error) {
	data := researchPromptData{Title: r.Title}
	if r.MealType != "Unknown" {
		data.MealType = r.MealType
	}
	prompt, err := render("research", data)
	if err != nil {
		return nil, err
	}

	reply, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var insp Inspiration
	if err := extractJSON(reply, &insp); err != nil {
		return nil, fmt.Errorf("inspiration: %w", err)
	}
	if insp.empty() {
		return nil, errors.New("inspiration: reply contained no ideas")
	}
	if insp.InspirationStrength == "" {
		insp.InspirationStrength = "medium"
	}
	return &insp, nil
}
