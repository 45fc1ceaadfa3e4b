package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/recipe-queue/internal/generation"
	"github.com/phrazzld/recipe-queue/internal/task"
	"golang.org/x/sync/errgroup"
)

// Progress steps reported while the pipeline runs
const (
	StepGenerating  = "generating"
	StepResearching = "researching"
	StepEnhancing   = "enhancing"
	StepAnalyzing   = "analyzing"
)

// ErrNilGenerator is returned by NewPipeline when no generator is supplied.
var ErrNilGenerator = errors.New("generator cannot be nil")

// Pipeline produces recipes. It implements task.Pipeline.
type Pipeline struct {
	generator generation.Generator
	now       func() time.Time
	logger    *slog.Logger
}

var _ task.Pipeline = (*Pipeline)(nil)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the clock used to time a run.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline backed by generator.
func NewPipeline(generator generation.Generator, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, task.ErrNilLogger
	}
	p := &Pipeline{
		generator: generator,
		now:       time.Now,
		logger:    logger.With("component", "recipe_pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run generates, enhances and analyzes a recipe for req.
func (p *Pipeline) Run(ctx context.Context, req task.Request, report task.ProgressFunc) (any, error) {
	if report == nil {
		report = func(string, string) {}
	}
	start := p.now()
	logger := p.logger.With("complexity", string(req.Complexity))

	report(StepGenerating, "Creating base recipe...")
	base, err := p.generateBase(ctx, req)
	if err != nil {
		logger.ErrorContext(ctx, "base recipe generation failed", "error", err)
		return nil, fmt.Errorf("recipe generation failed: %w", err)
	}
	logger = logger.With("title", base.Title)

	report(StepResearching, "Finding cooking inspiration...")
	insp := p.research(ctx, logger, base)

	report(StepEnhancing, "Adding creative improvements...")
	enhanced := p.enhance(ctx, logger, base, insp, req.Complexity)

	report(StepAnalyzing, "Analyzing nutrition & quality...")
	nutrition, quality, err := p.analyze(ctx, logger, enhanced, req.Complexity)
	if err != nil {
		return nil, fmt.Errorf("recipe analysis failed: %w", err)
	}

	result := &GenerationResult{
		Success:               true,
		Recipe:                enhanced,
		Nutrition:             nutrition,
		Quality:               quality,
		Iterations:            1,
		ComplexityRequested:   req.Complexity.Label(),
		GenerationTimeSeconds: int(p.now().Sub(start).Seconds()),
		InspirationUsed:       insp != nil,
	}
	logger.InfoContext(ctx, "recipe generated",
		"quality_score", quality.Score,
		"calories", nutrition.PerServing.Calories,
		"duration_seconds", result.GenerationTimeSeconds)
	return result, nil
}

// analyze runs the nutrition analysis and the quality evaluation
// concurrently and then folds the nutrition score into the quality report.
func (p *Pipeline) analyze(
	ctx context.Context,
	logger *slog.Logger,
	r Recipe,
	complexity task.Complexity,
) (NutritionReport, QualityReport, error) {
	var (
		nutrition NutritionReport
		scores    map[string]DimensionScore
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nutrition, err = p.analyzeNutrition(gctx, logger, r)
		return err
	})
	g.Go(func() error {
		var err error
		scores, err = p.evaluateDimensions(gctx, logger, r, complexity)
		return err
	})
	if err := g.Wait(); err != nil {
		return NutritionReport{}, QualityReport{}, err
	}

	scores[DimensionNutrition] = nutritionDimension(nutrition)
	return nutrition, assembleQuality(scores, complexity), nil
}
