package heightmap

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/noise"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/annel0/terragen/internal/heightmap")

// Generator собирает конвейер: поле шума -> сырая сетка -> нормализация -> конверт карты.
type Generator struct {
	metrics *Metrics
}

// NewGenerator создаёт генератор; metrics может быть nil
func NewGenerator(metrics *Metrics) *Generator {
	return &Generator{metrics: metrics}
}

// Generate строит карту высот. Если сид не задан, используется энтропия окружения.
// При ошибке карта не возвращается.
func (g *Generator) Generate(ctx context.Context, p Params) (*Map, error) {
	ctx, span := tracer.Start(ctx, "heightmap.Generate")
	defer span.End()

	m, err := g.generate(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.metrics.observeFailure(err)
		logging.Warn("⚠️ Генерация карты %dx%d не удалась: %v", p.Side, p.Side, err)
		return nil, err
	}
	return m, nil
}

func (g *Generator) generate(ctx context.Context, p Params) (*Map, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.Resolved()
	palette, _ := noise.PaletteByName(p.Palette)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("terragen.side", p.Side),
		attribute.Int("terragen.resolution", p.Resolution),
		attribute.Int64("terragen.seed", *p.Seed),
		attribute.String("terragen.algorithm", algorithmName(p.Algorithm)),
	)

	start := time.Now()
	logging.Debug("Генерация карты: side=%d resolution=%d seed=%d algorithm=%s",
		p.Side, p.Resolution, *p.Seed, algorithmName(p.Algorithm))

	field, err := noise.NewField(p.Algorithm, noise.FieldOptions{
		Resolution: p.Resolution,
		Seed:       *p.Seed,
		Palette:    palette,
		Workers:    p.Workers,
	})
	if err != nil {
		return nil, err
	}

	raw, err := field.Raw(ctx, p.Side)
	if err != nil {
		return nil, fmt.Errorf("вычисление шума: %w", err)
	}

	heights, err := Normalize(raw, p.Sea, p.AltMax)
	if err != nil {
		return nil, fmt.Errorf("нормализация: %w", err)
	}

	m := &Map{Side: p.Side, Step: p.Step, Heightmap: heights}
	elapsed := time.Since(start)
	g.metrics.observeSuccess(algorithmName(p.Algorithm), elapsed, m)
	logging.Info("🗺️ Карта %dx%d сгенерирована за %s (seed=%d)", p.Side, p.Side, elapsed, *p.Seed)
	return m, nil
}

func algorithmName(a string) string {
	if a == "" {
		return noise.AlgorithmGradient
	}
	return a
}
