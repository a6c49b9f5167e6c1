package noise

import (
	"context"

	"github.com/aquilax/go-perlin"
)

// Параметры go-perlin: одна октава, без фрактального наложения
const (
	perlinAlpha   = 2.0
	perlinBeta    = 2.0
	perlinOctaves = int32(1)
)

// PerlinField альтернативный алгоритм на основе github.com/aquilax/go-perlin.
// Точка (x, y) отображается в (x/resolution, y/resolution).
type PerlinField struct {
	noise      *perlin.Perlin
	resolution float64
}

// NewPerlinField инициализирует генератор шума Перлина с указанным сидом
func NewPerlinField(seed int64, resolution int) *PerlinField {
	return &PerlinField{
		noise:      perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed),
		resolution: float64(resolution),
	}
}

// Raw возвращает сырые значения шума (примерно от -1 до 1)
func (f *PerlinField) Raw(ctx context.Context, side int) (RawGrid, error) {
	return sampleFunc(ctx, side, func(x, y int) float64 {
		return f.noise.Noise2D(float64(x)/f.resolution, float64(y)/f.resolution)
	})
}
