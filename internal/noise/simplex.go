package noise

import (
	"context"

	"github.com/ojrac/opensimplex-go"
)

// SimplexField альтернативный алгоритм на основе OpenSimplex.
type SimplexField struct {
	noise      opensimplex.Noise
	resolution float64
}

// NewSimplexField создаёт поле OpenSimplex с указанным сидом
func NewSimplexField(seed int64, resolution int) *SimplexField {
	return &SimplexField{
		noise:      opensimplex.New(seed),
		resolution: float64(resolution),
	}
}

// Raw возвращает сырые значения шума
func (f *SimplexField) Raw(ctx context.Context, side int) (RawGrid, error) {
	return sampleFunc(ctx, side, func(x, y int) float64 {
		return f.noise.Eval2(float64(x)/f.resolution, float64(y)/f.resolution)
	})
}
