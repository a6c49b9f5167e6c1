package noise

import (
	"context"
	"fmt"
)

// Названия алгоритмов шума в конфигурации
const (
	AlgorithmGradient = "gradient"
	AlgorithmPerlin   = "perlin"
	AlgorithmSimplex  = "simplex"
)

// Field производит сырую сетку шума side×side
type Field interface {
	Raw(ctx context.Context, side int) (RawGrid, error)
}

// FieldOptions параметры построения поля шума
type FieldOptions struct {
	Resolution int     // размер ячейки сетки градиентов
	Seed       int64   // сид источника случайности
	Palette    Palette // только для gradient; nil: Palette8
	Workers    int     // параллельность вычисления строк
}

// NewField создаёт поле шума по названию алгоритма
func NewField(algorithm string, opts FieldOptions) (Field, error) {
	if opts.Resolution <= 0 {
		return nil, fmt.Errorf("resolution %d: %w", opts.Resolution, ErrInvalidArgument)
	}

	switch algorithm {
	case "", AlgorithmGradient:
		palette := opts.Palette
		if palette == nil {
			palette = Palette8
		}
		return &GradientField{
			Resolution: opts.Resolution,
			Palette:    palette,
			Workers:    opts.Workers,
			NewSource:  func() Source { return NewSeededSource(opts.Seed) },
		}, nil
	case AlgorithmPerlin:
		return NewPerlinField(opts.Seed, opts.Resolution), nil
	case AlgorithmSimplex:
		return NewSimplexField(opts.Seed, opts.Resolution), nil
	default:
		return nil, fmt.Errorf("неизвестный алгоритм шума %q: %w", algorithm, ErrInvalidArgument)
	}
}

// GradientField основной алгоритм: случайная сетка градиентов и
// билинейная интерполяция скалярных произведений.
type GradientField struct {
	Resolution int
	Palette    Palette
	Workers    int
	// NewSource вызывается на каждый Raw, поэтому повторные вызовы дают одинаковый результат.
	NewSource func() Source
}

// Raw строит сетку градиентов размера side и вычисляет шум во всех точках.
func (f *GradientField) Raw(ctx context.Context, side int) (RawGrid, error) {
	grid, err := BuildGradientGrid(side, f.NewSource(), f.Palette)
	if err != nil {
		return nil, err
	}
	return SampleGrid(ctx, grid, side, f.Resolution, f.Workers)
}

// sampleFunc заполняет сетку, вызывая fn для каждой точки решётки
func sampleFunc(ctx context.Context, side int, fn func(x, y int) float64) (RawGrid, error) {
	if side <= 0 {
		return nil, fmt.Errorf("сторона карты %d: %w", side, ErrInvalidArgument)
	}
	raw := make(RawGrid, side)
	for x := 0; x < side; x++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make([]float64, side)
		for y := 0; y < side; y++ {
			row[y] = fn(x, y)
		}
		raw[x] = row
	}
	return raw, nil
}
