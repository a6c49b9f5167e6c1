package heightmap

import (
	"fmt"
	"math"
	"runtime"

	"github.com/annel0/terragen/internal/noise"
)

// Params параметры генерации карты
type Params struct {
	Side       int    `json:"side" yaml:"side"`             // сторона решётки, карта side×side
	Step       int    `json:"step" yaml:"step"`             // шаг между вершинами для рендерера, не интерпретируется
	Resolution int    `json:"resolution" yaml:"resolution"` // размер ячейки градиентов (smoothness)
	Seed       *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	Sea        int    `json:"sea" yaml:"sea"`
	AltMax     int    `json:"max" yaml:"max"`
	Algorithm  string `json:"algorithm,omitempty" yaml:"algorithm"`
	Palette    string `json:"palette,omitempty" yaml:"palette"`
	Workers    int    `json:"workers,omitempty" yaml:"workers"`
}

// DefaultParams возвращает значения по умолчанию генератора карт
func DefaultParams() Params {
	return Params{
		Side:       64,
		Step:       20,
		Resolution: 15,
		Sea:        100,
		AltMax:     130,
		Algorithm:  noise.AlgorithmGradient,
		Workers:    runtime.NumCPU(),
	}
}

// Validate отклоняет некорректные параметры; значения никогда не подменяются молча
func (p Params) Validate() error {
	switch {
	case p.Side <= 0:
		return fmt.Errorf("side %d: %w", p.Side, noise.ErrInvalidArgument)
	case p.Resolution <= 0:
		return fmt.Errorf("resolution %d: %w", p.Resolution, noise.ErrInvalidArgument)
	case p.Step < 0:
		return fmt.Errorf("step %d: %w", p.Step, noise.ErrInvalidArgument)
	case p.Sea < 0:
		return fmt.Errorf("sea %d: %w", p.Sea, noise.ErrInvalidArgument)
	case p.AltMax < 0:
		return fmt.Errorf("max %d: %w", p.AltMax, noise.ErrInvalidArgument)
	case p.Sea > math.MaxInt-p.AltMax:
		return fmt.Errorf("sea %d + max %d переполняет int: %w", p.Sea, p.AltMax, noise.ErrInvalidArgument)
	case p.Workers < 0:
		return fmt.Errorf("workers %d: %w", p.Workers, noise.ErrInvalidArgument)
	}
	switch p.Algorithm {
	case "", noise.AlgorithmGradient, noise.AlgorithmPerlin, noise.AlgorithmSimplex:
	default:
		return fmt.Errorf("алгоритм %q: %w", p.Algorithm, noise.ErrInvalidArgument)
	}
	if _, ok := noise.PaletteByName(p.Palette); !ok {
		return fmt.Errorf("палитра %q: %w", p.Palette, noise.ErrInvalidArgument)
	}
	return nil
}

// WithSeed возвращает копию параметров с заданным сидом
func (p Params) WithSeed(seed int64) Params {
	p.Seed = &seed
	return p
}

// Resolved фиксирует сид: если он не задан, берётся из энтропии окружения
func (p Params) Resolved() Params {
	if p.Seed != nil {
		return p
	}
	return p.WithSeed(noise.EntropySeed())
}

// Seeded сообщает, задан ли сид явно (результат воспроизводим)
func (p Params) Seeded() bool {
	return p.Seed != nil
}
