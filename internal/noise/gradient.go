package noise

import (
	"fmt"

	"github.com/annel0/terragen/internal/vec"
)

// GradientGrid неизменяемая сетка (size+1)×(size+1) единичных градиентов.
// Лишняя строка и столбец нужны, чтобы верхние точки решётки имели все четыре угла.
type GradientGrid struct {
	size  int
	cells [][]vec.Vec2Float
}

// BuildGradientGrid заполняет сетку градиентами, выбирая каждый независимо
// и равновероятно из палитры.
func BuildGradientGrid(size int, rng Source, palette Palette) (*GradientGrid, error) {
	if size <= 0 {
		return nil, fmt.Errorf("размер сетки градиентов %d: %w", size, ErrInvalidArgument)
	}
	if rng == nil {
		return nil, fmt.Errorf("источник случайности не задан: %w", ErrInvalidArgument)
	}
	if len(palette) == 0 {
		return nil, fmt.Errorf("пустая палитра градиентов: %w", ErrInvalidArgument)
	}

	cells := make([][]vec.Vec2Float, size+1)
	for i := range cells {
		row := make([]vec.Vec2Float, size+1)
		for j := range row {
			row[j] = palette[rng.Intn(len(palette))]
		}
		cells[i] = row
	}

	return &GradientGrid{size: size, cells: cells}, nil
}

// Size возвращает размер, с которым была построена сетка (стороны равны Size()+1)
func (g *GradientGrid) Size() int {
	return g.size
}

// At возвращает градиент в узле (i, j)
func (g *GradientGrid) At(i, j int) (vec.Vec2Float, bool) {
	if i < 0 || j < 0 || i > g.size || j > g.size {
		return vec.Vec2Float{}, false
	}
	return g.cells[i][j], true
}
