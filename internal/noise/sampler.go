package noise

import (
	"context"
	"fmt"

	"github.com/annel0/terragen/internal/vec"
	"golang.org/x/sync/errgroup"
)

// RawGrid плотная сетка сырых значений шума side×side, raw[x][y].
type RawGrid [][]float64

// Smoothstep кривая сглаживания 6t⁵ − 15t⁴ + 10t³.
// Первая и вторая производные равны нулю при t=0 и t=1.
func Smoothstep(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

// Sample вычисляет значение шума в точке решётки (x, y) при размере ячейки resolution.
//
// Углы ячейки обозначены s (i,j), t (i+1,j), u (i,j+1), v (i+1,j+1).
// Интерполяция сначала по x внутри пар (s,t) и (u,v), затем по y.
func Sample(grid *GradientGrid, x, y, resolution int) (float64, error) {
	if grid == nil {
		return 0, fmt.Errorf("сетка градиентов не задана: %w", ErrInvalidArgument)
	}
	if x < 0 || y < 0 {
		return 0, fmt.Errorf("координаты (%d,%d): %w", x, y, ErrInvalidArgument)
	}
	if resolution <= 0 {
		return 0, fmt.Errorf("resolution %d: %w", resolution, ErrInvalidArgument)
	}

	p := vec.Vec2{X: x, Y: y}
	cell := p.Cell(resolution)
	origin := p.Origin(resolution)

	gs, ok1 := grid.At(cell.X, cell.Y)
	gt, ok2 := grid.At(cell.X+1, cell.Y)
	gu, ok3 := grid.At(cell.X, cell.Y+1)
	gv, ok4 := grid.At(cell.X+1, cell.Y+1)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, fmt.Errorf("ячейка (%d,%d) вне сетки %d×%d: %w",
			cell.X, cell.Y, grid.Size()+1, grid.Size()+1, ErrInvalidArgument)
	}

	res := float64(resolution)
	offset := func(dx, dy int) vec.Vec2Float {
		corner := origin.Add(vec.Vec2{X: dx, Y: dy})
		return vec.FromVec2(p.Sub(corner)).Div(res)
	}

	s := gs.Dot(offset(0, 0))
	t := gt.Dot(offset(resolution, 0))
	u := gu.Dot(offset(0, resolution))
	v := gv.Dot(offset(resolution, resolution))

	mx := float64(x-origin.X) / res
	my := float64(y-origin.Y) / res

	ix := Smoothstep(mx)
	l1 := lerp(ix, s, t)
	l2 := lerp(ix, u, v)
	return lerp(Smoothstep(my), l1, l2), nil
}

// SampleGrid вычисляет шум во всех точках решётки side×side.
// Строки считаются параллельно (workers <= 0: одна горутина на строку без ограничения);
// сетка градиентов только читается, результат не зависит от числа воркеров.
func SampleGrid(ctx context.Context, grid *GradientGrid, side, resolution, workers int) (RawGrid, error) {
	if side <= 0 {
		return nil, fmt.Errorf("сторона карты %d: %w", side, ErrInvalidArgument)
	}

	raw := make(RawGrid, side)
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for x := 0; x < side; x++ {
		x := x
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := make([]float64, side)
			for y := 0; y < side; y++ {
				val, err := Sample(grid, x, y, resolution)
				if err != nil {
					return err
				}
				row[y] = val
			}
			raw[x] = row
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return raw, nil
}
