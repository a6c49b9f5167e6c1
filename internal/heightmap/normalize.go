package heightmap

import (
	"fmt"
	"math"

	"github.com/annel0/terragen/internal/noise"
)

// Normalize переводит сырой шум в целочисленные высоты.
//
// Значения разворачиваются построчно, затем по глобальным min/max
// масштабируются в [-sea, altMax], отрицательные обнуляются (уровень моря),
// дробная часть отбрасывается. Диапазон шума заранее не предполагается.
func Normalize(raw noise.RawGrid, sea, altMax int) ([]int, error) {
	if sea < 0 || altMax < 0 {
		return nil, fmt.Errorf("sea=%d alt_max=%d: %w", sea, altMax, noise.ErrInvalidArgument)
	}
	if sea > math.MaxInt-altMax {
		return nil, fmt.Errorf("sea+alt_max переполняет int (sea=%d alt_max=%d): %w",
			sea, altMax, noise.ErrInvalidArgument)
	}

	flat, err := flatten(raw)
	if err != nil {
		return nil, err
	}

	mMin, mMax := flat[0], flat[0]
	for _, e := range flat {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return nil, fmt.Errorf("нечисловое значение шума %v: %w", e, noise.ErrDegenerateInput)
		}
		if e < mMin {
			mMin = e
		}
		if e > mMax {
			mMax = e
		}
	}
	if mMax == mMin {
		return nil, fmt.Errorf("плоское поле шума (min = max = %v): %w", mMin, noise.ErrDegenerateInput)
	}

	span := mMax - mMin
	total := float64(sea + altMax)
	out := make([]int, len(flat))
	for i, e := range flat {
		h := (e-mMin)/span*total - float64(sea)
		if h < 0 {
			h = 0
		}
		out[i] = int(h)
	}
	return out, nil
}

// flatten разворачивает квадратную сетку в последовательность по строкам
func flatten(raw noise.RawGrid) ([]float64, error) {
	side := len(raw)
	if side == 0 {
		return nil, fmt.Errorf("пустая сетка шума: %w", noise.ErrInvalidArgument)
	}
	flat := make([]float64, 0, side*side)
	for i, row := range raw {
		if len(row) != side {
			return nil, fmt.Errorf("строка %d длины %d в сетке %d×%d: %w",
				i, len(row), side, side, noise.ErrInvalidArgument)
		}
		flat = append(flat, row...)
	}
	return flat, nil
}
