package heightmap

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/annel0/terragen/internal/noise"
)

// Map конверт карты высот, который читает рендерер:
// {"side": ..., "step": ..., "heightmap": [...]}
type Map struct {
	Side      int   `json:"side"`
	Step      int   `json:"step"`
	Heightmap []int `json:"heightmap"`
}

// Stats содержит сводку по карте
type Stats struct {
	Min      int     `json:"min"`
	Max      int     `json:"max"`
	Mean     float64 `json:"mean"`
	SeaCells int     `json:"sea_cells"` // клетки на нулевой высоте
}

// Validate проверяет форму и инварианты карты
func (m *Map) Validate() error {
	if m.Side <= 0 {
		return fmt.Errorf("side %d: %w", m.Side, noise.ErrInvalidArgument)
	}
	if m.Step < 0 {
		return fmt.Errorf("step %d: %w", m.Step, noise.ErrInvalidArgument)
	}
	if len(m.Heightmap) != m.Side*m.Side {
		return fmt.Errorf("длина heightmap %d, ожидалось %d: %w",
			len(m.Heightmap), m.Side*m.Side, noise.ErrInvalidArgument)
	}
	for i, h := range m.Heightmap {
		if h < 0 {
			return fmt.Errorf("отрицательная высота %d в позиции %d: %w", h, i, noise.ErrInvalidArgument)
		}
	}
	return nil
}

// At возвращает высоту точки решётки (x, y); порядок построчный по x
func (m *Map) At(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= m.Side || y >= m.Side {
		return 0, false
	}
	return m.Heightmap[x*m.Side+y], true
}

// Stats считает min/max/среднее и число клеток на уровне моря
func (m *Map) Stats() Stats {
	if len(m.Heightmap) == 0 {
		return Stats{}
	}
	st := Stats{Min: m.Heightmap[0], Max: m.Heightmap[0]}
	sum := 0
	for _, h := range m.Heightmap {
		if h < st.Min {
			st.Min = h
		}
		if h > st.Max {
			st.Max = h
		}
		if h == 0 {
			st.SeaCells++
		}
		sum += h
	}
	st.Mean = float64(sum) / float64(len(m.Heightmap))
	return st
}

// Encode пишет конверт в JSON
func (m *Map) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(m)
}

// Decode читает и проверяет конверт карты
func Decode(r io.Reader) (*Map, error) {
	var m Map
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("ошибка разбора карты: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
