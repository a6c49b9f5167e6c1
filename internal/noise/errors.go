package noise

import "errors"

// Ошибки генерации шума и нормализации.
// Обе ошибки локальные: повторять вызов с теми же аргументами бессмысленно.
var (
	// ErrInvalidArgument неположительный размер/resolution, отрицательные
	// координаты, некорректные sea/alt_max.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDegenerateInput поле шума плоское (max == min), масштабирование не определено.
	ErrDegenerateInput = errors.New("degenerate input")
)
