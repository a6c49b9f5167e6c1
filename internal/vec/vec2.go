package vec

// Vec2 представляет целочисленную точку решётки карты высот
type Vec2 struct {
	X, Y int
}

// Cell возвращает индексы ячейки сетки градиентов, в которую попадает точка
// при заданном размере ячейки (resolution). Точка должна быть неотрицательной.
func (v Vec2) Cell(resolution int) Vec2 {
	return Vec2{X: v.X / resolution, Y: v.Y / resolution}
}

// Origin возвращает левый верхний угол ячейки в координатах решётки
func (v Vec2) Origin(resolution int) Vec2 {
	c := v.Cell(resolution)
	return Vec2{X: c.X * resolution, Y: c.Y * resolution}
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}
