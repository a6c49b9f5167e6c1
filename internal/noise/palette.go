package noise

import "github.com/annel0/terragen/internal/vec"

// Palette фиксированный набор единичных градиентов.
// Индекс, выпавший из Source, отображается на позицию в палитре.
type Palette []vec.Vec2Float

const diag = 0.7071067811865476 // 1/√2

// Palette8 каноническая палитра improved noise: четыре осевых и четыре
// диагональных вектора. Порядок важен для воспроизводимости по сиду.
var Palette8 = Palette{
	{X: 0, Y: 1},
	{X: 1, Y: 0},
	{X: 0, Y: -1},
	{X: -1, Y: 0},
	{X: diag, Y: diag},
	{X: diag, Y: -diag},
	{X: -diag, Y: -diag},
	{X: -diag, Y: diag},
}

// Palette4 альтернативная конфигурация из четырёх диагоналей.
var Palette4 = Palette{
	{X: diag, Y: diag},
	{X: diag, Y: -diag},
	{X: -diag, Y: -diag},
	{X: -diag, Y: diag},
}

// PaletteByName возвращает палитру по имени из конфигурации ("8", "4" или "").
func PaletteByName(name string) (Palette, bool) {
	switch name {
	case "", "8", "palette8":
		return Palette8, true
	case "4", "palette4":
		return Palette4, true
	default:
		return nil, false
	}
}
