package heightmap

import (
	"image"
	"image/color"
	"image/png"
	"io"
)

// Image строит изображение в оттенках серого: x: строка, y: столбец,
// яркость пропорциональна высоте относительно максимума карты.
func (m *Map) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Side, m.Side))
	maxH := m.Stats().Max
	for x := 0; x < m.Side; x++ {
		for y := 0; y < m.Side; y++ {
			h, _ := m.At(x, y)
			var v uint8
			if maxH > 0 {
				v = uint8(h * 255 / maxH)
			}
			img.SetGray(y, x, color.Gray{Y: v})
		}
	}
	return img
}

// WritePNG пишет превью карты в PNG
func WritePNG(w io.Writer, m *Map) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return png.Encode(w, m.Image())
}
