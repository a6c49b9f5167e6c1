package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2CellAndOrigin(t *testing.T) {
	p := Vec2{X: 17, Y: 4}

	assert.Equal(t, Vec2{X: 4, Y: 1}, p.Cell(4), "ячейка считается целочисленным делением")
	assert.Equal(t, Vec2{X: 16, Y: 4}, p.Origin(4), "угол ячейки кратен resolution")
	assert.Equal(t, Vec2{X: 1, Y: 0}, p.Sub(p.Origin(4)))
}

func TestVec2FloatDot(t *testing.T) {
	u := 1 / math.Sqrt2
	diag := Vec2Float{X: u, Y: u}

	assert.InDelta(t, 1.0, diag.Length(), 1e-12, "диагональный градиент единичной длины")
	assert.InDelta(t, u*0.5+u*0.25, diag.Dot(Vec2Float{X: 0.5, Y: 0.25}), 1e-12)
	assert.Equal(t, Vec2Float{X: 0.5, Y: -1}, FromVec2(Vec2{X: 2, Y: -4}).Div(4))
}
