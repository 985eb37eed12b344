package leveling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		exp  int
		want int
	}{
		{0, 1},
		{1, 1},
		{499, 1},
		{500, 2},
		{999, 2},
		{1000, 3},
		{2500, 6},
		{9500, 20},
		{-50, 1}, // negative clamps to zero
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateLevel(tt.exp), "exp=%d", tt.exp)
	}
}

func TestCalculateLevel_Monotonic(t *testing.T) {
	prev := CalculateLevel(0)
	for exp := 1; exp <= 5000; exp++ {
		lvl := CalculateLevel(exp)
		assert.GreaterOrEqual(t, lvl, prev, "level must never decrease (exp=%d)", exp)
		prev = lvl
	}
}

func TestCalculateProgress(t *testing.T) {
	assert.Equal(t, 0.0, CalculateProgress(0))
	assert.Equal(t, 0.0, CalculateProgress(500))
	assert.Equal(t, 0.0, CalculateProgress(1000))
	assert.Equal(t, 50.0, CalculateProgress(250))
	assert.Equal(t, 50.0, CalculateProgress(750))
	assert.InDelta(t, 99.8, CalculateProgress(499), 0.0001)

	for exp := 0; exp <= 3000; exp += 7 {
		p := CalculateProgress(exp)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.Less(t, p, 100.0)
	}
}

func TestBadgeForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{1, BadgeNovice},
		{4, BadgeNovice},
		{5, BadgeJunior},
		{9, BadgeJunior},
		{10, BadgeSenior},
		{14, BadgeSenior},
		{15, BadgeMaster},
		{19, BadgeMaster},
		{20, BadgeLegend},
		{42, BadgeLegend},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BadgeForLevel(tt.level), "level=%d", tt.level)
	}
}

func TestBadgeForExp(t *testing.T) {
	assert.Equal(t, BadgeNovice, BadgeForExp(0))
	// 2000 exp -> level 5 -> Junior.
	assert.Equal(t, BadgeJunior, BadgeForExp(2000))
	// 9500 exp -> level 20 -> Legend.
	assert.Equal(t, BadgeLegend, BadgeForExp(9500))
}
