// Package leveling maps accumulated experience points to levels and
// badges. All functions are pure; the experience service applies them
// after every tracked action.
package leveling

// LevelThreshold is the number of experience points per level.
const LevelThreshold = 500

// Badge labels, highest tier first.
const (
	BadgeLegend = "Legend"
	BadgeMaster = "Master"
	BadgeSenior = "Senior"
	BadgeJunior = "Junior"
	BadgeNovice = "Novice"
)

// CalculateLevel returns the level for an experience total. Level 1 starts
// at zero experience; every LevelThreshold points advance one level.
// Negative input is clamped to zero.
func CalculateLevel(exp int) int {
	if exp < 0 {
		exp = 0
	}
	return exp/LevelThreshold + 1
}

// CalculateProgress returns how far through the current level the
// experience total is, as a percentage in [0, 100).
func CalculateProgress(exp int) float64 {
	if exp < 0 {
		exp = 0
	}
	return float64(exp%LevelThreshold) / LevelThreshold * 100
}

// BadgeForLevel returns the badge label for a level. Tiers are checked
// top-down; the highest threshold met wins.
func BadgeForLevel(level int) string {
	switch {
	case level >= 20:
		return BadgeLegend
	case level >= 15:
		return BadgeMaster
	case level >= 10:
		return BadgeSenior
	case level >= 5:
		return BadgeJunior
	default:
		return BadgeNovice
	}
}

// BadgeForExp returns the badge for an experience total.
func BadgeForExp(exp int) string {
	return BadgeForLevel(CalculateLevel(exp))
}
