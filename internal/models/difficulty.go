package models

import "math"

// BaseHealth is the boss health of a Normal (multiplier 1) project.
const BaseHealth = 550

// InitialHealth returns the boss health a new project starts with.
func (d Difficulty) InitialHealth() int {
	return int(math.Round(BaseHealth * d.Multiplier))
}

// Damage returns how much boss health a completed task removes. Harder
// difficulties scale the hit up through the multiplier.
func (d Difficulty) Damage(exp int) int {
	return int(math.Round(float64(exp) * d.Multiplier))
}

// ApplyDamage subtracts dmg from health, flooring at zero.
func ApplyDamage(health, dmg int) int {
	if dmg >= health {
		return 0
	}
	return health - dmg
}

// HarderThan orders difficulties by their multiplier.
func (d Difficulty) HarderThan(other Difficulty) bool {
	return d.Multiplier > other.Multiplier
}
