package cpu

import (
	"maps"
	"slices"
)

// Quirks selects between the behaviours that differ across CHIP-8
// interpreters. The zero value is the common modern behaviour.
type Quirks struct {
	ShiftUsesVy          bool `toml:"shift_uses_vy"`           // 8XY6/8XYE shift VY into VX.
	LoadStoreIncrementsI bool `toml:"load_store_increments_i"` // FX55/FX65 leave I past the last register.
	JumpUsesVx           bool `toml:"jump_uses_vx"`            // BXNN jumps to XNN + VX.
	LogicResetsVF        bool `toml:"logic_resets_vf"`         // 8XY1/8XY2/8XY3 clear VF.
	WrapSprites          bool `toml:"wrap_sprites"`            // DXYN wraps at the display edge instead of clipping.
}

var _quirks = map[string]Quirks{
	"modern": {},
	"cosmac": {
		ShiftUsesVy:          true,
		LoadStoreIncrementsI: true,
		LogicResetsVF:        true,
	},
	"chip48": {
		JumpUsesVx: true,
	},
}

// QuirksNamed returns a named preset: modern, cosmac or chip48.
func QuirksNamed(name string) (quirks Quirks, ok bool) {
	quirks, ok = _quirks[name]
	return
}

// QuirksNames lists the preset names, sorted.
func QuirksNames() []string {
	return slices.Sorted(maps.Keys(_quirks))
}

// Random is the source for the RND instruction.
type Random interface {
	// Intn returns a value in [0, n).
	Intn(n int) int
}
