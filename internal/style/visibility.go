package style

import "github.com/joeblew999/plat-stat/internal/catalog"

// Visibility computes the visible flag of every layer and marker sublayer
// at level. Toggles override the level set for the layers they name.
func Visibility(layers []catalog.Layer, level catalog.AdminLevel, toggles map[string]bool) map[string]bool {
	vis := make(map[string]bool, len(layers)*2)
	for _, l := range layers {
		v := level.Shows(l.ID)
		if t, ok := toggles[l.ID]; ok {
			v = t
		}
		vis[l.ID] = v
		if m := l.MarkerID(); m != "" {
			vis[m] = v
		}
	}
	return vis
}
