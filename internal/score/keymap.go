package score

import (
	"slices"
	"strconv"
)

// KeyMap maps song key identifiers to actuator keys.
type KeyMap map[string]string

// skyKeys is the 15-key instrument layout, row by row.
var skyKeys = [15]string{
	"Y", "U", "I", "O", "P",
	"H", "J", "K", "L", ";",
	"N", "M", ",", ".", "/",
}

// layoutPitch is the MIDI pitch each slot sounds: two octaves of C major
// from C4.
var layoutPitch = [15]int{60, 62, 64, 65, 67, 69, 71, 72, 74, 76, 77, 79, 81, 83, 84}

// DefaultKeyMap maps both the "KeyN" and "1KeyN" sheet identifiers onto the
// keyboard layout used by the game client.
func DefaultKeyMap() KeyMap {
	m := make(KeyMap, 2*len(skyKeys))
	for i, k := range skyKeys {
		m["Key"+strconv.Itoa(i)] = k
		m["1Key"+strconv.Itoa(i)] = k
	}
	return m
}

// Lookup returns the actuator key for a song key id.
func (m KeyMap) Lookup(id string) (string, bool) {
	k, ok := m[id]
	if !ok || k == "" {
		return "", false
	}
	return k, true
}

// Keys returns the distinct actuator keys in the map, sorted.
func (m KeyMap) Keys() []string {
	seen := make(map[string]bool, len(m))
	var out []string
	for _, k := range m {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Layout returns the instrument's keys in slot order.
func Layout() []string {
	return slices.Clone(skyKeys[:])
}

// LayoutPitches returns the MIDI pitch of each slot, in slot order.
func LayoutPitches() []int {
	return slices.Clone(layoutPitch[:])
}
