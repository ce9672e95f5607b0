// Package score turns raw song notes into an ordered stream of key press and
// key release events, inferring legato hold lengths where the song leaves
// them out.
package score

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Note is a single note read from a song. Hold is nil when the song does not
// say how long the key should stay down.
type Note struct {
	Time int64 // ms from song start
	Key  string
	Hold *int64
}

// Kind tells a press from a release.
type Kind uint8

const (
	Press Kind = iota
	Release
)

func (k Kind) String() string {
	switch k {
	case Press:
		return "press"
	case Release:
		return "release"
	}
	return "unknown"
}

// Event is one actuation at a point on the song's virtual timeline.
type Event struct {
	Time int64 // ms
	Kind Kind
	Key  string // actuator key, already mapped
}

// Params are the hold inference tunables.
type Params struct {
	DefaultHold  int64   // used for last-group notes without an explicit hold
	MinAutoHold  int64   // floor for every inferred hold
	AllowOverlap int64   // how far a hold may run into the next group
	GapRatio     float64 // fraction of the gap to the next group held
	DenseChord   int     // group size at which the dense chord policy applies
}

// DefaultParams returns the tuning the player ships with.
func DefaultParams() Params {
	return Params{
		DefaultHold:  600,
		MinAutoHold:  750,
		AllowOverlap: 20,
		GapRatio:     0.9,
		DenseChord:   3,
	}
}

// DataError reports song data that cannot be turned into events.
type DataError struct {
	Source string
	Err    error
}

func (e *DataError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("song data: %v", e.Err)
	}
	return fmt.Sprintf("song data %s: %v", e.Source, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// Holds resolves the final hold of every note, indexed like notes.
func Holds(notes []Note, p Params) ([]int64, error) {
	groups := make(map[int64][]int)
	for i, n := range notes {
		if n.Time < 0 {
			return nil, &DataError{Err: fmt.Errorf("note %d: negative time %d", i, n.Time)}
		}
		if n.Hold != nil && *n.Hold < 0 {
			return nil, &DataError{Err: fmt.Errorf("note %d: negative hold %d", i, *n.Hold)}
		}
		groups[n.Time] = append(groups[n.Time], i)
	}

	times := make([]int64, 0, len(groups))
	for t := range groups {
		times = append(times, t)
	}
	slices.Sort(times)

	holds := make([]int64, len(notes))
	for gi, t := range times {
		group := groups[t]

		if gi == len(times)-1 {
			for _, i := range group {
				h := p.DefaultHold
				if notes[i].Hold != nil {
					h = *notes[i].Hold
				}
				holds[i] = max(h, p.MinAutoHold)
			}
			continue
		}

		gap := times[gi+1] - t
		base := max(int64(math.Round(float64(gap)*p.GapRatio)), p.MinAutoHold)
		useHold := base
		if len(group) >= p.DenseChord {
			useHold = max(base, p.MinAutoHold)
		}
		useHold = min(useHold, gap+p.AllowOverlap)

		for _, i := range group {
			if notes[i].Hold != nil {
				holds[i] = max(*notes[i].Hold, useHold)
			} else {
				holds[i] = useHold
			}
		}
	}
	return holds, nil
}

// Calculator converts notes into events for one key layout.
type Calculator struct {
	Params Params
	KeyMap KeyMap
}

// NewCalculator returns a Calculator using the given key mapping.
func NewCalculator(keys KeyMap, p Params) *Calculator {
	return &Calculator{Params: p, KeyMap: keys}
}

// Events returns the press/release events for notes, ordered by time with
// presses ahead of releases at the same instant. Notes whose key is not in
// the key map are dropped.
func (c *Calculator) Events(notes []Note) ([]Event, error) {
	holds, err := Holds(notes, c.Params)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(notes))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(notes[a].Time, notes[b].Time)
	})

	events := make([]Event, 0, 2*len(notes))
	for _, i := range order {
		n := notes[i]
		key, ok := c.KeyMap.Lookup(n.Key)
		if !ok {
			continue
		}
		events = append(events,
			Event{Time: n.Time, Kind: Press, Key: key},
			Event{Time: n.Time + holds[i], Kind: Release, Key: key},
		)
	}

	slices.SortStableFunc(events, func(a, b Event) int {
		if d := cmp.Compare(a.Time, b.Time); d != 0 {
			return d
		}
		return int(a.Kind) - int(b.Kind)
	})
	return events, nil
}

// Duration is the time of the last event, i.e. when the final key lets go.
func Duration(events []Event) int64 {
	if len(events) == 0 {
		return 0
	}
	return events[len(events)-1].Time
}
