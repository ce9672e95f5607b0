package score

import (
	"errors"
	"slices"
	"testing"
)

func hold(ms int64) *int64 { return &ms }

func TestHolds(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name  string
		notes []Note
		want  []int64
	}{
		{
			name:  "single note uses floor over default",
			notes: []Note{{Time: 0, Key: "Key0"}},
			want:  []int64{750},
		},
		{
			name:  "last group explicit hold below floor",
			notes: []Note{{Time: 0, Key: "Key0", Hold: hold(100)}},
			want:  []int64{750},
		},
		{
			name:  "last group explicit hold above floor",
			notes: []Note{{Time: 0, Key: "Key0", Hold: hold(2000)}},
			want:  []int64{2000},
		},
		{
			name: "legato within gap",
			notes: []Note{
				{Time: 0, Key: "Key0"},
				{Time: 1000, Key: "Key0"},
			},
			want: []int64{900, 750},
		},
		{
			name: "short gap capped by overlap",
			notes: []Note{
				{Time: 0, Key: "Key0"},
				{Time: 300, Key: "Key1"},
			},
			want: []int64{320, 750},
		},
		{
			name: "explicit hold wins when longer",
			notes: []Note{
				{Time: 0, Key: "Key0", Hold: hold(1500)},
				{Time: 1000, Key: "Key1"},
			},
			want: []int64{1500, 750},
		},
		{
			name: "explicit hold raised to group hold",
			notes: []Note{
				{Time: 0, Key: "Key0", Hold: hold(10)},
				{Time: 2000, Key: "Key1"},
			},
			want: []int64{1800, 750},
		},
		{
			name: "dense chord shares group hold",
			notes: []Note{
				{Time: 0, Key: "Key0"},
				{Time: 0, Key: "Key1"},
				{Time: 0, Key: "Key2"},
				{Time: 500, Key: "Key3"},
			},
			want: []int64{520, 520, 520, 750},
		},
		{
			name: "rounding of gap ratio",
			notes: []Note{
				{Time: 0, Key: "Key0"},
				{Time: 1001, Key: "Key1"},
			},
			want: []int64{901, 750},
		},
		{
			name: "unsorted input",
			notes: []Note{
				{Time: 1000, Key: "Key1"},
				{Time: 0, Key: "Key0"},
			},
			want: []int64{750, 900},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Holds(tt.notes, p)
			if err != nil {
				t.Fatalf("Holds() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Holds() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHoldsBounds(t *testing.T) {
	p := DefaultParams()
	for gap := int64(1); gap <= 3000; gap += 37 {
		notes := []Note{{Time: 0, Key: "Key0"}, {Time: gap, Key: "Key1"}}
		holds, err := Holds(notes, p)
		if err != nil {
			t.Fatal(err)
		}
		h := holds[0]
		if h > gap+p.AllowOverlap {
			t.Errorf("gap %d: hold %d exceeds gap+overlap", gap, h)
		}
		if gap+p.AllowOverlap >= p.MinAutoHold && h < p.MinAutoHold {
			t.Errorf("gap %d: hold %d below floor", gap, h)
		}
		if holds[1] < p.MinAutoHold {
			t.Errorf("gap %d: last hold %d below floor", gap, holds[1])
		}
	}
}

func TestHoldsDataError(t *testing.T) {
	tests := []struct {
		name  string
		notes []Note
	}{
		{"negative time", []Note{{Time: -1, Key: "Key0"}}},
		{"negative hold", []Note{{Time: 0, Key: "Key0", Hold: hold(-5)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalculator(DefaultKeyMap(), DefaultParams()).Events(tt.notes)
			var de *DataError
			if !errors.As(err, &de) {
				t.Fatalf("Events() error = %v, want *DataError", err)
			}
		})
	}
}

func TestEvents(t *testing.T) {
	c := NewCalculator(DefaultKeyMap(), DefaultParams())
	got, err := c.Events([]Note{
		{Time: 0, Key: "Key0"},
		{Time: 1000, Key: "1Key0"},
	})
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	want := []Event{
		{Time: 0, Kind: Press, Key: "Y"},
		{Time: 900, Kind: Release, Key: "Y"},
		{Time: 1000, Kind: Press, Key: "Y"},
		{Time: 1750, Kind: Release, Key: "Y"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("Events() = %v, want %v", got, want)
	}
}

func TestEventsPressBeforeRelease(t *testing.T) {
	c := NewCalculator(DefaultKeyMap(), DefaultParams())
	// Key0 ends exactly when Key1 starts: min(max(round(750*0.9), 750), 770) = 750.
	got, err := c.Events([]Note{
		{Time: 0, Key: "Key0"},
		{Time: 750, Key: "Key1"},
		{Time: 1550, Key: "Key2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(got); i++ {
		a, b := got[i-1], got[i]
		if a.Time > b.Time {
			t.Fatalf("events out of order at %d: %v then %v", i, a, b)
		}
		if a.Time == b.Time && a.Kind == Release && b.Kind == Press {
			t.Errorf("release before press at t=%d", a.Time)
		}
	}
}

func TestEventsDropsUnmapped(t *testing.T) {
	c := NewCalculator(KeyMap{"Key0": "Y"}, DefaultParams())
	got, err := c.Events([]Note{
		{Time: 0, Key: "Key0"},
		{Time: 500, Key: "Key99"},
		{Time: 900, Key: ""},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Events()) = %d, want 2", len(got))
	}
	// The unmapped notes still shape the first note's gap.
	if got[1].Time != 520 {
		t.Errorf("release time = %d, want 520", got[1].Time)
	}
}

func TestEventsIdempotent(t *testing.T) {
	notes := []Note{
		{Time: 0, Key: "Key0"},
		{Time: 0, Key: "Key4"},
		{Time: 400, Key: "Key2", Hold: hold(900)},
		{Time: 1200, Key: "Key14"},
	}
	c := NewCalculator(DefaultKeyMap(), DefaultParams())
	a, err := c.Events(notes)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Events(notes)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(a, b) {
		t.Errorf("Events() not idempotent:\n%v\n%v", a, b)
	}
	if *notes[2].Hold != 900 {
		t.Errorf("input hold mutated to %d", *notes[2].Hold)
	}
}

func TestDefaultKeyMap(t *testing.T) {
	m := DefaultKeyMap()
	tests := map[string]string{
		"Key0":   "Y",
		"Key9":   ";",
		"Key14":  "/",
		"1Key10": "N",
		"1Key12": ",",
	}
	for id, want := range tests {
		if got, ok := m.Lookup(id); !ok || got != want {
			t.Errorf("Lookup(%q) = %q, %v, want %q", id, got, ok, want)
		}
	}
	if got := len(m.Keys()); got != 15 {
		t.Errorf("len(Keys()) = %d, want 15", got)
	}
}
